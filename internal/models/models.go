package models

// All lists every model managed by AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Profile{},
		&Group{},
		&GroupCoach{},
		&Rider{},
		&RiderParent{},
		&PendingParentLink{},
		&Event{},
		&EventGroup{},
		&RSVP{},
		&Invite{},
		&Passkey{},
		&WebauthnSession{},
		&PushSubscription{},
		&ScheduledNotification{},
		&AuditLog{},
	}
}
