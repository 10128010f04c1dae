package models

import (
	"time"

	"gorm.io/datatypes"
)

type PushSubscription struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	ProfileID int64     `gorm:"index;not null" json:"profile_id"`
	Endpoint  string    `gorm:"size:1024;uniqueIndex;not null" json:"endpoint"`
	P256dh    string    `gorm:"size:255;not null" json:"keys_p256dh"`
	Auth      string    `gorm:"size:255;not null" json:"keys_auth"`
	UserAgent string    `gorm:"size:255" json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

type NotificationAudience string

const (
	AudienceAll   NotificationAudience = "all"
	AudienceGroup NotificationAudience = "group"
	AudienceEvent NotificationAudience = "event"
)

type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationSending   NotificationStatus = "sending"
	NotificationSent      NotificationStatus = "sent"
	NotificationFailed    NotificationStatus = "failed"
	NotificationCancelled NotificationStatus = "cancelled"
)

// Channel names stored comma-separated in ScheduledNotification.Channels.
const (
	ChannelPush  = "push"
	ChannelEmail = "email"
)

type ScheduledNotification struct {
	ID        int64                `gorm:"primaryKey" json:"id"`
	Title     string               `gorm:"size:200;not null" json:"title"`
	Body      string               `gorm:"type:text" json:"body"`
	URL       string               `gorm:"size:500" json:"url"`
	Audience  NotificationAudience `gorm:"size:16;not null" json:"audience"`
	GroupID   *int64               `json:"group_id"`
	EventID   *int64               `json:"event_id"`
	Channels  string               `gorm:"size:50;not null" json:"channels"`
	SendAt    time.Time            `gorm:"index;not null" json:"send_at"`
	SentAt    *time.Time           `json:"sent_at"`
	ClaimedAt *time.Time           `json:"claimed_at,omitempty"`
	Status    NotificationStatus   `gorm:"size:16;index;not null" json:"status"`
	Error     string               `gorm:"type:text" json:"error,omitempty"`
	Stats     datatypes.JSON       `gorm:"type:json" json:"stats,omitempty"`
	CreatedBy int64                `json:"created_by"`
	CreatedAt time.Time            `json:"created_at"`
}
