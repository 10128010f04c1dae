package models

import "time"

type RSVPStatus string

const (
	RSVPGoing    RSVPStatus = "going"
	RSVPMaybe    RSVPStatus = "maybe"
	RSVPNotGoing RSVPStatus = "not_going"
)

// Valid reports whether s is one of the accepted statuses.
func (s RSVPStatus) Valid() bool {
	switch s {
	case RSVPGoing, RSVPMaybe, RSVPNotGoing:
		return true
	}
	return false
}

// RSVP is either a rider response (RiderID set) or a coach's own response (ProfileID set).
type RSVP struct {
	ID          int64      `gorm:"primaryKey" json:"id"`
	EventID     int64      `gorm:"not null;uniqueIndex:idx_rsvp_event_rider;uniqueIndex:idx_rsvp_event_profile" json:"event_id"`
	RiderID     *int64     `gorm:"uniqueIndex:idx_rsvp_event_rider" json:"rider_id"`
	ProfileID   *int64     `gorm:"uniqueIndex:idx_rsvp_event_profile" json:"profile_id"`
	Status      RSVPStatus `gorm:"size:16;not null" json:"status"`
	Note        string     `gorm:"size:500" json:"note"`
	RespondedBy int64      `json:"responded_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (RSVP) TableName() string { return "rsvps" }
