package models

import "time"

type ProfileStatus string

const (
	ProfileActive    ProfileStatus = "active"
	ProfileSuspended ProfileStatus = "suspended"
)

// Profile is a club member account. Role flags drive every authorization decision.
type Profile struct {
	ID            int64         `gorm:"primaryKey" json:"id"`
	Email         string        `gorm:"uniqueIndex;size:255;not null" json:"email"`
	FullName      string        `gorm:"size:200" json:"full_name"`
	Phone         string        `gorm:"size:50" json:"phone"`
	PasswordHash  string        `gorm:"size:255" json:"-"`
	IsAdmin       bool          `gorm:"default:false" json:"is_admin"`
	IsCoach       bool          `gorm:"default:false" json:"is_coach"`
	IsParent      bool          `gorm:"default:false" json:"is_parent"`
	Status        ProfileStatus `gorm:"size:16;default:active" json:"status"`
	CalendarToken string        `gorm:"uniqueIndex;size:64" json:"-"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// IsStaff reports whether the profile may manage events and view dashboards.
func (p *Profile) IsStaff() bool {
	return p.IsAdmin || p.IsCoach
}
