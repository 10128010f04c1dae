package models

import "time"

// Invite is an admin-issued, single-use invitation. Only the SHA-256 of the token is stored.
type Invite struct {
	ID         int64      `gorm:"primaryKey" json:"id"`
	Email      string     `gorm:"size:255;index;not null" json:"email"`
	FullName   string     `gorm:"size:200" json:"full_name"`
	IsAdmin    bool       `json:"is_admin"`
	IsCoach    bool       `json:"is_coach"`
	IsParent   bool       `json:"is_parent"`
	TokenHash  string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	ExpiresAt  time.Time  `gorm:"index" json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at"`
	InvitedBy  int64      `json:"invited_by"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Pending reports whether the invite can still be accepted at now.
func (i *Invite) Pending(now time.Time) bool {
	return i.AcceptedAt == nil && now.Before(i.ExpiresAt)
}
