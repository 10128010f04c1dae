package models

import "time"

type Rider struct {
	ID          int64      `gorm:"primaryKey" json:"id"`
	FirstName   string     `gorm:"size:100;not null" json:"first_name"`
	LastName    string     `gorm:"size:100;not null" json:"last_name"`
	DateOfBirth *time.Time `gorm:"type:date" json:"date_of_birth"`
	GroupID     *int64     `gorm:"index" json:"group_id"`
	Notes       string     `gorm:"type:text" json:"notes"`
	Active      bool       `gorm:"index" json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Group *Group `gorm:"foreignKey:GroupID" json:"group,omitempty"`
}

// FullName returns "First Last".
func (r *Rider) FullName() string {
	return r.FirstName + " " + r.LastName
}

// RiderParent links a rider to a parent profile.
type RiderParent struct {
	RiderID   int64 `gorm:"primaryKey;autoIncrement:false"`
	ProfileID int64 `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time
}

// PendingParentLink remembers a parent email from an import that had no
// matching profile yet; it is resolved when an invite for that email is accepted.
type PendingParentLink struct {
	ID        int64  `gorm:"primaryKey"`
	RiderID   int64  `gorm:"index;not null"`
	Email     string `gorm:"size:255;index;not null"`
	FullName  string `gorm:"size:200"`
	CreatedAt time.Time
}
