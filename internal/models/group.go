package models

import "time"

// Group is a rider training group, e.g. "Juniors" or "Race Team".
type Group struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:200;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Color       string    `gorm:"size:16" json:"color"`
	SortOrder   int       `gorm:"default:0" json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GroupCoach assigns a coach profile to a group.
// The table uses a composite primary key (group_id, profile_id).
type GroupCoach struct {
	GroupID   int64 `gorm:"primaryKey;autoIncrement:false"`
	ProfileID int64 `gorm:"primaryKey;autoIncrement:false;index"`
}
