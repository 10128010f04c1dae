package models

import "time"

type Event struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Location    string    `gorm:"size:255" json:"location"`
	StartsAt    time.Time `gorm:"index;not null" json:"starts_at"`
	EndsAt      time.Time `gorm:"not null" json:"ends_at"`
	AllDay      bool      `gorm:"default:false" json:"all_day"`
	Cancelled   bool      `gorm:"default:false" json:"cancelled"`
	CreatedBy   int64     `gorm:"index" json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// GroupIDs is filled from event_groups; an empty slice means the event is ungrouped.
	GroupIDs []int64 `gorm:"-" json:"group_ids"`
}

// EventGroup ties an event to one of the groups it is intended for.
type EventGroup struct {
	EventID int64 `gorm:"primaryKey;autoIncrement:false"`
	GroupID int64 `gorm:"primaryKey;autoIncrement:false;index"`
}
