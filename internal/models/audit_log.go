package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditLog struct {
	ID            int64          `gorm:"primaryKey" json:"id"`
	ProfileID     int64          `gorm:"index" json:"profile_id"`         // zero for system actions (CLI import, dispatcher)
	Action        string         `gorm:"size:200;not null" json:"action"` // e.g. "invites.create", "riders.import"
	ResourceType  string         `gorm:"size:100" json:"resource_type"`
	ResourceID    int64          `gorm:"index" json:"resource_id"`
	Metadata      datatypes.JSON `gorm:"type:json" json:"metadata"`
	IP            string         `gorm:"size:64" json:"ip"`
	InitiatorName string         `gorm:"size:255" json:"initiator_name"`
	UserAgent     string         `gorm:"size:255" json:"user_agent"`
	CreatedAt     time.Time      `json:"created_at"`
}
