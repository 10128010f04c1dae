package models

import (
	"time"

	"gorm.io/datatypes"
)

// Passkey is a stored WebAuthn credential.
type Passkey struct {
	ID              int64      `gorm:"primaryKey" json:"id"`
	ProfileID       int64      `gorm:"index;not null" json:"-"`
	CredentialID    string     `gorm:"size:512;uniqueIndex;not null" json:"credential_id"`
	PublicKey       []byte     `json:"-"`
	AttestationType string     `gorm:"size:32" json:"-"`
	AAGUID          []byte     `json:"-"`
	SignCount       uint32     `json:"-"`
	Transports      string     `gorm:"size:100" json:"transports"`
	BackupEligible  bool       `json:"backup_eligible"`
	BackupState     bool       `json:"backup_state"`
	Name            string     `gorm:"size:100" json:"name"`
	LastUsedAt      *time.Time `json:"last_used_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

// WebauthnSession holds ceremony state between begin and finish calls.
type WebauthnSession struct {
	Key       string         `gorm:"primaryKey;column:session_key;size:128"`
	Data      datatypes.JSON `gorm:"type:json"`
	ExpiresAt time.Time      `gorm:"index"`
}
