package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"clubhub/internal/auth"
	"clubhub/internal/models"
)

// Entry describes one audited action.
type Entry struct {
	Action       string
	ResourceType string
	ResourceID   int64
	Metadata     map[string]interface{}
}

// Record writes an audit row attributed to the authenticated profile of the request.
// Failures are returned but callers normally ignore them; the action already happened.
func Record(c *gin.Context, db *gorm.DB, e Entry) error {
	row := build(e)
	if p := auth.CurrentProfile(c); p != nil {
		row.ProfileID = p.ID
		row.InitiatorName = p.FullName
		if row.InitiatorName == "" {
			row.InitiatorName = p.Email
		}
	}
	row.IP = c.ClientIP()
	row.UserAgent = truncate(c.GetHeader("User-Agent"), 255)
	return db.WithContext(c).Create(&row).Error
}

// RecordSystem writes an audit row for actions without an HTTP caller (CLI, dispatcher).
func RecordSystem(ctx context.Context, db *gorm.DB, initiator string, e Entry) error {
	row := build(e)
	row.InitiatorName = initiator
	return db.WithContext(ctx).Create(&row).Error
}

func build(e Entry) models.AuditLog {
	var meta datatypes.JSON
	if e.Metadata != nil {
		if b, err := json.Marshal(e.Metadata); err == nil {
			meta = datatypes.JSON(b)
		}
	}
	return models.AuditLog{
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Metadata:     meta,
		CreatedAt:    time.Now(),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
