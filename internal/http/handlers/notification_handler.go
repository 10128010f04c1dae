package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"clubhub/internal/audit"
	"clubhub/internal/auth"
	"clubhub/internal/models"
	"clubhub/internal/notify"
)

// CreateNotification schedules a push/email notification; send_at defaults to now.
func CreateNotification(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Title    string                      `json:"title" binding:"required,max=200"`
			Body     string                      `json:"body"`
			URL      string                      `json:"url" binding:"max=500"`
			Audience models.NotificationAudience `json:"audience" binding:"required"`
			GroupID  *int64                      `json:"group_id"`
			EventID  *int64                      `json:"event_id"`
			Channels []string                    `json:"channels"`
			SendAt   *time.Time                  `json:"send_at"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		channels, err := notify.NormalizeChannels(input.Channels)
		if err != nil {
			d.respond(c, err)
			return
		}
		n := models.ScheduledNotification{
			Title:     input.Title,
			Body:      input.Body,
			URL:       strings.TrimSpace(input.URL),
			Audience:  input.Audience,
			GroupID:   input.GroupID,
			EventID:   input.EventID,
			Channels:  channels,
			CreatedBy: auth.CurrentProfile(c).ID,
		}
		if input.SendAt != nil {
			n.SendAt = input.SendAt.UTC()
		}
		if err := notify.Schedule(c, d.DB, &n, d.now()); err != nil {
			d.respond(c, err)
			return
		}

		d.record(c, audit.Entry{
			Action: "notifications.create", ResourceType: "notification", ResourceID: n.ID,
			Metadata: map[string]interface{}{"title": n.Title, "audience": n.Audience, "channels": n.Channels},
		})
		c.JSON(http.StatusCreated, gin.H{"notification": n})
	}
}

// ListNotifications returns scheduled notifications, newest send time first; ?status= filters.
func ListNotifications(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := d.DB.WithContext(c).Order("send_at DESC, id DESC").Limit(200)
		if s := c.Query("status"); s != "" {
			query = query.Where("status = ?", s)
		}
		var list []models.ScheduledNotification
		if err := query.Find(&list).Error; err != nil {
			d.respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": list})
	}
}

// CancelNotification stops a pending notification from being sent.
func CancelNotification(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var n models.ScheduledNotification
		if err := d.DB.WithContext(c).First(&n, id).Error; err != nil {
			d.respond(c, err)
			return
		}

		res := d.DB.WithContext(c).Model(&models.ScheduledNotification{}).
			Where("id = ? AND status = ?", id, models.NotificationPending).
			Update("status", models.NotificationCancelled)
		if res.Error != nil {
			d.respond(c, res.Error)
			return
		}
		if res.RowsAffected == 0 {
			d.respond(c, fmt.Errorf("%w: notification is %s", ErrConflict, n.Status))
			return
		}

		d.record(c, audit.Entry{Action: "notifications.cancel", ResourceType: "notification", ResourceID: id})
		c.Status(http.StatusNoContent)
	}
}
