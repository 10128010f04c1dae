package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clubhub/internal/audience"
	"clubhub/internal/audit"
	"clubhub/internal/auth"
	"clubhub/internal/models"
	"clubhub/internal/notify"
)

// parseTimeParam accepts RFC 3339 timestamps or plain YYYY-MM-DD dates (UTC midnight).
func parseTimeParam(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// visibleEvent loads an event with its groups and answers ErrNotFound when the caller cannot see it.
func (d *Deps) visibleEvent(c *gin.Context, id int64) (*models.Event, error) {
	var ev models.Event
	if err := d.DB.WithContext(c).First(&ev, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("event %w", ErrNotFound)
		}
		return nil, err
	}
	events := []models.Event{ev}
	if err := audience.AttachGroups(c, d.DB, events); err != nil {
		return nil, err
	}
	ev = events[0]

	viewer, err := audience.LoadViewer(c, d.DB, auth.CurrentProfile(c))
	if err != nil {
		return nil, err
	}
	if !viewer.CanSee(ev.GroupIDs) {
		return nil, fmt.Errorf("event %w", ErrNotFound)
	}
	return &ev, nil
}

// ListEvents returns the events visible to the caller ordered by start, optionally within ?from=&to=.
func ListEvents(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := d.DB.WithContext(c).Order("starts_at, id")
		if s := c.Query("from"); s != "" {
			from, err := parseTimeParam(s)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
				return
			}
			query = query.Where("ends_at >= ?", from)
		}
		if s := c.Query("to"); s != "" {
			to, err := parseTimeParam(s)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
				return
			}
			query = query.Where("starts_at < ?", to)
		}
		if c.Query("include_cancelled") == "false" {
			query = query.Where("cancelled = ?", false)
		}

		var events []models.Event
		if err := query.Find(&events).Error; err != nil {
			d.respond(c, err)
			return
		}
		if err := audience.AttachGroups(c, d.DB, events); err != nil {
			d.respond(c, err)
			return
		}
		viewer, err := audience.LoadViewer(c, d.DB, auth.CurrentProfile(c))
		if err != nil {
			d.respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": viewer.Filter(events)})
	}
}

func GetEvent(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		ev, err := d.visibleEvent(c, id)
		if err != nil {
			d.respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"event": ev})
	}
}

type eventInput struct {
	Title       *string    `json:"title" binding:"omitempty,max=200"`
	Description *string    `json:"description"`
	Location    *string    `json:"location" binding:"omitempty,max=255"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	AllDay      *bool      `json:"all_day"`
	GroupIDs    *[]int64   `json:"group_ids"`
	Notify      bool       `json:"notify"`
}

func (in eventInput) apply(ev *models.Event) error {
	if in.Title != nil {
		ev.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		ev.Description = *in.Description
	}
	if in.Location != nil {
		ev.Location = strings.TrimSpace(*in.Location)
	}
	if in.StartsAt != nil {
		ev.StartsAt = in.StartsAt.UTC()
	}
	if in.EndsAt != nil {
		ev.EndsAt = in.EndsAt.UTC()
	}
	if in.AllDay != nil {
		ev.AllDay = *in.AllDay
	}

	if ev.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if ev.StartsAt.IsZero() || ev.EndsAt.IsZero() {
		return fmt.Errorf("%w: starts_at and ends_at are required", ErrInvalid)
	}
	if ev.AllDay {
		if ev.EndsAt.Before(ev.StartsAt) {
			return fmt.Errorf("%w: ends_at must not be before starts_at", ErrInvalid)
		}
	} else if !ev.EndsAt.After(ev.StartsAt) {
		return fmt.Errorf("%w: ends_at must be after starts_at", ErrInvalid)
	}
	return nil
}

// replaceEventGroups validates the group ids and rewrites the event's event_groups rows.
func replaceEventGroups(tx *gorm.DB, eventID int64, groupIDs []int64) ([]int64, error) {
	ids := uniqueIDs(groupIDs)
	if len(ids) > 0 {
		var found int64
		if err := tx.Model(&models.Group{}).Where("id IN ?", ids).Count(&found).Error; err != nil {
			return nil, err
		}
		if int(found) != len(ids) {
			return nil, fmt.Errorf("%w: unknown group id", ErrInvalid)
		}
	}
	if err := tx.Where("event_id = ?", eventID).Delete(&models.EventGroup{}).Error; err != nil {
		return nil, err
	}
	for _, gid := range ids {
		if err := tx.Create(&models.EventGroup{EventID: eventID, GroupID: gid}).Error; err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// CreateEvent stores an event; with "notify": true an immediate notification goes to its audience.
func CreateEvent(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input eventInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}
		ev := models.Event{CreatedBy: auth.CurrentProfile(c).ID}
		if err := input.apply(&ev); err != nil {
			d.respond(c, err)
			return
		}

		err := d.DB.WithContext(c).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&ev).Error; err != nil {
				return err
			}
			var groups []int64
			if input.GroupIDs != nil {
				groups = *input.GroupIDs
			}
			ids, err := replaceEventGroups(tx, ev.ID, groups)
			ev.GroupIDs = ids
			return err
		})
		if err != nil {
			d.respond(c, err)
			return
		}

		d.record(c, audit.Entry{
			Action: "events.create", ResourceType: "event", ResourceID: ev.ID,
			Metadata: map[string]interface{}{"title": ev.Title, "group_ids": ev.GroupIDs},
		})

		resp := gin.H{"event": ev}
		if input.Notify {
			n, err := d.notifyEvent(c, &ev, "New event: "+ev.Title)
			if err != nil {
				d.respond(c, err)
				return
			}
			resp["notification"] = n
		}
		c.JSON(http.StatusCreated, resp)
	}
}

func (d *Deps) notifyEvent(c *gin.Context, ev *models.Event, title string) (*models.ScheduledNotification, error) {
	body := ev.StartsAt.UTC().Format("Mon 2 Jan 15:04 MST")
	if ev.AllDay {
		body = ev.StartsAt.UTC().Format("Mon 2 Jan")
	}
	if ev.Location != "" {
		body += " at " + ev.Location
	}
	eventID := ev.ID
	n := models.ScheduledNotification{
		Title:     title,
		Body:      body,
		Audience:  models.AudienceEvent,
		EventID:   &eventID,
		Channels:  models.ChannelPush,
		CreatedBy: auth.CurrentProfile(c).ID,
	}
	if err := notify.Schedule(c, d.DB, &n, d.now()); err != nil {
		return nil, err
	}
	return &n, nil
}

func UpdateEvent(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var input eventInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		ev, err := d.visibleEvent(c, id)
		if err != nil {
			d.respond(c, err)
			return
		}
		if err := input.apply(ev); err != nil {
			d.respond(c, err)
			return
		}

		err = d.DB.WithContext(c).Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(ev).Error; err != nil {
				return err
			}
			if input.GroupIDs != nil {
				ids, err := replaceEventGroups(tx, ev.ID, *input.GroupIDs)
				ev.GroupIDs = ids
				return err
			}
			return nil
		})
		if err != nil {
			d.respond(c, err)
			return
		}

		d.record(c, audit.Entry{Action: "events.update", ResourceType: "event", ResourceID: ev.ID})
		resp := gin.H{"event": ev}
		if input.Notify {
			n, err := d.notifyEvent(c, ev, "Event updated: "+ev.Title)
			if err != nil {
				d.respond(c, err)
				return
			}
			resp["notification"] = n
		}
		c.JSON(http.StatusOK, resp)
	}
}

// CancelEvent marks an event cancelled and tells its audience.
func CancelEvent(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		ev, err := d.visibleEvent(c, id)
		if err != nil {
			d.respond(c, err)
			return
		}
		if ev.Cancelled {
			d.respond(c, fmt.Errorf("%w: event already cancelled", ErrConflict))
			return
		}
		if err := d.DB.WithContext(c).Model(ev).Update("cancelled", true).Error; err != nil {
			d.respond(c, err)
			return
		}
		ev.Cancelled = true

		d.record(c, audit.Entry{
			Action: "events.cancel", ResourceType: "event", ResourceID: ev.ID,
			Metadata: map[string]interface{}{"title": ev.Title},
		})
		if _, err := d.notifyEvent(c, ev, "Cancelled: "+ev.Title); err != nil {
			d.Log.Warn("failed to schedule cancellation notice for event ", ev.ID, ": ", err)
		}
		c.JSON(http.StatusOK, gin.H{"event": ev})
	}
}

// DeleteEvent removes an event with its group links and RSVPs.
func DeleteEvent(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var ev models.Event
		err := d.DB.WithContext(c).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&ev, id).Error; err != nil {
				return err
			}
			if err := tx.Where("event_id = ?", id).Delete(&models.EventGroup{}).Error; err != nil {
				return err
			}
			if err := tx.Where("event_id = ?", id).Delete(&models.RSVP{}).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.ScheduledNotification{}).
				Where("event_id = ? AND status = ?", id, models.NotificationPending).
				Update("status", models.NotificationCancelled).Error; err != nil {
				return err
			}
			return tx.Delete(&ev).Error
		})
		if err != nil {
			d.respond(c, err)
			return
		}
		d.record(c, audit.Entry{
			Action: "events.delete", ResourceType: "event", ResourceID: id,
			Metadata: map[string]interface{}{"title": ev.Title},
		})
		c.Status(http.StatusNoContent)
	}
}
