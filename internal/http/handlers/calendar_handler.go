package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"clubhub/internal/audience"
	"clubhub/internal/ical"
	"clubhub/internal/models"
)

const (
	calendarProdID   = "-//Clubhub//Club Calendar//EN"
	calendarLookback = 90 * 24 * time.Hour
	calendarMIME     = "text/calendar; charset=utf-8"
)

// CalendarFeed is public: the path token identifies the profile whose audience filters the feed.
func CalendarFeed(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSuffix(c.Param("token"), ".ics")
		if token == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "calendar not found"})
			return
		}

		var profile models.Profile
		if err := d.DB.WithContext(c).Where("calendar_token = ? AND status = ?", token, models.ProfileActive).
			First(&profile).Error; err != nil {
			if statusFor(err) == http.StatusNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "calendar not found"})
				return
			}
			d.respond(c, err)
			return
		}

		now := d.now()
		var events []models.Event
		if err := d.DB.WithContext(c).Where("ends_at >= ?", now.Add(-calendarLookback)).
			Order("starts_at, id").Find(&events).Error; err != nil {
			d.respond(c, err)
			return
		}
		if err := audience.AttachGroups(c, d.DB, events); err != nil {
			d.respond(c, err)
			return
		}
		viewer, err := audience.LoadViewer(c, d.DB, &profile)
		if err != nil {
			d.respond(c, err)
			return
		}

		d.writeCalendar(c, "Club calendar", viewer.Filter(events), now)
	}
}

// EventICS exports a single visible event.
func EventICS(d *Deps) gin.HandlerFunc {
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
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="event-%d.ics"`, ev.ID))
		d.writeCalendar(c, ev.Title, []models.Event{*ev}, d.now())
	}
}

func (d *Deps) writeCalendar(c *gin.Context, name string, events []models.Event, now time.Time) {
	var groups []models.Group
	if err := d.DB.WithContext(c).Find(&groups).Error; err != nil {
		d.respond(c, err)
		return
	}
	groupNames := make(map[int64]string, len(groups))
	for _, g := range groups {
		groupNames[g.ID] = g.Name
	}

	base := strings.TrimRight(d.Config.HTTP.PublicURL, "/")
	host := "clubhub"
	if u, err := url.Parse(base); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}

	cal := ical.Calendar{ProdID: calendarProdID, Name: name}
	for _, e := range events {
		var cats []string
		for _, gid := range e.GroupIDs {
			if n, ok := groupNames[gid]; ok {
				cats = append(cats, n)
			}
		}
		cal.Events = append(cal.Events, ical.Event{
			UID:          fmt.Sprintf("event-%d@%s", e.ID, host),
			Start:        e.StartsAt,
			End:          e.EndsAt,
			AllDay:       e.AllDay,
			Summary:      e.Title,
			Description:  e.Description,
			Location:     e.Location,
			URL:          fmt.Sprintf("%s/events/%d", base, e.ID),
			Categories:   cats,
			Cancelled:    e.Cancelled,
			Stamp:        now,
			LastModified: e.UpdatedAt,
		})
	}

	var buf bytes.Buffer
	if err := ical.Write(&buf, cal); err != nil {
		d.respond(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, calendarMIME, buf.Bytes())
}
