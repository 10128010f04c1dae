package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"clubhub/internal/models"
)

// ErrInvalid marks a notification request that fails validation.
var ErrInvalid = errors.New("invalid notification")

// NormalizeChannels validates a channel list and returns its stored form.
func NormalizeChannels(channels []string) (string, error) {
	if len(channels) == 0 {
		return models.ChannelPush, nil
	}
	seen := map[string]bool{}
	var out []string
	for _, c := range channels {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != models.ChannelPush && c != models.ChannelEmail {
			return "", fmt.Errorf("%w: unknown channel %q", ErrInvalid, c)
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return strings.Join(out, ","), nil
}

// HasChannel reports whether the stored channel list contains ch.
func HasChannel(n *models.ScheduledNotification, ch string) bool {
	for _, c := range strings.Split(n.Channels, ",") {
		if c == ch {
			return true
		}
	}
	return false
}

// Schedule validates n and stores it as pending. A zero SendAt means now.
func Schedule(ctx context.Context, db *gorm.DB, n *models.ScheduledNotification, now time.Time) error {
	n.Title = strings.TrimSpace(n.Title)
	if n.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if n.Channels == "" {
		n.Channels = models.ChannelPush
	}

	switch n.Audience {
	case models.AudienceAll:
		n.GroupID, n.EventID = nil, nil
	case models.AudienceGroup:
		if n.GroupID == nil {
			return fmt.Errorf("%w: group_id is required for group audience", ErrInvalid)
		}
		if err := mustExist(ctx, db, &models.Group{}, *n.GroupID, "group"); err != nil {
			return err
		}
		n.EventID = nil
	case models.AudienceEvent:
		if n.EventID == nil {
			return fmt.Errorf("%w: event_id is required for event audience", ErrInvalid)
		}
		if err := mustExist(ctx, db, &models.Event{}, *n.EventID, "event"); err != nil {
			return err
		}
		n.GroupID = nil
	default:
		return fmt.Errorf("%w: audience must be all, group or event", ErrInvalid)
	}

	if n.SendAt.IsZero() {
		n.SendAt = now
	}
	n.Status = models.NotificationPending
	n.SentAt = nil
	return db.WithContext(ctx).Create(n).Error
}

func mustExist(ctx context.Context, db *gorm.DB, model interface{}, id int64, name string) error {
	var count int64
	if err := db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: %s %d does not exist", ErrInvalid, name, id)
	}
	return nil
}
