package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"clubhub/internal/logger"
	"clubhub/internal/models"
)

// Stats summarizes one notification's deliveries.
type Stats struct {
	Recipients  int `json:"recipients"`
	PushSent    int `json:"push_sent"`
	PushFailed  int `json:"push_failed"`
	PushExpired int `json:"push_expired"`
	EmailSent   int `json:"email_sent"`
	EmailFailed int `json:"email_failed"`
}

func (s Stats) attempted() int {
	return s.PushSent + s.PushFailed + s.EmailSent + s.EmailFailed
}

func (s Stats) delivered() int {
	return s.PushSent + s.EmailSent
}

// Dispatcher sends due scheduled notifications.
type Dispatcher struct {
	db      *gorm.DB
	push    PushSender
	mail    Mailer
	log     logger.Logger
	baseURL string
}

func NewDispatcher(db *gorm.DB, push PushSender, mail Mailer, log logger.Logger, baseURL string) *Dispatcher {
	return &Dispatcher{db: db, push: push, mail: mail, log: log, baseURL: strings.TrimRight(baseURL, "/")}
}

// Run calls RunOnce every interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := d.RunOnce(ctx, time.Now()); err != nil && !errors.Is(err, context.Canceled) {
			d.log.Error("notification dispatch failed: ", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ClaimLease is how long a row may stay in sending before another pass takes it over.
const ClaimLease = 10 * time.Minute

// RunOnce delivers every pending notification due at now and returns how many were processed.
// Rows left in sending by a crashed dispatcher are picked up again once their lease expires.
func (d *Dispatcher) RunOnce(ctx context.Context, now time.Time) (int, error) {
	stale := now.Add(-ClaimLease)

	var due []models.ScheduledNotification
	if err := d.db.WithContext(ctx).
		Where("send_at <= ?", now).
		Where(d.claimable(stale)).
		Order("send_at, id").
		Find(&due).Error; err != nil {
		return 0, fmt.Errorf("failed to load due notifications: %w", err)
	}

	processed := 0
	for i := range due {
		n := &due[i]
		claimed, err := d.claim(ctx, n, now, stale)
		if err != nil {
			return processed, err
		}
		if !claimed {
			continue
		}

		stats, sendErr := d.deliver(ctx, n)
		if ctx.Err() != nil {
			// Interrupted mid-delivery: hand the row back so the next run retries it.
			d.release(n)
			return processed, ctx.Err()
		}
		if err := d.finish(context.WithoutCancel(ctx), n, stats, sendErr, now); err != nil {
			return processed, err
		}
		processed++
	}
	return processed, nil
}

func (d *Dispatcher) claimable(stale time.Time) *gorm.DB {
	return d.db.Where("status = ?", models.NotificationPending).
		Or("status = ? AND claimed_at < ?", models.NotificationSending, stale)
}

// claim moves a row to sending so concurrent dispatchers skip it.
func (d *Dispatcher) claim(ctx context.Context, n *models.ScheduledNotification, now, stale time.Time) (bool, error) {
	res := d.db.WithContext(ctx).Model(&models.ScheduledNotification{}).
		Where("id = ?", n.ID).
		Where(d.claimable(stale)).
		Updates(map[string]interface{}{"status": models.NotificationSending, "claimed_at": now})
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim notification %d: %w", n.ID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// release returns a claimed row to pending. It runs detached from the
// dispatcher context, which is already cancelled when this is called.
func (d *Dispatcher) release(n *models.ScheduledNotification) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := d.db.WithContext(ctx).Model(&models.ScheduledNotification{}).
		Where("id = ? AND status = ?", n.ID, models.NotificationSending).
		Updates(map[string]interface{}{"status": models.NotificationPending, "claimed_at": nil}).Error
	if err != nil {
		d.log.Error("failed to release notification ", n.ID, ": ", err)
		return
	}
	d.log.Warn("notification ", n.ID, " interrupted, returned to pending")
}

func (d *Dispatcher) deliver(ctx context.Context, n *models.ScheduledNotification) (Stats, error) {
	var stats Stats

	recipients, err := ResolveRecipients(ctx, d.db, n)
	if err != nil {
		return stats, err
	}
	stats.Recipients = len(recipients)
	if len(recipients) == 0 {
		return stats, nil
	}

	if HasChannel(n, models.ChannelPush) {
		if err := d.sendPush(ctx, n, recipients, &stats); err != nil {
			return stats, err
		}
	}
	if HasChannel(n, models.ChannelEmail) {
		d.sendEmail(ctx, n, recipients, &stats)
	}

	if stats.attempted() > 0 && stats.delivered() == 0 {
		return stats, errors.New("every delivery failed")
	}
	return stats, nil
}

func (d *Dispatcher) sendPush(ctx context.Context, n *models.ScheduledNotification, recipients []models.Profile, stats *Stats) error {
	ids := make([]int64, len(recipients))
	for i, p := range recipients {
		ids[i] = p.ID
	}

	var subs []models.PushSubscription
	if err := d.db.WithContext(ctx).Where("profile_id IN ?", ids).Find(&subs).Error; err != nil {
		return fmt.Errorf("failed to load push subscriptions: %w", err)
	}

	payload := Payload{Title: n.Title, Body: n.Body, URL: d.link(n), Tag: fmt.Sprintf("notification-%d", n.ID)}
	for _, sub := range subs {
		err := d.push.Send(ctx, sub, payload)
		switch {
		case err == nil:
			stats.PushSent++
		case errors.Is(err, ErrSubscriptionGone):
			stats.PushExpired++
			if delErr := d.db.WithContext(ctx).Delete(&models.PushSubscription{}, sub.ID).Error; delErr != nil {
				d.log.Warn("failed to delete expired push subscription ", sub.ID, ": ", delErr)
			}
		default:
			stats.PushFailed++
			d.log.Warn("push to subscription ", sub.ID, " failed: ", err)
		}
	}
	return nil
}

func (d *Dispatcher) sendEmail(ctx context.Context, n *models.ScheduledNotification, recipients []models.Profile, stats *Stats) {
	body := n.Body
	if link := d.link(n); link != "" {
		body += "\n\n" + link
	}

	msgs := make([]Message, 0, len(recipients))
	for _, p := range recipients {
		msgs = append(msgs, Message{To: p.Email, Subject: n.Title, Body: body})
	}
	if err := d.mail.Send(ctx, msgs...); err != nil {
		stats.EmailFailed += len(msgs)
		d.log.Warn("email for notification ", n.ID, " failed: ", err)
		return
	}
	stats.EmailSent += len(msgs)
}

func (d *Dispatcher) finish(ctx context.Context, n *models.ScheduledNotification, stats Stats, sendErr error, now time.Time) error {
	raw, _ := json.Marshal(stats)
	updates := map[string]interface{}{
		"status":  models.NotificationSent,
		"sent_at": now,
		"stats":   datatypes.JSON(raw),
		"error":   "",
	}
	if sendErr != nil {
		updates["status"] = models.NotificationFailed
		updates["error"] = sendErr.Error()
		d.log.Error("notification ", n.ID, " failed: ", sendErr)
	} else {
		d.log.Info("notification ", n.ID, " sent to ", stats.Recipients, " recipients")
	}

	if err := d.db.WithContext(ctx).Model(&models.ScheduledNotification{}).
		Where("id = ?", n.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update notification %d: %w", n.ID, err)
	}
	return nil
}

// link resolves relative notification URLs against the public base URL.
func (d *Dispatcher) link(n *models.ScheduledNotification) string {
	switch {
	case n.URL == "" && n.EventID != nil:
		return fmt.Sprintf("%s/events/%d", d.baseURL, *n.EventID)
	case strings.HasPrefix(n.URL, "/"):
		return d.baseURL + n.URL
	default:
		return n.URL
	}
}
