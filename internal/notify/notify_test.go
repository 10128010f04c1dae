package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"clubhub/internal/db"
	"clubhub/internal/logger"
	"clubhub/internal/models"
)

type fixture struct {
	db       *gorm.DB
	juniors  models.Group
	seniors  models.Group
	parent   models.Profile
	coach    models.Profile
	other    models.Profile
	inactive models.Profile
}

func setup(t *testing.T) *fixture {
	t.Helper()
	gdb := db.NewTestDB(t)
	f := &fixture{db: gdb}

	f.juniors = models.Group{Name: "Juniors"}
	f.seniors = models.Group{Name: "Seniors"}
	require.NoError(t, gdb.Create(&f.juniors).Error)
	require.NoError(t, gdb.Create(&f.seniors).Error)

	mk := func(email string, status models.ProfileStatus) models.Profile {
		p := models.Profile{Email: email, Status: status, CalendarToken: email}
		require.NoError(t, gdb.Create(&p).Error)
		return p
	}
	f.parent = mk("parent@example.org", models.ProfileActive)
	f.coach = mk("coach@example.org", models.ProfileActive)
	f.other = mk("other@example.org", models.ProfileActive)
	f.inactive = mk("gone@example.org", models.ProfileSuspended)

	rider := models.Rider{FirstName: "Ava", LastName: "Hill", GroupID: &f.juniors.ID, Active: true}
	require.NoError(t, gdb.Create(&rider).Error)
	require.NoError(t, gdb.Create(&models.RiderParent{RiderID: rider.ID, ProfileID: f.parent.ID}).Error)
	require.NoError(t, gdb.Create(&models.RiderParent{RiderID: rider.ID, ProfileID: f.inactive.ID}).Error)
	require.NoError(t, gdb.Create(&models.GroupCoach{GroupID: f.juniors.ID, ProfileID: f.coach.ID}).Error)
	return f
}

func emails(ps []models.Profile) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Email
	}
	return out
}

func TestNormalizeChannels(t *testing.T) {
	got, err := NormalizeChannels(nil)
	require.NoError(t, err)
	assert.Equal(t, "push", got)

	got, err = NormalizeChannels([]string{"Email", "push", "email"})
	require.NoError(t, err)
	assert.Equal(t, "email,push", got)

	_, err = NormalizeChannels([]string{"sms"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSchedule_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Now()
	missing := int64(999)

	tests := []struct {
		name string
		n    models.ScheduledNotification
		ok   bool
	}{
		{name: "all", n: models.ScheduledNotification{Title: "Hi", Audience: models.AudienceAll}, ok: true},
		{name: "blank title", n: models.ScheduledNotification{Title: "  ", Audience: models.AudienceAll}},
		{name: "group without id", n: models.ScheduledNotification{Title: "Hi", Audience: models.AudienceGroup}},
		{name: "unknown group", n: models.ScheduledNotification{Title: "Hi", Audience: models.AudienceGroup, GroupID: &missing}},
		{name: "group", n: models.ScheduledNotification{Title: "Hi", Audience: models.AudienceGroup, GroupID: &f.juniors.ID}, ok: true},
		{name: "unknown event", n: models.ScheduledNotification{Title: "Hi", Audience: models.AudienceEvent, EventID: &missing}},
		{name: "bad audience", n: models.ScheduledNotification{Title: "Hi", Audience: "everyone"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := tt.n
			err := Schedule(ctx, f.db, &n, now)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.NotificationPending, n.Status)
			assert.Equal(t, "push", n.Channels)
			assert.False(t, n.SendAt.IsZero())
		})
	}
}

func TestResolveRecipients(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Now()

	all, err := ResolveRecipients(ctx, f.db, &models.ScheduledNotification{Audience: models.AudienceAll})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"parent@example.org", "coach@example.org", "other@example.org"}, emails(all))

	group, err := ResolveRecipients(ctx, f.db, &models.ScheduledNotification{Audience: models.AudienceGroup, GroupID: &f.juniors.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"parent@example.org", "coach@example.org"}, emails(group))

	empty, err := ResolveRecipients(ctx, f.db, &models.ScheduledNotification{Audience: models.AudienceGroup, GroupID: &f.seniors.ID})
	require.NoError(t, err)
	assert.Empty(t, empty)

	open := models.Event{Title: "Open", StartsAt: now, EndsAt: now.Add(time.Hour)}
	require.NoError(t, f.db.Create(&open).Error)
	everyone, err := ResolveRecipients(ctx, f.db, &models.ScheduledNotification{Audience: models.AudienceEvent, EventID: &open.ID})
	require.NoError(t, err)
	assert.Len(t, everyone, 3)

	juniorsOnly := models.Event{Title: "Juniors", StartsAt: now, EndsAt: now.Add(time.Hour)}
	require.NoError(t, f.db.Create(&juniorsOnly).Error)
	require.NoError(t, f.db.Create(&models.EventGroup{EventID: juniorsOnly.ID, GroupID: f.juniors.ID}).Error)
	scoped, err := ResolveRecipients(ctx, f.db, &models.ScheduledNotification{Audience: models.AudienceEvent, EventID: &juniorsOnly.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"parent@example.org", "coach@example.org"}, emails(scoped))
}

func TestDispatcher_RunOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Now()

	liveSub := models.PushSubscription{ProfileID: f.parent.ID, Endpoint: "https://push.example/live", P256dh: "k", Auth: "a"}
	goneSub := models.PushSubscription{ProfileID: f.coach.ID, Endpoint: "https://push.example/gone", P256dh: "k", Auth: "a"}
	otherSub := models.PushSubscription{ProfileID: f.other.ID, Endpoint: "https://push.example/other", P256dh: "k", Auth: "a"}
	require.NoError(t, f.db.Create(&liveSub).Error)
	require.NoError(t, f.db.Create(&goneSub).Error)
	require.NoError(t, f.db.Create(&otherSub).Error)

	due := models.ScheduledNotification{Title: "Ride moved", Body: "Now at 10:00", URL: "/events/1", Audience: models.AudienceGroup, GroupID: &f.juniors.ID, Channels: "push,email"}
	require.NoError(t, Schedule(ctx, f.db, &due, now.Add(-time.Minute)))
	later := models.ScheduledNotification{Title: "Later", Audience: models.AudienceAll, SendAt: now.Add(time.Hour)}
	require.NoError(t, Schedule(ctx, f.db, &later, now))

	push := new(MockPushSender)
	push.On("Send", mock.Anything, mock.MatchedBy(func(s models.PushSubscription) bool { return s.Endpoint == liveSub.Endpoint }), mock.MatchedBy(func(p Payload) bool {
		return p.Title == "Ride moved" && p.URL == "https://club.example.org/events/1"
	})).Return(nil).Once()
	push.On("Send", mock.Anything, mock.MatchedBy(func(s models.PushSubscription) bool { return s.Endpoint == goneSub.Endpoint }), mock.Anything).
		Return(ErrSubscriptionGone).Once()

	mailer := new(MockMailer)
	mailer.On("Send", mock.Anything, mock.MatchedBy(func(msgs []Message) bool { return len(msgs) == 2 })).Return(nil).Once()

	d := NewDispatcher(f.db, push, mailer, logger.NewNopLogger(), "https://club.example.org/")
	processed, err := d.RunOnce(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	push.AssertExpectations(t)
	mailer.AssertExpectations(t)

	var reloaded models.ScheduledNotification
	require.NoError(t, f.db.First(&reloaded, due.ID).Error)
	assert.Equal(t, models.NotificationSent, reloaded.Status)
	require.NotNil(t, reloaded.SentAt)

	var stats Stats
	require.NoError(t, json.Unmarshal(reloaded.Stats, &stats))
	assert.Equal(t, Stats{Recipients: 2, PushSent: 1, PushExpired: 1, EmailSent: 2}, stats)

	var subs int64
	require.NoError(t, f.db.Model(&models.PushSubscription{}).Where("endpoint = ?", goneSub.Endpoint).Count(&subs).Error)
	assert.Zero(t, subs, "expired subscription must be removed")

	var laterRow models.ScheduledNotification
	require.NoError(t, f.db.First(&laterRow, later.ID).Error)
	assert.Equal(t, models.NotificationPending, laterRow.Status)

	processed, err = d.RunOnce(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, processed, "sent notifications are not resent")
}

func TestDispatcher_AllDeliveriesFail(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Now()

	n := models.ScheduledNotification{Title: "Hello", Audience: models.AudienceAll, Channels: "email"}
	require.NoError(t, Schedule(ctx, f.db, &n, now))

	mailer := new(MockMailer)
	mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	d := NewDispatcher(f.db, new(MockPushSender), mailer, logger.NewNopLogger(), "https://club.example.org")
	_, err := d.RunOnce(ctx, now)
	require.NoError(t, err)

	var reloaded models.ScheduledNotification
	require.NoError(t, f.db.First(&reloaded, n.ID).Error)
	assert.Equal(t, models.NotificationFailed, reloaded.Status)
	assert.Equal(t, "every delivery failed", reloaded.Error)
}

func TestDispatcher_InterruptedDeliveryIsRetried(t *testing.T) {
	f := setup(t)
	now := time.Now()

	sub := models.PushSubscription{ProfileID: f.parent.ID, Endpoint: "https://push.example/live", P256dh: "k", Auth: "a"}
	require.NoError(t, f.db.Create(&sub).Error)

	n := models.ScheduledNotification{Title: "Shutdown", Audience: models.AudienceGroup, GroupID: &f.juniors.ID, Channels: "push"}
	require.NoError(t, Schedule(context.Background(), f.db, &n, now))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	push := new(MockPushSender)
	push.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil).Once()

	d := NewDispatcher(f.db, push, new(MockMailer), logger.NewNopLogger(), "https://club.example.org")
	processed, err := d.RunOnce(ctx, now)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, processed)

	var row models.ScheduledNotification
	require.NoError(t, f.db.First(&row, n.ID).Error)
	assert.Equal(t, models.NotificationPending, row.Status, "interrupted notification must go back to pending")
	assert.Nil(t, row.ClaimedAt)

	push.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	processed, err = d.RunOnce(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	var sent models.ScheduledNotification
	require.NoError(t, f.db.First(&sent, n.ID).Error)
	assert.Equal(t, models.NotificationSent, sent.Status)
	push.AssertExpectations(t)
}

func TestDispatcher_ReclaimsExpiredLease(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Now()

	stuckAt := now.Add(-2 * ClaimLease)
	freshAt := now.Add(-time.Minute)
	stuck := models.ScheduledNotification{Title: "Stuck", Audience: models.AudienceAll, Channels: "email",
		SendAt: stuckAt, Status: models.NotificationSending, ClaimedAt: &stuckAt}
	busy := models.ScheduledNotification{Title: "Busy", Audience: models.AudienceAll, Channels: "email",
		SendAt: freshAt, Status: models.NotificationSending, ClaimedAt: &freshAt}
	require.NoError(t, f.db.Create(&stuck).Error)
	require.NoError(t, f.db.Create(&busy).Error)

	mailer := new(MockMailer)
	mailer.On("Send", mock.Anything, mock.MatchedBy(func(msgs []Message) bool {
		return len(msgs) > 0 && msgs[0].Subject == "Stuck"
	})).Return(nil).Once()

	d := NewDispatcher(f.db, new(MockPushSender), mailer, logger.NewNopLogger(), "https://club.example.org")
	processed, err := d.RunOnce(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	mailer.AssertExpectations(t)

	var stuckRow, busyRow models.ScheduledNotification
	require.NoError(t, f.db.First(&stuckRow, stuck.ID).Error)
	require.NoError(t, f.db.First(&busyRow, busy.ID).Error)
	assert.Equal(t, models.NotificationSent, stuckRow.Status)
	assert.Equal(t, models.NotificationSending, busyRow.Status, "a live claim must not be taken over")
}
