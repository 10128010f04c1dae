package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubhub/internal/db"
	"clubhub/internal/models"
)

func ptr(v int64) *int64 { return &v }

func rsvpRider(riderID int64, status models.RSVPStatus) models.RSVP {
	return models.RSVP{RiderID: ptr(riderID), Status: status}
}

func rsvpCoach(profileID int64, status models.RSVPStatus) models.RSVP {
	return models.RSVP{ProfileID: ptr(profileID), Status: status}
}

func findBucket(t *testing.T, d *Dashboard, name string) Bucket {
	t.Helper()
	for _, b := range d.Groups {
		if b.GroupName == name {
			return b
		}
	}
	t.Fatalf("bucket %q not found", name)
	return Bucket{}
}

func TestRatioLabel(t *testing.T) {
	assert.Equal(t, "6:1", RatioLabel(6))
	assert.Equal(t, "4.5:1", RatioLabel(4.5))
	assert.Equal(t, "3.3:1", RatioLabel(10.0/3))
	assert.Equal(t, "0:1", RatioLabel(0))
}

func TestBuild_GroupedEvent(t *testing.T) {
	groups := []models.Group{
		{ID: 1, Name: "Juniors", SortOrder: 2},
		{ID: 2, Name: "Seniors", SortOrder: 1},
		{ID: 3, Name: "Racing", SortOrder: 3},
	}
	riders := []models.Rider{
		{ID: 10, FirstName: "Zoe", LastName: "Adams", GroupID: ptr(1), Active: true},
		{ID: 11, FirstName: "Ava", LastName: "Brown", GroupID: ptr(1), Active: true},
		{ID: 12, FirstName: "Ben", LastName: "Adams", GroupID: ptr(1), Active: true},
		{ID: 13, FirstName: "Cal", LastName: "Cole", GroupID: ptr(2), Active: true},
		{ID: 14, FirstName: "Dee", LastName: "Dunn", GroupID: ptr(2), Active: false},
		// Outside the event's groups but responded anyway.
		{ID: 15, FirstName: "Eve", LastName: "East", GroupID: ptr(3), Active: true},
	}
	rsvps := []models.RSVP{
		rsvpRider(10, models.RSVPGoing),
		rsvpRider(11, models.RSVPGoing),
		rsvpRider(12, models.RSVPMaybe),
		rsvpRider(13, models.RSVPGoing),
		rsvpRider(15, models.RSVPNotGoing),
		rsvpCoach(100, models.RSVPGoing),
		rsvpCoach(101, models.RSVPGoing),
		rsvpCoach(102, models.RSVPNotGoing),
	}
	coaches := []models.Profile{
		{ID: 100, FullName: "Coach Amy"},
		{ID: 101, FullName: "Coach Bob"},
		{ID: 102, FullName: "Coach Cat"},
	}

	d := Build(Input{
		Event:       models.Event{ID: 1, Title: "Club ride", GroupIDs: []int64{1, 2}},
		Groups:      groups,
		Riders:      riders,
		RSVPs:       rsvps,
		Coaches:     coaches,
		CoachGroups: map[int64][]int64{100: {1}, 102: {2}},
		TargetRatio: 1.5,
	})

	require.Len(t, d.Groups, 3)
	assert.Equal(t, "Seniors", d.Groups[0].GroupName)
	assert.Equal(t, "Juniors", d.Groups[1].GroupName)
	assert.Equal(t, "Racing", d.Groups[2].GroupName)

	juniors := findBucket(t, d, "Juniors")
	assert.Equal(t, Counts{Going: 2, Maybe: 1, Coaches: 1}, juniors.Counts)
	assert.Equal(t, "Zoe", juniors.Going[0].FirstName, "riders sort by last name first")
	require.NotNil(t, juniors.Ratio)
	assert.Equal(t, 2.0, *juniors.Ratio)
	assert.Equal(t, "2:1", juniors.RatioLabel)
	assert.True(t, juniors.Understaffed)
	assert.False(t, juniors.NeedsCoach)

	seniors := findBucket(t, d, "Seniors")
	assert.Equal(t, 1, seniors.Counts.Going)
	assert.Equal(t, 0, seniors.Counts.NoResponse, "inactive riders are out of scope")
	assert.Nil(t, seniors.Ratio)
	assert.True(t, seniors.NeedsCoach)

	racing := findBucket(t, d, "Racing")
	assert.Equal(t, 1, racing.Counts.NotGoing)
	assert.False(t, racing.NeedsCoach)

	require.Len(t, d.UnassignedCoaches, 1)
	assert.Equal(t, "Coach Bob", d.UnassignedCoaches[0].Name)

	assert.Equal(t, Counts{Going: 3, Maybe: 1, NotGoing: 1, Coaches: 2}, d.Totals)
}

func TestBuild_UngroupedEventIncludesEveryone(t *testing.T) {
	d := Build(Input{
		Event:  models.Event{ID: 2, Title: "Social", GroupIDs: []int64{}},
		Groups: []models.Group{{ID: 1, Name: "Juniors"}},
		Riders: []models.Rider{
			{ID: 1, FirstName: "A", LastName: "One", GroupID: ptr(1), Active: true},
			{ID: 2, FirstName: "B", LastName: "Two", Active: true},
		},
		RSVPs: []models.RSVP{rsvpRider(2, models.RSVPGoing)},
	})

	require.Len(t, d.Groups, 2)
	assert.Equal(t, "Juniors", d.Groups[0].GroupName)
	assert.Equal(t, UnassignedGroupName, d.Groups[1].GroupName)
	assert.Nil(t, d.Groups[1].GroupID)
	assert.Equal(t, 1, d.Groups[0].Counts.NoResponse)
	assert.Equal(t, 1, d.Groups[1].Counts.Going)
	assert.Equal(t, Counts{Going: 1, NoResponse: 1}, d.Totals)
}

func TestBuild_UngroupedEventListsEveryGroup(t *testing.T) {
	d := Build(Input{
		Event: models.Event{ID: 4, Title: "Open day", GroupIDs: []int64{}},
		Groups: []models.Group{
			{ID: 1, Name: "Juniors", SortOrder: 1},
			{ID: 2, Name: "Seniors", SortOrder: 2},
		},
		Riders: []models.Rider{
			{ID: 1, FirstName: "A", LastName: "One", GroupID: ptr(1), Active: true},
		},
		RSVPs:       []models.RSVP{rsvpCoach(50, models.RSVPGoing)},
		Coaches:     []models.Profile{{ID: 50, FullName: "Sam Seniors"}},
		CoachGroups: map[int64][]int64{50: {2}},
		TargetRatio: 6,
	})

	require.Len(t, d.Groups, 2)
	assert.Equal(t, "Juniors", d.Groups[0].GroupName)
	seniors := findBucket(t, d, "Seniors")
	assert.Equal(t, Counts{Coaches: 1}, seniors.Counts)
	require.Len(t, seniors.Coaches, 1)
	assert.Equal(t, "Sam Seniors", seniors.Coaches[0].Name)
	assert.Empty(t, d.UnassignedCoaches, "a coach of an in-scope group is never unassigned")
}

func TestBuild_EmptyGroupStillListed(t *testing.T) {
	d := Build(Input{
		Event:  models.Event{ID: 3, GroupIDs: []int64{4}},
		Groups: []models.Group{{ID: 4, Name: "Minis"}},
	})
	require.Len(t, d.Groups, 1)
	b := d.Groups[0]
	assert.Equal(t, "Minis", b.GroupName)
	assert.NotNil(t, b.Going)
	assert.NotNil(t, b.Coaches)
	assert.False(t, b.NeedsCoach)
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	gdb := db.NewTestDB(t)

	juniors := models.Group{Name: "Juniors"}
	require.NoError(t, gdb.Create(&juniors).Error)
	coach := models.Profile{Email: "coach@example.org", FullName: "Coach", IsCoach: true, CalendarToken: "c1", Status: models.ProfileActive}
	require.NoError(t, gdb.Create(&coach).Error)
	require.NoError(t, gdb.Create(&models.GroupCoach{GroupID: juniors.ID, ProfileID: coach.ID}).Error)

	riders := []models.Rider{
		{FirstName: "A", LastName: "One", GroupID: &juniors.ID, Active: true},
		{FirstName: "B", LastName: "Two", GroupID: &juniors.ID, Active: true},
		{FirstName: "C", LastName: "Three", Active: true},
	}
	require.NoError(t, gdb.Create(&riders).Error)

	now := time.Now()
	event := models.Event{Title: "Training", StartsAt: now, EndsAt: now.Add(time.Hour), GroupIDs: []int64{juniors.ID}}
	require.NoError(t, gdb.Create(&event).Error)
	require.NoError(t, gdb.Create(&models.EventGroup{EventID: event.ID, GroupID: juniors.ID}).Error)

	require.NoError(t, gdb.Create(&models.RSVP{EventID: event.ID, RiderID: &riders[0].ID, Status: models.RSVPGoing}).Error)
	require.NoError(t, gdb.Create(&models.RSVP{EventID: event.ID, RiderID: &riders[2].ID, Status: models.RSVPGoing}).Error)
	require.NoError(t, gdb.Create(&models.RSVP{EventID: event.ID, ProfileID: &coach.ID, Status: models.RSVPGoing}).Error)

	d, err := Load(ctx, gdb, event, 6, now)
	require.NoError(t, err)

	require.Len(t, d.Groups, 2)
	j := findBucket(t, d, "Juniors")
	assert.Equal(t, Counts{Going: 1, NoResponse: 1, Coaches: 1}, j.Counts)
	assert.Equal(t, "1:1", j.RatioLabel)

	u := findBucket(t, d, UnassignedGroupName)
	assert.Equal(t, 1, u.Counts.Going)
	assert.Equal(t, 1, d.Totals.Coaches)
}
