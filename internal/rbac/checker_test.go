package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubhub/internal/db"
	"clubhub/internal/models"
)

func TestChecker_Can(t *testing.T) {
	chk := Checker{}

	admin := &models.Profile{IsAdmin: true}
	coach := &models.Profile{IsCoach: true}
	parent := &models.Profile{IsParent: true}

	assert.True(t, chk.Can(admin, CapAdmin))
	assert.True(t, chk.Can(admin, CapStaff))
	assert.False(t, chk.Can(coach, CapAdmin))
	assert.True(t, chk.Can(coach, CapStaff))
	assert.False(t, chk.Can(parent, CapStaff))
	assert.False(t, chk.Can(nil, CapStaff))
	assert.False(t, chk.Can(admin, "unknown"))
}

func TestChecker_RiderAccess(t *testing.T) {
	ctx := context.Background()
	gdb := db.NewTestDB(t)
	chk := Checker{DB: gdb}

	g := models.Group{Name: "Juniors"}
	require.NoError(t, gdb.Create(&g).Error)
	rider := models.Rider{FirstName: "Ava", LastName: "Hill", GroupID: &g.ID, Active: true}
	require.NoError(t, gdb.Create(&rider).Error)

	parent := models.Profile{ID: 10, IsParent: true}
	stranger := models.Profile{ID: 11, IsParent: true}
	coach := models.Profile{ID: 12, IsCoach: true}
	otherCoach := models.Profile{ID: 13, IsCoach: true}

	require.NoError(t, gdb.Create(&models.RiderParent{RiderID: rider.ID, ProfileID: parent.ID}).Error)
	require.NoError(t, gdb.Create(&models.GroupCoach{GroupID: g.ID, ProfileID: coach.ID}).Error)

	tests := []struct {
		name    string
		profile *models.Profile
		view    bool
		respond bool
	}{
		{name: "parent", profile: &parent, view: true, respond: true},
		{name: "stranger", profile: &stranger, view: false, respond: false},
		{name: "group coach", profile: &coach, view: true, respond: true},
		{name: "other coach", profile: &otherCoach, view: true, respond: false},
		{name: "admin", profile: &models.Profile{ID: 14, IsAdmin: true}, view: true, respond: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := chk.CanViewRider(ctx, tt.profile, rider.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.view, view)

			respond, err := chk.CanRespondForRider(ctx, tt.profile, &rider)
			require.NoError(t, err)
			assert.Equal(t, tt.respond, respond)
		})
	}

	ids, err := chk.ChildRiderIDs(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{rider.ID}, ids)
}
