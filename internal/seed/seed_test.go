package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubhub/internal/auth"
	"clubhub/internal/config"
	"clubhub/internal/db"
	"clubhub/internal/models"
)

func TestFirstSetup_Idempotent(t *testing.T) {
	gdb := db.NewTestDB(t)
	ctx := context.Background()
	settings := config.SeedSettings{AdminEmail: "Chair@Example.org", AdminPassword: "first-admin-pw"}

	res, err := FirstSetup(ctx, gdb, settings)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultGroups), res.GroupsCreated)
	assert.True(t, res.AdminCreated)

	res, err = FirstSetup(ctx, gdb, settings)
	require.NoError(t, err)
	assert.Zero(t, res.GroupsCreated)
	assert.False(t, res.AdminCreated)

	var admin models.Profile
	require.NoError(t, gdb.Where("email = ?", "chair@example.org").First(&admin).Error)
	assert.True(t, admin.IsAdmin)
	assert.NotEmpty(t, admin.CalendarToken)
	assert.True(t, auth.CheckPassword(admin.PasswordHash, "first-admin-pw"))

	var groups int64
	require.NoError(t, gdb.Model(&models.Group{}).Count(&groups).Error)
	assert.Equal(t, int64(len(DefaultGroups)), groups)
}

func TestFirstSetup_PromotesExistingProfile(t *testing.T) {
	gdb := db.NewTestDB(t)
	existing := models.Profile{Email: "coach@example.org", IsCoach: true, Status: models.ProfileSuspended, CalendarToken: "t"}
	require.NoError(t, gdb.Create(&existing).Error)

	res, err := FirstSetup(context.Background(), gdb, config.SeedSettings{AdminEmail: "coach@example.org"})
	require.NoError(t, err)
	assert.False(t, res.AdminCreated)

	require.NoError(t, gdb.First(&existing, existing.ID).Error)
	assert.True(t, existing.IsAdmin)
	assert.Equal(t, models.ProfileActive, existing.Status)
}

func TestFirstSetup_WeakPassword(t *testing.T) {
	gdb := db.NewTestDB(t)
	_, err := FirstSetup(context.Background(), gdb, config.SeedSettings{AdminEmail: "a@example.org", AdminPassword: "short"})
	assert.ErrorIs(t, err, auth.ErrWeakPassword)
}
