package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"clubhub/internal/auth"
	"clubhub/internal/config"
	"clubhub/internal/models"
)

// DefaultGroups are created on first setup when missing.
var DefaultGroups = []models.Group{
	{Name: "Juniors", Color: "#2e7d32", SortOrder: 10, Description: "Under 12s"},
	{Name: "Intermediate", Color: "#f9a825", SortOrder: 20, Description: "12 to 15"},
	{Name: "Seniors", Color: "#c62828", SortOrder: 30, Description: "16 and over"},
}

type Result struct {
	GroupsCreated int
	AdminEmail    string
	AdminCreated  bool
}

// FirstSetup is idempotent: it ensures the default groups and, when configured, the first admin.
func FirstSetup(ctx context.Context, db *gorm.DB, settings config.SeedSettings) (*Result, error) {
	res := &Result{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// -------------------------
		// 1) Ensure groups
		// -------------------------
		for _, g := range DefaultGroups {
			var existing int64
			if err := tx.Model(&models.Group{}).Where("name = ?", g.Name).Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				continue
			}
			group := g
			if err := tx.Create(&group).Error; err != nil {
				return fmt.Errorf("failed to create group %q: %w", g.Name, err)
			}
			res.GroupsCreated++
		}

		// -------------------------
		// 2) Ensure admin profile
		// -------------------------
		email := strings.ToLower(strings.TrimSpace(settings.AdminEmail))
		if email == "" {
			return nil
		}
		res.AdminEmail = email

		var admin models.Profile
		err := tx.Where("email = ?", email).First(&admin).Error
		if err == nil {
			if !admin.IsAdmin || admin.Status != models.ProfileActive {
				return tx.Model(&admin).Updates(map[string]interface{}{
					"is_admin": true,
					"status":   models.ProfileActive,
				}).Error
			}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hash, err := auth.HashPassword(settings.AdminPassword)
		if err != nil {
			return fmt.Errorf("admin password: %w", err)
		}
		admin = models.Profile{
			Email:         email,
			FullName:      "Administrator",
			PasswordHash:  hash,
			IsAdmin:       true,
			Status:        models.ProfileActive,
			CalendarToken: auth.NewCalendarToken(),
		}
		if err := tx.Create(&admin).Error; err != nil {
			return fmt.Errorf("failed to create admin: %w", err)
		}
		res.AdminCreated = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
