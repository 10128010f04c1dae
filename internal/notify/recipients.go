package notify

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"clubhub/internal/models"
)

// ResolveRecipients returns the active profiles addressed by a notification.
func ResolveRecipients(ctx context.Context, db *gorm.DB, n *models.ScheduledNotification) ([]models.Profile, error) {
	db = db.WithContext(ctx)

	var groupIDs []int64
	switch n.Audience {
	case models.AudienceAll:
		return activeProfiles(db, nil)
	case models.AudienceGroup:
		if n.GroupID == nil {
			return nil, fmt.Errorf("notification %d has no group", n.ID)
		}
		groupIDs = []int64{*n.GroupID}
	case models.AudienceEvent:
		if n.EventID == nil {
			return nil, fmt.Errorf("notification %d has no event", n.ID)
		}
		if err := db.Model(&models.EventGroup{}).Where("event_id = ?", *n.EventID).
			Pluck("group_id", &groupIDs).Error; err != nil {
			return nil, fmt.Errorf("failed to load event groups: %w", err)
		}
		if len(groupIDs) == 0 {
			return activeProfiles(db, nil)
		}
	default:
		return nil, fmt.Errorf("unknown audience %q", n.Audience)
	}

	var parentIDs []int64
	if err := db.Model(&models.RiderParent{}).
		Joins("JOIN riders ON riders.id = rider_parents.rider_id").
		Where("riders.group_id IN ? AND riders.active = ?", groupIDs, true).
		Pluck("rider_parents.profile_id", &parentIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to load parents: %w", err)
	}

	var coachIDs []int64
	if err := db.Model(&models.GroupCoach{}).Where("group_id IN ?", groupIDs).
		Pluck("profile_id", &coachIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to load coaches: %w", err)
	}

	ids := append(parentIDs, coachIDs...)
	if len(ids) == 0 {
		return []models.Profile{}, nil
	}
	return activeProfiles(db, ids)
}

func activeProfiles(db *gorm.DB, ids []int64) ([]models.Profile, error) {
	q := db.Where("status = ?", models.ProfileActive)
	if ids != nil {
		q = q.Where("id IN ?", ids)
	}
	var profiles []models.Profile
	if err := q.Order("id").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("failed to load recipients: %w", err)
	}
	return profiles, nil
}
