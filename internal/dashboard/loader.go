package dashboard

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"clubhub/internal/models"
)

// Load fetches the rows for event (with GroupIDs attached) and builds its dashboard.
func Load(ctx context.Context, db *gorm.DB, event models.Event, targetRatio float64, now time.Time) (*Dashboard, error) {
	db = db.WithContext(ctx)
	in := Input{Event: event, TargetRatio: targetRatio, Now: now, CoachGroups: map[int64][]int64{}}

	if err := db.Where("event_id = ?", event.ID).Find(&in.RSVPs).Error; err != nil {
		return nil, fmt.Errorf("failed to load rsvps: %w", err)
	}

	riderIDs := []int64{}
	coachIDs := []int64{}
	for _, r := range in.RSVPs {
		if r.RiderID != nil {
			riderIDs = append(riderIDs, *r.RiderID)
		}
		if r.ProfileID != nil {
			coachIDs = append(coachIDs, *r.ProfileID)
		}
	}

	if err := db.Order("sort_order, name").Find(&in.Groups).Error; err != nil {
		return nil, fmt.Errorf("failed to load groups: %w", err)
	}

	riderQuery := db.Model(&models.Rider{})
	if len(event.GroupIDs) > 0 {
		riderQuery = riderQuery.Where("(active = ? AND group_id IN ?) OR id IN ?", true, event.GroupIDs, riderIDs)
	} else {
		riderQuery = riderQuery.Where("active = ? OR id IN ?", true, riderIDs)
	}
	if err := riderQuery.Find(&in.Riders).Error; err != nil {
		return nil, fmt.Errorf("failed to load riders: %w", err)
	}

	if len(coachIDs) > 0 {
		if err := db.Where("id IN ?", coachIDs).Find(&in.Coaches).Error; err != nil {
			return nil, fmt.Errorf("failed to load coaches: %w", err)
		}
		var links []models.GroupCoach
		if err := db.Where("profile_id IN ?", coachIDs).Find(&links).Error; err != nil {
			return nil, fmt.Errorf("failed to load coach groups: %w", err)
		}
		for _, l := range links {
			in.CoachGroups[l.ProfileID] = append(in.CoachGroups[l.ProfileID], l.GroupID)
		}
	}

	return Build(in), nil
}
