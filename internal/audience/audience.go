// Package audience decides which events a member can see.
//
// Admins see everything. Everyone else sees ungrouped events plus events tied to
// at least one group they belong to, where belonging means coaching the group or
// being a parent of a rider in it.
package audience

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"clubhub/internal/models"
)

type Viewer struct {
	ProfileID int64
	IsAdmin   bool
	GroupIDs  map[int64]struct{}
}

// CanSee reports whether an event tied to eventGroupIDs is visible to the viewer.
func (v Viewer) CanSee(eventGroupIDs []int64) bool {
	if v.IsAdmin || len(eventGroupIDs) == 0 {
		return true
	}
	for _, id := range eventGroupIDs {
		if _, ok := v.GroupIDs[id]; ok {
			return true
		}
	}
	return false
}

// Filter returns the visible events, preserving order.
func (v Viewer) Filter(events []models.Event) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, e := range events {
		if v.CanSee(e.GroupIDs) {
			out = append(out, e)
		}
	}
	return out
}

// Groups returns the viewer's group ids in ascending order.
func (v Viewer) Groups() []int64 {
	ids := make([]int64, 0, len(v.GroupIDs))
	for id := range v.GroupIDs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// LoadViewer resolves the profile's group memberships from the database.
func LoadViewer(ctx context.Context, db *gorm.DB, p *models.Profile) (Viewer, error) {
	v := Viewer{ProfileID: p.ID, IsAdmin: p.IsAdmin, GroupIDs: map[int64]struct{}{}}
	if p.IsAdmin {
		return v, nil
	}

	var coached []int64
	if err := db.WithContext(ctx).Model(&models.GroupCoach{}).
		Where("profile_id = ?", p.ID).
		Pluck("group_id", &coached).Error; err != nil {
		return v, fmt.Errorf("failed to load coached groups: %w", err)
	}

	var parented []int64
	if err := db.WithContext(ctx).Model(&models.Rider{}).
		Joins("JOIN rider_parents rp ON rp.rider_id = riders.id").
		Where("rp.profile_id = ? AND riders.group_id IS NOT NULL", p.ID).
		Distinct().
		Pluck("riders.group_id", &parented).Error; err != nil {
		return v, fmt.Errorf("failed to load rider groups: %w", err)
	}

	for _, id := range append(coached, parented...) {
		v.GroupIDs[id] = struct{}{}
	}
	return v, nil
}

// AttachGroups fills Event.GroupIDs for every event from event_groups.
func AttachGroups(ctx context.Context, db *gorm.DB, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}

	var links []models.EventGroup
	if err := db.WithContext(ctx).Where("event_id IN ?", ids).Order("group_id").Find(&links).Error; err != nil {
		return fmt.Errorf("failed to load event groups: %w", err)
	}

	byEvent := make(map[int64][]int64, len(events))
	for _, l := range links {
		byEvent[l.EventID] = append(byEvent[l.EventID], l.GroupID)
	}
	for i := range events {
		events[i].GroupIDs = byEvent[events[i].ID]
		if events[i].GroupIDs == nil {
			events[i].GroupIDs = []int64{}
		}
	}
	return nil
}
