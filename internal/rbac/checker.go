package rbac

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"clubhub/internal/models"
)

// Capability names used by the router-level require middleware.
const (
	CapAdmin = "admin"
	CapStaff = "staff"
)

type Checker struct{ DB *gorm.DB }

// Can reports whether the profile's role flags grant the capability.
func (c Checker) Can(p *models.Profile, capability string) bool {
	if p == nil {
		return false
	}
	switch capability {
	case CapAdmin:
		return p.IsAdmin
	case CapStaff:
		return p.IsStaff()
	default:
		return false
	}
}

// IsParentOf reports whether profileID is linked as a parent of riderID.
func (c Checker) IsParentOf(ctx context.Context, profileID, riderID int64) (bool, error) {
	var count int64
	err := c.DB.WithContext(ctx).Model(&models.RiderParent{}).
		Where("profile_id = ? AND rider_id = ?", profileID, riderID).
		Count(&count).Error
	return count > 0, err
}

// CoachesGroup reports whether profileID is assigned as a coach of groupID.
func (c Checker) CoachesGroup(ctx context.Context, profileID, groupID int64) (bool, error) {
	var count int64
	err := c.DB.WithContext(ctx).Model(&models.GroupCoach{}).
		Where("profile_id = ? AND group_id = ?", profileID, groupID).
		Count(&count).Error
	return count > 0, err
}

// CanViewRider: admins and coaches see every rider, parents see their own.
func (c Checker) CanViewRider(ctx context.Context, p *models.Profile, riderID int64) (bool, error) {
	if p.IsStaff() {
		return true, nil
	}
	return c.IsParentOf(ctx, p.ID, riderID)
}

// CanRespondForRider: admins, the rider's parents, and coaches of the rider's group.
func (c Checker) CanRespondForRider(ctx context.Context, p *models.Profile, rider *models.Rider) (bool, error) {
	if p.IsAdmin {
		return true, nil
	}
	ok, err := c.IsParentOf(ctx, p.ID, rider.ID)
	if err != nil || ok {
		return ok, err
	}
	if p.IsCoach && rider.GroupID != nil {
		return c.CoachesGroup(ctx, p.ID, *rider.GroupID)
	}
	return false, nil
}

// ChildRiderIDs lists the riders a parent profile is linked to.
func (c Checker) ChildRiderIDs(ctx context.Context, profileID int64) ([]int64, error) {
	var ids []int64
	if err := c.DB.WithContext(ctx).Model(&models.RiderParent{}).
		Where("profile_id = ?", profileID).
		Pluck("rider_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to load child riders: %w", err)
	}
	return ids, nil
}
