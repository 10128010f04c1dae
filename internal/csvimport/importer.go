package csvimport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"clubhub/internal/models"
)

// ErrRejected is returned by Commit in strict mode when any row is invalid.
var ErrRejected = errors.New("import rejected: file contains invalid rows")

type Result struct {
	Created      int     `json:"created"`
	Skipped      int     `json:"skipped"`
	ParentLinks  int     `json:"parent_links"`
	PendingLinks int     `json:"pending_links"`
	RiderIDs     []int64 `json:"rider_ids"`
}

// LoadDirectory reads the groups, riders and profiles that rows are validated against.
func LoadDirectory(ctx context.Context, db *gorm.DB) (Directory, error) {
	dir := Directory{
		GroupsByName:    map[string]int64{},
		Riders:          map[string]bool{},
		ProfilesByEmail: map[string]int64{},
	}

	var groups []models.Group
	if err := db.WithContext(ctx).Select("id", "name").Find(&groups).Error; err != nil {
		return dir, fmt.Errorf("failed to load groups: %w", err)
	}
	for _, g := range groups {
		dir.GroupsByName[strings.ToLower(g.Name)] = g.ID
	}

	var riders []models.Rider
	if err := db.WithContext(ctx).Select("id", "first_name", "last_name", "date_of_birth").Find(&riders).Error; err != nil {
		return dir, fmt.Errorf("failed to load riders: %w", err)
	}
	for _, r := range riders {
		dir.Riders[RiderKey(r.FirstName, r.LastName, r.DateOfBirth)] = true
	}

	var profiles []models.Profile
	if err := db.WithContext(ctx).Select("id", "email").Find(&profiles).Error; err != nil {
		return dir, fmt.Errorf("failed to load profiles: %w", err)
	}
	for _, p := range profiles {
		dir.ProfilesByEmail[strings.ToLower(p.Email)] = p.ID
	}
	return dir, nil
}

// Commit inserts the valid rows of a preview in a single transaction.
// In strict mode nothing is written if any row is invalid.
func Commit(ctx context.Context, db *gorm.DB, preview *Preview, strict bool) (*Result, error) {
	if strict && preview.Summary.Invalid > 0 {
		return nil, ErrRejected
	}

	res := &Result{Skipped: preview.Summary.Invalid, RiderIDs: []int64{}}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range preview.ValidRows() {
			rider := models.Rider{
				FirstName:   row.FirstName,
				LastName:    row.LastName,
				DateOfBirth: row.DOB(),
				GroupID:     row.GroupID,
				Notes:       row.Notes,
				Active:      true,
			}
			if err := tx.Create(&rider).Error; err != nil {
				return fmt.Errorf("line %d: failed to create rider: %w", row.Line, err)
			}
			res.Created++
			res.RiderIDs = append(res.RiderIDs, rider.ID)

			switch {
			case row.ParentProfileID != nil:
				link := models.RiderParent{RiderID: rider.ID, ProfileID: *row.ParentProfileID}
				if err := tx.Create(&link).Error; err != nil {
					return fmt.Errorf("line %d: failed to link parent: %w", row.Line, err)
				}
				if err := tx.Model(&models.Profile{}).Where("id = ?", *row.ParentProfileID).
					Update("is_parent", true).Error; err != nil {
					return fmt.Errorf("line %d: failed to flag parent: %w", row.Line, err)
				}
				res.ParentLinks++
			case row.ParentEmail != "":
				pending := models.PendingParentLink{RiderID: rider.ID, Email: row.ParentEmail, FullName: row.ParentName}
				if err := tx.Create(&pending).Error; err != nil {
					return fmt.Errorf("line %d: failed to store pending parent: %w", row.Line, err)
				}
				res.PendingLinks++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ResolvePendingParents links riders waiting on email to the given profile
// and clears the pending rows. It returns the number of riders linked.
func ResolvePendingParents(ctx context.Context, tx *gorm.DB, profile *models.Profile) (int, error) {
	var pending []models.PendingParentLink
	if err := tx.WithContext(ctx).Where("email = ?", strings.ToLower(profile.Email)).Find(&pending).Error; err != nil {
		return 0, fmt.Errorf("failed to load pending parent links: %w", err)
	}
	for _, p := range pending {
		link := models.RiderParent{RiderID: p.RiderID, ProfileID: profile.ID}
		if err := tx.WithContext(ctx).Where(&link).FirstOrCreate(&link).Error; err != nil {
			return 0, fmt.Errorf("failed to link rider %d: %w", p.RiderID, err)
		}
	}
	if len(pending) > 0 {
		if err := tx.WithContext(ctx).Where("email = ?", strings.ToLower(profile.Email)).
			Delete(&models.PendingParentLink{}).Error; err != nil {
			return 0, fmt.Errorf("failed to clear pending parent links: %w", err)
		}
		if err := tx.WithContext(ctx).Model(profile).Update("is_parent", true).Error; err != nil {
			return 0, fmt.Errorf("failed to flag parent: %w", err)
		}
	}
	return len(pending), nil
}
