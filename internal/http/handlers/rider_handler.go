package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clubhub/internal/audit"
	"clubhub/internal/auth"
	"clubhub/internal/models"
)

// ListRiders: staff see every rider (optionally ?group_id= and ?active=), parents only their own.
func ListRiders(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.CurrentProfile(c)
		query := d.DB.WithContext(c).Model(&models.Rider{}).Order("last_name, first_name, id")

		if !p.IsStaff() {
			ids, err := d.Checker.ChildRiderIDs(c, p.ID)
			if err != nil {
				d.respond(c, err)
				return
			}
			if len(ids) == 0 {
				c.JSON(http.StatusOK, gin.H{"riders": []models.Rider{}})
				return
			}
			query = query.Where("id IN ?", ids)
		}

		if g := c.Query("group_id"); g != "" {
			if g == "none" {
				query = query.Where("group_id IS NULL")
			} else if gid, err := strconv.ParseInt(g, 10, 64); err == nil {
				query = query.Where("group_id = ?", gid)
			} else {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group_id"})
				return
			}
		}
		if a := c.Query("active"); a != "" {
			active, err := strconv.ParseBool(a)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid active"})
				return
			}
			query = query.Where("active = ?", active)
		}

		var riders []models.Rider
		if err := query.Find(&riders).Error; err != nil {
			d.respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"riders": riders})
	}
}

// GetRider answers 404 for riders the caller may not see.
func GetRider(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		allowed, err := d.Checker.CanViewRider(c, auth.CurrentProfile(c), id)
		if err != nil {
			d.respond(c, err)
			return
		}
		if !allowed {
			d.respond(c, fmt.Errorf("rider %w", ErrNotFound))
			return
		}

		var rider models.Rider
		if err := d.DB.WithContext(c).Preload("Group").First(&rider, id).Error; err != nil {
			d.respond(c, err)
			return
		}
		var parentIDs []int64
		if err := d.DB.WithContext(c).Model(&models.RiderParent{}).
			Where("rider_id = ?", id).Order("profile_id").Pluck("profile_id", &parentIDs).Error; err != nil {
			d.respond(c, err)
			return
		}
		if parentIDs == nil {
			parentIDs = []int64{}
		}
		c.JSON(http.StatusOK, gin.H{"rider": rider, "parent_ids": parentIDs})
	}
}

type riderInput struct {
	FirstName   *string `json:"first_name" binding:"omitempty,max=100"`
	LastName    *string `json:"last_name" binding:"omitempty,max=100"`
	DateOfBirth *string `json:"date_of_birth"`
	GroupID     *int64  `json:"group_id"`
	ClearGroup  bool    `json:"clear_group"`
	Notes       *string `json:"notes"`
	Active      *bool   `json:"active"`
}

// apply copies the set fields onto r, validating the date and group.
func (in riderInput) apply(c *gin.Context, db *gorm.DB, r *models.Rider, now time.Time) error {
	if in.FirstName != nil {
		r.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		r.LastName = strings.TrimSpace(*in.LastName)
	}
	if r.FirstName == "" || r.LastName == "" {
		return fmt.Errorf("%w: first_name and last_name are required", ErrInvalid)
	}
	if in.DateOfBirth != nil {
		if *in.DateOfBirth == "" {
			r.DateOfBirth = nil
		} else {
			dob, err := time.Parse("2006-01-02", *in.DateOfBirth)
			if err != nil || dob.After(now) {
				return fmt.Errorf("%w: date_of_birth must be a past YYYY-MM-DD date", ErrInvalid)
			}
			r.DateOfBirth = &dob
		}
	}
	if in.ClearGroup {
		r.GroupID = nil
	} else if in.GroupID != nil {
		var n int64
		if err := db.WithContext(c).Model(&models.Group{}).Where("id = ?", *in.GroupID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: unknown group %d", ErrInvalid, *in.GroupID)
		}
		gid := *in.GroupID
		r.GroupID = &gid
	}
	if in.Notes != nil {
		r.Notes = *in.Notes
	}
	if in.Active != nil {
		r.Active = *in.Active
	}
	return nil
}

func CreateRider(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input riderInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}
		rider := models.Rider{Active: true}
		if err := input.apply(c, d.DB, &rider, d.now()); err != nil {
			d.respond(c, err)
			return
		}
		if err := d.DB.WithContext(c).Create(&rider).Error; err != nil {
			d.respond(c, err)
			return
		}
		d.record(c, audit.Entry{
			Action: "riders.create", ResourceType: "rider", ResourceID: rider.ID,
			Metadata: map[string]interface{}{"name": rider.FullName()},
		})
		c.JSON(http.StatusCreated, gin.H{"rider": rider})
	}
}

func UpdateRider(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var input riderInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		var rider models.Rider
		if err := d.DB.WithContext(c).First(&rider, id).Error; err != nil {
			d.respond(c, err)
			return
		}
		if err := input.apply(c, d.DB, &rider, d.now()); err != nil {
			d.respond(c, err)
			return
		}
		if err := d.DB.WithContext(c).Save(&rider).Error; err != nil {
			d.respond(c, err)
			return
		}
		d.record(c, audit.Entry{Action: "riders.update", ResourceType: "rider", ResourceID: rider.ID})
		c.JSON(http.StatusOK, gin.H{"rider": rider})
	}
}

// DeleteRider removes the rider together with its parent links and RSVPs.
func DeleteRider(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var rider models.Rider
		err := d.DB.WithContext(c).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&rider, id).Error; err != nil {
				return err
			}
			for _, m := range []interface{}{&models.RiderParent{}, &models.PendingParentLink{}, &models.RSVP{}} {
				if err := tx.Where("rider_id = ?", id).Delete(m).Error; err != nil {
					return err
				}
			}
			return tx.Delete(&rider).Error
		})
		if err != nil {
			d.respond(c, err)
			return
		}
		d.record(c, audit.Entry{
			Action: "riders.delete", ResourceType: "rider", ResourceID: id,
			Metadata: map[string]interface{}{"name": rider.FullName()},
		})
		c.Status(http.StatusNoContent)
	}
}

// SetRiderParents replaces the parent links of a rider and flags the profiles as parents.
func SetRiderParents(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var input struct {
			ProfileIDs []int64 `json:"profile_ids"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}
		ids := uniqueIDs(input.ProfileIDs)

		err := d.DB.WithContext(c).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&models.Rider{}, id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("rider %w", ErrNotFound)
				}
				return err
			}
			if len(ids) > 0 {
				var found int64
				if err := tx.Model(&models.Profile{}).Where("id IN ?", ids).Count(&found).Error; err != nil {
					return err
				}
				if int(found) != len(ids) {
					return fmt.Errorf("%w: unknown profile id", ErrInvalid)
				}
			}
			if err := tx.Where("rider_id = ?", id).Delete(&models.RiderParent{}).Error; err != nil {
				return err
			}
			for _, pid := range ids {
				if err := tx.Create(&models.RiderParent{RiderID: id, ProfileID: pid}).Error; err != nil {
					return err
				}
			}
			if len(ids) > 0 {
				return tx.Model(&models.Profile{}).Where("id IN ?", ids).Update("is_parent", true).Error
			}
			return nil
		})
		if err != nil {
			d.respond(c, err)
			return
		}

		d.record(c, audit.Entry{
			Action: "riders.parents", ResourceType: "rider", ResourceID: id,
			Metadata: map[string]interface{}{"profile_ids": ids},
		})
		c.JSON(http.StatusOK, gin.H{"rider_id": id, "parent_ids": ids})
	}
}
