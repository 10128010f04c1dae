package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clubhub/internal/audit"
	"clubhub/internal/models"
)

type groupView struct {
	models.Group
	CoachIDs   []int64 `json:"coach_ids"`
	RiderCount int64   `json:"rider_count"`
}

// ListGroups returns every group with its coaches and active rider count.
func ListGroups(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var groups []models.Group
		if err := d.DB.WithContext(c).Order("sort_order, name").Find(&groups).Error; err != nil {
			d.respond(c, err)
			return
		}

		var links []models.GroupCoach
		if err := d.DB.WithContext(c).Order("profile_id").Find(&links).Error; err != nil {
			d.respond(c, err)
			return
		}
		coaches := map[int64][]int64{}
		for _, l := range links {
			coaches[l.GroupID] = append(coaches[l.GroupID], l.ProfileID)
		}

		var counts []struct {
			GroupID int64
			N       int64
		}
		if err := d.DB.WithContext(c).Model(&models.Rider{}).
			Select("group_id, COUNT(*) AS n").
			Where("active = ? AND group_id IS NOT NULL", true).
			Group("group_id").Scan(&counts).Error; err != nil {
			d.respond(c, err)
			return
		}
		riders := map[int64]int64{}
		for _, rc := range counts {
			riders[rc.GroupID] = rc.N
		}

		out := make([]groupView, len(groups))
		for i, g := range groups {
			ids := coaches[g.ID]
			if ids == nil {
				ids = []int64{}
			}
			out[i] = groupView{Group: g, CoachIDs: ids, RiderCount: riders[g.ID]}
		}
		c.JSON(http.StatusOK, gin.H{"groups": out})
	}
}

type groupInput struct {
	Name        *string `json:"name" binding:"omitempty,max=200"`
	Description *string `json:"description"`
	Color       *string `json:"color" binding:"omitempty,max=16"`
	SortOrder   *int    `json:"sort_order"`
}

func (in groupInput) apply(g *models.Group) {
	if in.Name != nil {
		g.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		g.Description = *in.Description
	}
	if in.Color != nil {
		g.Color = *in.Color
	}
	if in.SortOrder != nil {
		g.SortOrder = *in.SortOrder
	}
}

func (d *Deps) groupNameTaken(c *gin.Context, name string, exceptID int64) (bool, error) {
	var n int64
	err := d.DB.WithContext(c).Model(&models.Group{}).
		Where("LOWER(name) = ? AND id <> ?", strings.ToLower(name), exceptID).
		Count(&n).Error
	return n > 0, err
}

func CreateGroup(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input groupInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}
		var g models.Group
		input.apply(&g)
		if g.Name == "" {
			d.respond(c, fmt.Errorf("%w: name is required", ErrInvalid))
			return
		}
		if taken, err := d.groupNameTaken(c, g.Name, 0); err != nil || taken {
			if err == nil {
				err = fmt.Errorf("%w: group name already exists", ErrConflict)
			}
			d.respond(c, err)
			return
		}

		if err := d.DB.WithContext(c).Create(&g).Error; err != nil {
			d.respond(c, err)
			return
		}
		d.record(c, audit.Entry{
			Action: "groups.create", ResourceType: "group", ResourceID: g.ID,
			Metadata: map[string]interface{}{"name": g.Name},
		})
		c.JSON(http.StatusCreated, gin.H{"group": g})
	}
}

func UpdateGroup(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var input groupInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		var g models.Group
		if err := d.DB.WithContext(c).First(&g, id).Error; err != nil {
			d.respond(c, err)
			return
		}
		input.apply(&g)
		if g.Name == "" {
			d.respond(c, fmt.Errorf("%w: name is required", ErrInvalid))
			return
		}
		if taken, err := d.groupNameTaken(c, g.Name, g.ID); err != nil || taken {
			if err == nil {
				err = fmt.Errorf("%w: group name already exists", ErrConflict)
			}
			d.respond(c, err)
			return
		}

		if err := d.DB.WithContext(c).Save(&g).Error; err != nil {
			d.respond(c, err)
			return
		}
		d.record(c, audit.Entry{Action: "groups.update", ResourceType: "group", ResourceID: g.ID})
		c.JSON(http.StatusOK, gin.H{"group": g})
	}
}

// DeleteGroup refuses while riders are still assigned to the group.
func DeleteGroup(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		var g models.Group
		err := d.DB.WithContext(c).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&g, id).Error; err != nil {
				return err
			}
			var riders int64
			if err := tx.Model(&models.Rider{}).Where("group_id = ?", id).Count(&riders).Error; err != nil {
				return err
			}
			if riders > 0 {
				return fmt.Errorf("%w: group still has %d riders", ErrConflict, riders)
			}
			if err := tx.Where("group_id = ?", id).Delete(&models.GroupCoach{}).Error; err != nil {
				return err
			}
			if err := tx.Where("group_id = ?", id).Delete(&models.EventGroup{}).Error; err != nil {
				return err
			}
			return tx.Delete(&g).Error
		})
		if err != nil {
			d.respond(c, err)
			return
		}
		d.record(c, audit.Entry{
			Action: "groups.delete", ResourceType: "group", ResourceID: id,
			Metadata: map[string]interface{}{"name": g.Name},
		})
		c.Status(http.StatusNoContent)
	}
}

// SetGroupCoaches replaces the coach list of a group. Every profile must have the coach flag.
func SetGroupCoaches(d *Deps) gin.HandlerFunc {
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
			if err := tx.First(&models.Group{}, id).Error; err != nil {
				return err
			}
			if len(ids) > 0 {
				var coaches int64
				if err := tx.Model(&models.Profile{}).Where("id IN ? AND is_coach = ?", ids, true).Count(&coaches).Error; err != nil {
					return err
				}
				if int(coaches) != len(ids) {
					return fmt.Errorf("%w: every profile must be a coach", ErrInvalid)
				}
			}
			if err := tx.Where("group_id = ?", id).Delete(&models.GroupCoach{}).Error; err != nil {
				return err
			}
			for _, pid := range ids {
				if err := tx.Create(&models.GroupCoach{GroupID: id, ProfileID: pid}).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if errors.Is(err, gorm.ErrRecordNotFound) {
			d.respond(c, fmt.Errorf("group %w", ErrNotFound))
			return
		}
		if err != nil {
			d.respond(c, err)
			return
		}

		d.record(c, audit.Entry{
			Action: "groups.coaches", ResourceType: "group", ResourceID: id,
			Metadata: map[string]interface{}{"profile_ids": ids},
		})
		c.JSON(http.StatusOK, gin.H{"group_id": id, "coach_ids": ids})
	}
}

// uniqueIDs drops duplicates and non-positive ids, keeping first-seen order.
func uniqueIDs(ids []int64) []int64 {
	seen := map[int64]bool{}
	out := []int64{}
	for _, id := range ids {
		if id > 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
