package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clubhub/internal/auth"
	"clubhub/internal/models"
)

// ListRSVPs: staff see every response for the event, parents only those of their riders.
func ListRSVPs(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		if _, err := d.visibleEvent(c, id); err != nil {
			d.respond(c, err)
			return
		}

		p := auth.CurrentProfile(c)
		query := d.DB.WithContext(c).Where("event_id = ?", id).Order("id")
		if !p.IsStaff() {
			riderIDs, err := d.Checker.ChildRiderIDs(c, p.ID)
			if err != nil {
				d.respond(c, err)
				return
			}
			if len(riderIDs) == 0 {
				c.JSON(http.StatusOK, gin.H{"rsvps": []models.RSVP{}})
				return
			}
			query = query.Where("rider_id IN ?", riderIDs)
		}

		var rsvps []models.RSVP
		if err := query.Find(&rsvps).Error; err != nil {
			d.respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"rsvps": rsvps})
	}
}

// UpsertRSVP records a rider response (rider_id set) or the caller's own coach response.
func UpsertRSVP(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var input struct {
			RiderID *int64            `json:"rider_id"`
			Status  models.RSVPStatus `json:"status" binding:"required"`
			Note    string            `json:"note" binding:"max=500"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}
		if !input.Status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be going, maybe or not_going"})
			return
		}

		ev, err := d.visibleEvent(c, id)
		if err != nil {
			d.respond(c, err)
			return
		}
		if ev.Cancelled {
			d.respond(c, fmt.Errorf("%w: event is cancelled", ErrConflict))
			return
		}

		p := auth.CurrentProfile(c)
		key := models.RSVP{EventID: ev.ID}
		if input.RiderID != nil {
			var rider models.Rider
			if err := d.DB.WithContext(c).First(&rider, *input.RiderID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					err = fmt.Errorf("rider %w", ErrNotFound)
				}
				d.respond(c, err)
				return
			}
			allowed, err := d.Checker.CanRespondForRider(c, p, &rider)
			if err != nil {
				d.respond(c, err)
				return
			}
			if !allowed {
				d.respond(c, fmt.Errorf("%w: you cannot respond for this rider", ErrForbidden))
				return
			}
			key.RiderID = &rider.ID
		} else {
			if !p.IsStaff() {
				d.respond(c, fmt.Errorf("%w: only coaches can respond for themselves", ErrForbidden))
				return
			}
			key.ProfileID = &p.ID
		}

		var rsvp models.RSVP
		created := false
		err = d.DB.WithContext(c).Transaction(func(tx *gorm.DB) error {
			query := tx.Where("event_id = ?", ev.ID)
			if key.RiderID != nil {
				query = query.Where("rider_id = ?", *key.RiderID)
			} else {
				query = query.Where("profile_id = ?", *key.ProfileID)
			}
			err := query.First(&rsvp).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				rsvp = key
				created = true
			} else if err != nil {
				return err
			}
			rsvp.Status = input.Status
			rsvp.Note = strings.TrimSpace(input.Note)
			rsvp.RespondedBy = p.ID
			return tx.Save(&rsvp).Error
		})
		if err != nil {
			d.respond(c, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		c.JSON(status, gin.H{"rsvp": rsvp})
	}
}

// DeleteRSVP: allowed for whoever answered, a parent of the rider, or an admin.
func DeleteRSVP(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := paramID(c, "id")
		if !ok {
			return
		}
		rsvpID, ok := paramID(c, "rsvp_id")
		if !ok {
			return
		}
		if _, err := d.visibleEvent(c, eventID); err != nil {
			d.respond(c, err)
			return
		}

		var rsvp models.RSVP
		if err := d.DB.WithContext(c).Where("id = ? AND event_id = ?", rsvpID, eventID).First(&rsvp).Error; err != nil {
			d.respond(c, err)
			return
		}

		p := auth.CurrentProfile(c)
		allowed := p.IsAdmin || rsvp.RespondedBy == p.ID || (rsvp.ProfileID != nil && *rsvp.ProfileID == p.ID)
		if !allowed && rsvp.RiderID != nil {
			isParent, err := d.Checker.IsParentOf(c, p.ID, *rsvp.RiderID)
			if err != nil {
				d.respond(c, err)
				return
			}
			allowed = isParent
		}
		if !allowed {
			d.respond(c, fmt.Errorf("%w: you cannot remove this response", ErrForbidden))
			return
		}

		if err := d.DB.WithContext(c).Delete(&rsvp).Error; err != nil {
			d.respond(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
