package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"clubhub/internal/audience"
	"clubhub/internal/auth"
	"clubhub/internal/models"
)

func (d *Deps) calendarURL(p *models.Profile) string {
	return fmt.Sprintf("%s/calendar/%s.ics", strings.TrimRight(d.Config.HTTP.PublicURL, "/"), p.CalendarToken)
}

// Me returns the caller's profile, visible groups and calendar feed URL.
func Me(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.CurrentProfile(c)
		viewer, err := audience.LoadViewer(c, d.DB, p)
		if err != nil {
			d.respond(c, err)
			return
		}
		riderIDs, err := d.Checker.ChildRiderIDs(c, p.ID)
		if err != nil {
			d.respond(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"profile":      p,
			"group_ids":    viewer.Groups(),
			"rider_ids":    riderIDs,
			"calendar_url": d.calendarURL(p),
		})
	}
}

// UpdateMe edits the caller's name and phone.
func UpdateMe(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			FullName *string `json:"full_name" binding:"omitempty,max=200"`
			Phone    *string `json:"phone" binding:"omitempty,max=50"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		p := auth.CurrentProfile(c)
		updates := map[string]interface{}{}
		if input.FullName != nil {
			updates["full_name"] = strings.TrimSpace(*input.FullName)
		}
		if input.Phone != nil {
			updates["phone"] = strings.TrimSpace(*input.Phone)
		}
		if len(updates) > 0 {
			if err := d.DB.WithContext(c).Model(p).Updates(updates).Error; err != nil {
				d.respond(c, err)
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"profile": p})
	}
}

// RotateCalendarToken replaces the caller's feed token, invalidating the old URL.
func RotateCalendarToken(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.CurrentProfile(c)
		if err := d.DB.WithContext(c).Model(p).Update("calendar_token", auth.NewCalendarToken()).Error; err != nil {
			d.respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"calendar_url": d.calendarURL(p)})
	}
}

// ChangePassword sets a new password after checking the current one, when one is set.
func ChangePassword(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			CurrentPassword string `json:"current_password"`
			NewPassword     string `json:"new_password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		p := auth.CurrentProfile(c)
		if p.PasswordHash != "" && !auth.CheckPassword(p.PasswordHash, input.CurrentPassword) {
			c.JSON(http.StatusForbidden, gin.H{"error": "current password is incorrect"})
			return
		}

		hash, err := auth.HashPassword(input.NewPassword)
		if errors.Is(err, auth.ErrWeakPassword) {
			badRequest(c, err)
			return
		}
		if err != nil {
			d.respond(c, err)
			return
		}
		if err := d.DB.WithContext(c).Model(p).Update("password_hash", hash).Error; err != nil {
			d.respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "password updated"})
	}
}
