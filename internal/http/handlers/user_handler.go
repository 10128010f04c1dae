package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"clubhub/internal/audit"
	"clubhub/internal/auth"
	"clubhub/internal/models"
)

// ListProfiles returns every profile, optionally filtered by role or a name/email search.
func ListProfiles(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := d.DB.WithContext(c).Model(&models.Profile{}).Order("full_name, email")
		switch c.Query("role") {
		case "admin":
			query = query.Where("is_admin = ?", true)
		case "coach":
			query = query.Where("is_coach = ?", true)
		case "parent":
			query = query.Where("is_parent = ?", true)
		}
		if q := strings.TrimSpace(c.Query("q")); q != "" {
			like := "%" + strings.ToLower(q) + "%"
			query = query.Where("(LOWER(full_name) LIKE ? OR email LIKE ?)", like, like)
		}

		var profiles []models.Profile
		if err := query.Find(&profiles).Error; err != nil {
			d.respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"profiles": profiles})
	}
}

// UpdateRoles sets role flags on a profile. Admins cannot remove their own admin flag.
func UpdateRoles(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var input struct {
			IsAdmin  *bool `json:"is_admin"`
			IsCoach  *bool `json:"is_coach"`
			IsParent *bool `json:"is_parent"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		me := auth.CurrentProfile(c)
		if id == me.ID && input.IsAdmin != nil && !*input.IsAdmin {
			d.respond(c, fmt.Errorf("%w: you cannot remove your own admin role", ErrConflict))
			return
		}

		var target models.Profile
		if err := d.DB.WithContext(c).First(&target, id).Error; err != nil {
			d.respond(c, err)
			return
		}

		updates := map[string]interface{}{}
		if input.IsAdmin != nil {
			updates["is_admin"] = *input.IsAdmin
		}
		if input.IsCoach != nil {
			updates["is_coach"] = *input.IsCoach
		}
		if input.IsParent != nil {
			updates["is_parent"] = *input.IsParent
		}
		if len(updates) > 0 {
			if err := d.DB.WithContext(c).Model(&target).Updates(updates).Error; err != nil {
				d.respond(c, err)
				return
			}
		}

		d.record(c, audit.Entry{
			Action: "profiles.roles", ResourceType: "profile", ResourceID: target.ID, Metadata: updates,
		})
		c.JSON(http.StatusOK, gin.H{"profile": target})
	}
}

// ActivateProfile re-enables a suspended profile.
func ActivateProfile(d *Deps) gin.HandlerFunc {
	return setProfileStatus(d, models.ProfileActive, "profiles.activate")
}

// DeactivateProfile suspends a profile; its sessions stop working on the next request.
func DeactivateProfile(d *Deps) gin.HandlerFunc {
	return setProfileStatus(d, models.ProfileSuspended, "profiles.deactivate")
}

func setProfileStatus(d *Deps, status models.ProfileStatus, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		if status == models.ProfileSuspended && id == auth.CurrentProfile(c).ID {
			d.respond(c, fmt.Errorf("%w: you cannot deactivate yourself", ErrConflict))
			return
		}

		var target models.Profile
		if err := d.DB.WithContext(c).First(&target, id).Error; err != nil {
			d.respond(c, err)
			return
		}
		if err := d.DB.WithContext(c).Model(&target).Update("status", status).Error; err != nil {
			d.respond(c, err)
			return
		}

		d.record(c, audit.Entry{Action: action, ResourceType: "profile", ResourceID: id})
		c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
	}
}
