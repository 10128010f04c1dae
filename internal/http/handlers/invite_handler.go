package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clubhub/internal/audit"
	"clubhub/internal/auth"
	"clubhub/internal/csvimport"
	"clubhub/internal/models"
	"clubhub/internal/notify"
)

// CreateInvite issues a single-use invitation and emails the accept link.
func CreateInvite(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Email    string `json:"email" binding:"required,email"`
			FullName string `json:"full_name" binding:"max=200"`
			IsAdmin  bool   `json:"is_admin"`
			IsCoach  bool   `json:"is_coach"`
			IsParent bool   `json:"is_parent"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}
		email := strings.ToLower(strings.TrimSpace(input.Email))
		now := d.now()

		var existing int64
		if err := d.DB.WithContext(c).Model(&models.Profile{}).Where("email = ?", email).Count(&existing).Error; err != nil {
			d.respond(c, err)
			return
		}
		if existing > 0 {
			d.respond(c, fmt.Errorf("%w: a profile with this email already exists", ErrConflict))
			return
		}
		if err := d.DB.WithContext(c).Model(&models.Invite{}).
			Where("email = ? AND accepted_at IS NULL AND expires_at > ?", email, now).
			Count(&existing).Error; err != nil {
			d.respond(c, err)
			return
		}
		if existing > 0 {
			d.respond(c, fmt.Errorf("%w: a pending invite for this email already exists", ErrConflict))
			return
		}

		token, hash, err := auth.NewInviteToken()
		if err != nil {
			d.respond(c, err)
			return
		}
		inv := models.Invite{
			Email:     email,
			FullName:  strings.TrimSpace(input.FullName),
			IsAdmin:   input.IsAdmin,
			IsCoach:   input.IsCoach,
			IsParent:  input.IsParent,
			TokenHash: hash,
			ExpiresAt: now.Add(d.Config.Auth.InviteTTL),
			InvitedBy: auth.CurrentProfile(c).ID,
		}
		if err := d.DB.WithContext(c).Create(&inv).Error; err != nil {
			d.respond(c, err)
			return
		}

		link := fmt.Sprintf("%s/invite/accept?token=%s", strings.TrimRight(d.Config.HTTP.PublicURL, "/"), url.QueryEscape(token))
		emailed := true
		if err := d.Mailer.Send(c, inviteMessage(&inv, link)); err != nil {
			emailed = false
			d.Log.Warn("failed to email invite ", inv.ID, ": ", err)
		}

		d.record(c, audit.Entry{
			Action: "invites.create", ResourceType: "invite", ResourceID: inv.ID,
			Metadata: map[string]interface{}{"email": email, "is_admin": inv.IsAdmin, "is_coach": inv.IsCoach, "is_parent": inv.IsParent},
		})

		c.JSON(http.StatusCreated, gin.H{
			"invite":     inv,
			"accept_url": link,
			"emailed":    emailed,
		})
	}
}

func inviteMessage(inv *models.Invite, link string) notify.Message {
	greeting := "Hello"
	if inv.FullName != "" {
		greeting += " " + inv.FullName
	}
	return notify.Message{
		To:      inv.Email,
		Subject: "You have been invited to the club",
		Body: fmt.Sprintf("%s,\n\nYou have been invited to join the club. Set your password here:\n\n%s\n\nThis link expires on %s.\n",
			greeting, link, inv.ExpiresAt.UTC().Format("2 Jan 2006 15:04 MST")),
	}
}

// ListInvites returns invites newest first; ?status=pending limits to open ones.
func ListInvites(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := d.DB.WithContext(c).Order("created_at DESC, id DESC")
		if c.Query("status") == "pending" {
			query = query.Where("accepted_at IS NULL AND expires_at > ?", d.now())
		}
		var invites []models.Invite
		if err := query.Find(&invites).Error; err != nil {
			d.respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"invites": invites})
	}
}

// RevokeInvite deletes an invite that has not been accepted.
func RevokeInvite(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var inv models.Invite
		if err := d.DB.WithContext(c).First(&inv, id).Error; err != nil {
			d.respond(c, err)
			return
		}
		if inv.AcceptedAt != nil {
			d.respond(c, fmt.Errorf("%w: invite already accepted", ErrConflict))
			return
		}
		if err := d.DB.WithContext(c).Delete(&inv).Error; err != nil {
			d.respond(c, err)
			return
		}
		d.record(c, audit.Entry{
			Action: "invites.revoke", ResourceType: "invite", ResourceID: inv.ID,
			Metadata: map[string]interface{}{"email": inv.Email},
		})
		c.Status(http.StatusNoContent)
	}
}

// AcceptInvite is public: it creates the invited profile, links imported riders and starts a session.
func AcceptInvite(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Token    string `json:"token" binding:"required"`
			Password string `json:"password" binding:"required"`
			FullName string `json:"full_name" binding:"max=200"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}
		hash, err := auth.HashPassword(input.Password)
		if errors.Is(err, auth.ErrWeakPassword) {
			badRequest(c, err)
			return
		}
		if err != nil {
			d.respond(c, err)
			return
		}

		now := d.now()
		var profile models.Profile
		var linked int
		err = d.DB.WithContext(c).Transaction(func(tx *gorm.DB) error {
			var inv models.Invite
			if err := tx.Where("token_hash = ?", auth.HashToken(input.Token)).First(&inv).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("invite %w", ErrNotFound)
				}
				return err
			}
			if inv.AcceptedAt != nil {
				return fmt.Errorf("%w: invite already accepted", ErrConflict)
			}
			if !inv.Pending(now) {
				return fmt.Errorf("invite expired: %w", ErrNotFound)
			}

			var taken int64
			if err := tx.Model(&models.Profile{}).Where("email = ?", inv.Email).Count(&taken).Error; err != nil {
				return err
			}
			if taken > 0 {
				return fmt.Errorf("%w: a profile with this email already exists", ErrConflict)
			}

			name := strings.TrimSpace(input.FullName)
			if name == "" {
				name = inv.FullName
			}
			profile = models.Profile{
				Email:         inv.Email,
				FullName:      name,
				PasswordHash:  hash,
				IsAdmin:       inv.IsAdmin,
				IsCoach:       inv.IsCoach,
				IsParent:      inv.IsParent,
				Status:        models.ProfileActive,
				CalendarToken: auth.NewCalendarToken(),
			}
			if err := tx.Create(&profile).Error; err != nil {
				return err
			}
			if err := tx.Model(&inv).Update("accepted_at", now).Error; err != nil {
				return err
			}

			n, err := csvimport.ResolvePendingParents(c, tx, &profile)
			if err != nil {
				return err
			}
			linked = n
			if n > 0 {
				profile.IsParent = true
			}
			return nil
		})
		if err != nil {
			d.respond(c, err)
			return
		}

		if err := audit.RecordSystem(c, d.DB, profile.Email, audit.Entry{
			Action: "invites.accept", ResourceType: "profile", ResourceID: profile.ID,
			Metadata: map[string]interface{}{"riders_linked": linked},
		}); err != nil {
			d.Log.Warn("failed to write audit entry invites.accept: ", err)
		}
		d.startSession(c, &profile)
	}
}
