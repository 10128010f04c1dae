package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/protocol"
	"gorm.io/gorm"

	"clubhub/internal/auth"
	"clubhub/internal/models"
	"clubhub/internal/passkey"
)

// Login authenticates with email and password and returns a JWT.
func Login(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		var profile models.Profile
		err := d.DB.WithContext(c).Where("email = ?", strings.ToLower(strings.TrimSpace(input.Email))).First(&profile).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			d.respond(c, err)
			return
		}
		if err != nil || !auth.CheckPassword(profile.PasswordHash, input.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}

		d.startSession(c, &profile)
	}
}

// startSession issues a token for an authenticated profile, sets the cookie and answers 200.
func (d *Deps) startSession(c *gin.Context, profile *models.Profile) {
	if profile.Status != models.ProfileActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "account suspended"})
		return
	}

	ttl := d.Config.Auth.TokenTTL
	token, err := auth.IssueToken(d.Config.Auth.JWTSecret, profile, ttl, d.now())
	if err != nil {
		d.respond(c, err)
		return
	}
	auth.SetSessionCookie(c, token, int(ttl.Seconds()), d.Config.Auth.SecureCookie)

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"profile": profile,
	})
}

// Logout clears the session cookie. Bearer tokens simply expire.
func Logout(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth.ClearSessionCookie(c, d.Config.Auth.SecureCookie)
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

// PasskeyLoginBegin returns WebAuthn assertion options for the given email.
func PasskeyLoginBegin(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Email string `json:"email" binding:"required,email"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		opts, err := d.Passkeys.BeginLogin(c, input.Email)
		if errors.Is(err, passkey.ErrNoPasskeys) || errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no passkeys registered for this account"})
			return
		}
		if err != nil {
			d.respond(c, err)
			return
		}
		c.JSON(http.StatusOK, opts)
	}
}

// PasskeyLoginFinish verifies the assertion in the body and starts a session.
func PasskeyLoginFinish(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.Query("email")
		if email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
			return
		}

		profile, err := d.Passkeys.FinishLogin(c, email, c.Request)
		if err != nil {
			var verifyErr *protocol.Error
			if errors.As(err, &verifyErr) || errors.Is(err, gorm.ErrRecordNotFound) || statusFor(err) == http.StatusUnauthorized {
				d.Log.Warn("passkey login failed for ", email, ": ", err)
				c.JSON(http.StatusUnauthorized, gin.H{"error": "passkey verification failed"})
				return
			}
			d.respond(c, err)
			return
		}
		d.startSession(c, profile)
	}
}
