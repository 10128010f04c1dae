package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clubhub/internal/models"
)

const (
	claimsKey  = "claims"
	profileKey = "profile"

	// CookieName is the cookie carrying the session JWT for browser clients.
	CookieName = "token"
)

// JWT returns a Gin middleware that validates JWT tokens from
// either the Authorization header or the "token" cookie and verifies
// that the profile still exists and is active.
func JWT(db *gorm.DB, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if tokenStr == "" {
			if cookie, err := c.Cookie(CookieName); err == nil {
				tokenStr = cookie
			}
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := ParseToken(secret, tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		var profile models.Profile
		if err := db.WithContext(c).First(&profile, claims.ProfileID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "profile not found"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		if profile.Status != models.ProfileActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account suspended"})
			return
		}

		c.Set(claimsKey, claims)
		c.Set(profileKey, &profile)
		c.Next()
	}
}

// CurrentProfile returns the profile loaded by the JWT middleware, or nil.
func CurrentProfile(c *gin.Context) *models.Profile {
	v, ok := c.Get(profileKey)
	if !ok {
		return nil
	}
	p, _ := v.(*models.Profile)
	return p
}

// SetProfile stores p as the authenticated profile; used by tests and token-less auth paths.
func SetProfile(c *gin.Context, p *models.Profile) {
	c.Set(profileKey, p)
}

// SetSessionCookie stores the JWT in an HttpOnly cookie so browsers send it automatically.
func SetSessionCookie(c *gin.Context, token string, maxAge int, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, maxAge, "/", "", secure, true)
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", secure, true)
}
