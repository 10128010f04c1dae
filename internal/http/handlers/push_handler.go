package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clubhub/internal/auth"
	"clubhub/internal/models"
)

// VAPIDPublicKey exposes the application server key browsers need to subscribe.
func VAPIDPublicKey(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !d.Config.PushEnabled() {
			c.JSON(http.StatusNotFound, gin.H{"error": "web push is not configured"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"public_key": d.Config.Push.VAPIDPublicKey})
	}
}

// Subscribe stores a browser push subscription for the caller, replacing any row with the same endpoint.
func Subscribe(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Endpoint string `json:"endpoint" binding:"required,url,max=1024"`
			Keys     struct {
				P256dh string `json:"p256dh" binding:"required"`
				Auth   string `json:"auth" binding:"required"`
			} `json:"keys"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		p := auth.CurrentProfile(c)
		var sub models.PushSubscription
		err := d.DB.WithContext(c).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("endpoint = ?", input.Endpoint).Delete(&models.PushSubscription{}).Error; err != nil {
				return err
			}
			sub = models.PushSubscription{
				ProfileID: p.ID,
				Endpoint:  input.Endpoint,
				P256dh:    input.Keys.P256dh,
				Auth:      input.Keys.Auth,
				UserAgent: truncateString(c.GetHeader("User-Agent"), 255),
			}
			return tx.Create(&sub).Error
		})
		if err != nil {
			d.respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"subscription": sub})
	}
}

// Unsubscribe removes one of the caller's subscriptions by endpoint.
func Unsubscribe(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Endpoint string `json:"endpoint" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}
		p := auth.CurrentProfile(c)
		if err := d.DB.WithContext(c).Where("endpoint = ? AND profile_id = ?", input.Endpoint, p.ID).
			Delete(&models.PushSubscription{}).Error; err != nil {
			d.respond(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func truncateString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
