package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health reports whether the database answers a ping.
func Health(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := d.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c)
		}
		if err != nil {
			d.Log.Error("health check failed: ", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
