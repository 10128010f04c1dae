package logger

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// GinMiddleware logs one line per request.
func GinMiddleware(log Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		line := fmt.Sprintf("%s %s %d %s", c.Request.Method, c.FullPath(), status, time.Since(start).Round(time.Microsecond))
		switch {
		case status >= 500:
			log.Error(line, " ", c.Errors.String())
		case status >= 400:
			log.Warn(line)
		default:
			log.Info(line)
		}
	}
}
