package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clubhub/internal/audit"
	"clubhub/internal/config"
	"clubhub/internal/logger"
	"clubhub/internal/notify"
	"clubhub/internal/passkey"
	"clubhub/internal/rbac"
)

// Deps is shared by every handler constructor.
type Deps struct {
	DB       *gorm.DB
	Config   *config.Config
	Log      logger.Logger
	Mailer   notify.Mailer
	Passkeys *passkey.Service
	Checker  rbac.Checker
	Now      func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// record writes an audit row for the request. The action has already
// happened, so a failed write is logged rather than returned.
func (d *Deps) record(c *gin.Context, e audit.Entry) {
	if err := audit.Record(c, d.DB, e); err != nil {
		d.Log.Warn("failed to write audit entry ", e.Action, ": ", err)
	}
}
