package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubhub/internal/audit"
	"clubhub/internal/db"
	"clubhub/internal/logger"
	"clubhub/internal/models"
)

type warnLogger struct {
	logger.Logger
	warnings []string
}

func (l *warnLogger) Warn(args ...interface{}) {
	l.warnings = append(l.warnings, fmt.Sprint(args...))
}

func auditContext() *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/groups", nil)
	return c
}

func TestRecord_WritesAuditRow(t *testing.T) {
	gdb := db.NewTestDB(t)
	log := &warnLogger{Logger: logger.NewNopLogger()}
	d := &Deps{DB: gdb, Log: log}

	d.record(auditContext(), audit.Entry{Action: "groups.create", ResourceType: "group", ResourceID: 7})

	var row models.AuditLog
	require.NoError(t, gdb.First(&row).Error)
	assert.Equal(t, "groups.create", row.Action)
	assert.Empty(t, log.warnings)
}

func TestRecord_LogsFailedWrite(t *testing.T) {
	gdb := db.NewTestDB(t)
	require.NoError(t, gdb.Migrator().DropTable(&models.AuditLog{}))
	log := &warnLogger{Logger: logger.NewNopLogger()}
	d := &Deps{DB: gdb, Log: log}

	d.record(auditContext(), audit.Entry{Action: "groups.create", ResourceType: "group", ResourceID: 7})

	require.Len(t, log.warnings, 1)
	assert.Contains(t, log.warnings[0], "failed to write audit entry groups.create")
}
