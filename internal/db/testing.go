package db

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"clubhub/internal/config"
)

// NewTestDB returns a migrated, isolated in-memory SQLite database closed on test cleanup.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := Connect(config.DatabaseSettings{Type: config.SqliteDbType, DSN: dsn})
	require.NoError(t, err, "failed to open test database")

	t.Cleanup(func() { _ = Close(gdb) })

	require.NoError(t, AutoMigrate(gdb), "failed to migrate test database")
	return gdb
}
