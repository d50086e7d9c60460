package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "nutrinani.db")

	db, err := NewDatabase(path, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"auth_events", "provider_sessions", "sessions"} {
		assert.True(t, db.DB.Migrator().HasTable(table), "table %s should exist", table)
	}

	sqlDB, err := db.SQL()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Ping())
}

func TestNewDatabase_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nutrinani.db")

	db, err := NewDatabase(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDatabase(path, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, db.Close())
}
