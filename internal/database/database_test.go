package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"plansync/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedTask(t *testing.T, db *DB, task models.Task) *models.Task {
	t.Helper()
	if task.Date.IsZero() {
		task.Date = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	}
	require.NoError(t, db.UpsertTask(context.Background(), &task))
	return &task
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	tempDir := t.TempDir()

	dbPath := filepath.Join(tempDir, "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(dbPath)
	require.NoError(t, err)
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.PingContext(context.Background()))
}
