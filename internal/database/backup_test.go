package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"plansync/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupOnce(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "source.db")
	backupDir := filepath.Join(tempDir, "backups")

	logger := zerolog.Nop()
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	s := NewBackupService(dbPath, config.BackupConfig{
		Enabled:     true,
		StoragePath: backupDir,
	}, &logger)

	require.NoError(t, s.BackupOnce())

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "plansync_")
}

func TestBackupDisabled(t *testing.T) {
	logger := zerolog.Nop()
	s := NewBackupService("any", config.BackupConfig{Enabled: false}, &logger)

	// Run returns immediately when disabled
	s.Run(context.Background())
}
