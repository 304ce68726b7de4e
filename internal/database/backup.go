package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"plansync/internal/config"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// BackupService snapshots the sqlite database on an interval. Snapshots use
// VACUUM INTO, which is safe against concurrent writers.
type BackupService struct {
	dbPath string
	cfg    config.BackupConfig
	logger *zerolog.Logger
}

func NewBackupService(dbPath string, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	return &BackupService{dbPath: dbPath, cfg: cfg, logger: logger}
}

// Run backs up immediately, then on every interval tick until ctx is done.
func (s *BackupService) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info().Msg("backup service is disabled")
		return
	}

	interval := 24 * time.Hour
	if s.cfg.Interval != "" {
		if d, err := time.ParseDuration(s.cfg.Interval); err == nil {
			interval = d
		} else {
			s.logger.Warn().Err(err).Str("interval", s.cfg.Interval).Msg("invalid backup interval, using 24h")
		}
	}

	s.logger.Info().Dur("interval", interval).Str("path", s.cfg.StoragePath).Msg("backup service started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.BackupOnce(); err != nil {
			s.logger.Error().Err(err).Msg("database backup failed")
		}
		s.prune()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// BackupOnce writes one timestamped snapshot into the storage path.
func (s *BackupService) BackupOnce() error {
	if err := os.MkdirAll(s.cfg.StoragePath, 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := fmt.Sprintf("plansync_%s.db", time.Now().Format("20060102_150405"))
	target := filepath.Join(s.cfg.StoragePath, name)

	db, err := sql.Open("sqlite3", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(fmt.Sprintf("VACUUM INTO '%s'", target)); err != nil {
		return fmt.Errorf("vacuum into %s: %w", target, err)
	}

	s.logger.Info().Str("snapshot", target).Msg("database backup written")
	return nil
}

// prune removes snapshots older than the retention window.
func (s *BackupService) prune() {
	if s.cfg.RetentionDays <= 0 {
		return
	}

	entries, err := os.ReadDir(s.cfg.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read backup directory")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("snapshot", entry.Name()).Msg("removing expired backup")
			os.Remove(filepath.Join(s.cfg.StoragePath, entry.Name()))
		}
	}
}
