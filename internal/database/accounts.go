package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"plansync/internal/models"
)

// GetCalendarAccount returns the user's calendar link, or nil when the user
// has never connected a calendar. Absence is a normal state, not an error.
func (db *DB) GetCalendarAccount(ctx context.Context, userID int64) (*models.CalendarAccount, error) {
	var account models.CalendarAccount
	err := db.QueryRowContext(ctx,
		`SELECT user_id, refresh_token, calendar_id, created_at, updated_at
         FROM calendar_accounts WHERE user_id = ?`, userID,
	).Scan(&account.UserID, &account.RefreshToken, &account.CalendarID,
		&account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar account for user %d: %w", userID, err)
	}
	return &account, nil
}

// SaveCalendarAccount inserts or refreshes the user's calendar link.
func (db *DB) SaveCalendarAccount(ctx context.Context, account *models.CalendarAccount) error {
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	query := `INSERT INTO calendar_accounts (user_id, refresh_token, calendar_id, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?)
              ON CONFLICT(user_id) DO UPDATE SET
                refresh_token = excluded.refresh_token,
                calendar_id = excluded.calendar_id,
                updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, query,
		account.UserID, account.RefreshToken, account.CalendarID,
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save calendar account for user %d: %w", account.UserID, err)
	}
	return nil
}

// SetAccountCalendarID caches the resolved dedicated calendar id.
func (db *DB) SetAccountCalendarID(ctx context.Context, userID int64, calendarID string) error {
	query := `UPDATE calendar_accounts SET calendar_id = ?, updated_at = ? WHERE user_id = ?`
	if _, err := db.ExecContext(ctx, query, calendarID, time.Now(), userID); err != nil {
		return fmt.Errorf("failed to set calendar id for user %d: %w", userID, err)
	}
	return nil
}

// DeleteCalendarAccount removes the user's calendar link.
func (db *DB) DeleteCalendarAccount(ctx context.Context, userID int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM calendar_accounts WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete calendar account for user %d: %w", userID, err)
	}
	return nil
}
