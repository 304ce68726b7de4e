package calendar

import (
	"context"
	"errors"
	"fmt"

	"plansync/internal/domain"
	"plansync/internal/jobs"
	"plansync/internal/metrics"
	"plansync/internal/models"
	"plansync/internal/outlook"

	"github.com/rs/zerolog"
)

// ErrNotConnected signals that the user has no usable calendar link. It is
// an expected condition on every sync path, never an operational error.
var ErrNotConnected = errors.New("calendar not connected")

// Engine mirrors schedulable tasks into each user's dedicated calendar. It
// resolves credentials and the calendar, maps tasks to event payloads,
// writes them singly or in batches, and sweeps orphaned events.
type Engine struct {
	store        domain.Store
	provider     domain.CalendarProvider
	tracker      *jobs.Tracker
	logger       *zerolog.Logger
	calendarName string
	batchSize    int
}

func NewEngine(store domain.Store, provider domain.CalendarProvider, tracker *jobs.Tracker, calendarName string, batchSize int, logger *zerolog.Logger) *Engine {
	if calendarName == "" {
		calendarName = models.DefaultCalendarName
	}
	if batchSize <= 0 || batchSize > models.DefaultBatchSize {
		batchSize = models.DefaultBatchSize
	}
	return &Engine{
		store:        store,
		provider:     provider,
		tracker:      tracker,
		logger:       logger,
		calendarName: calendarName,
		batchSize:    batchSize,
	}
}

// resolveSession loads the user's calendar link and exchanges its refresh
// token for a session. Missing accounts and dead credentials both come back
// as ErrNotConnected; the engine never repairs credentials.
func (e *Engine) resolveSession(ctx context.Context, userID int64) (domain.CalendarSession, *models.CalendarAccount, error) {
	account, err := e.store.GetCalendarAccount(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load calendar account: %w", err)
	}
	if !account.Connected() {
		return nil, nil, ErrNotConnected
	}

	session, err := e.provider.Session(ctx, account.RefreshToken)
	if err != nil {
		e.logger.Warn().Err(err).Int64("user_id", userID).Msg("refresh token exchange failed")
		return nil, nil, ErrNotConnected
	}
	return session, account, nil
}

// SyncTask mirrors one task into its user's calendar. The bool result tells
// the caller whether the remote event is now up to date; expected conditions
// (task gone, calendar not connected, unmappable data) report false without
// an error.
func (e *Engine) SyncTask(ctx context.Context, taskID, userID int64) (bool, error) {
	logger := e.logger.With().Int64("task_id", taskID).Int64("user_id", userID).Logger()

	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		metrics.IncSyncAttempt("task", "error")
		return false, err
	}
	if task == nil || task.UserID != userID {
		logger.Debug().Msg("task gone before sync")
		metrics.IncSyncAttempt("task", "skipped")
		return false, nil
	}

	session, account, err := e.resolveSession(ctx, userID)
	if errors.Is(err, ErrNotConnected) {
		logger.Debug().Msg("sync skipped, calendar not connected")
		metrics.IncSyncAttempt("task", "skipped")
		return false, nil
	}
	if err != nil {
		metrics.IncSyncAttempt("task", "error")
		return false, err
	}

	payload, err := e.payloadFor(ctx, task)
	if errors.Is(err, ErrNotMappable) {
		logger.Warn().Err(err).Msg("task skipped, no event payload")
		metrics.IncUnmappableTask()
		metrics.IncSyncAttempt("task", "skipped")
		return false, nil
	}
	if err != nil {
		metrics.IncSyncAttempt("task", "error")
		return false, err
	}

	calendarID, err := e.calendarID(ctx, session, account)
	if err != nil {
		metrics.IncSyncAttempt("task", "error")
		return false, err
	}

	if err := e.ensureCategories(ctx, session); err != nil {
		// Category colors are cosmetic; a failure never blocks the sync.
		logger.Warn().Err(err).Msg("failed to ensure category taxonomy")
	}

	if _, err := e.upsertEvent(ctx, session, calendarID, task, payload); err != nil {
		metrics.IncSyncAttempt("task", "error")
		return false, fmt.Errorf("failed to sync task %d: %w", taskID, err)
	}

	metrics.IncSyncAttempt("task", "ok")
	return true, nil
}

// RemoveEvent deletes a remote event after its task is gone. A missing event
// or a missing calendar link means the work is already done.
func (e *Engine) RemoveEvent(ctx context.Context, userID int64, eventID string) error {
	if eventID == "" {
		return nil
	}

	session, _, err := e.resolveSession(ctx, userID)
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := session.DeleteEvent(ctx, eventID); err != nil && !outlook.IsNotFound(err) {
		return fmt.Errorf("failed to remove event %s: %w", eventID, err)
	}
	metrics.IncEventWritten("delete")
	e.logger.Info().Int64("user_id", userID).Str("event_id", eventID).Msg("remote event removed")
	return nil
}

// HandleUnlink clears every stored remote reference for the user. Once the
// link is gone the dedicated calendar is unreachable, so the references can
// no longer be kept true.
func (e *Engine) HandleUnlink(ctx context.Context, userID int64) error {
	cleared, err := e.store.ClearEventReferences(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to clear event references: %w", err)
	}
	e.logger.Info().Int64("user_id", userID).Int64("cleared", cleared).Msg("calendar unlinked, event references cleared")
	return nil
}
