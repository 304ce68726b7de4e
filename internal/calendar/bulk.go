package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plansync/internal/metrics"
	"plansync/internal/models"

	"github.com/rs/zerolog"
)

// StartBulk registers a sync job and runs the full synchronization in the
// background, detached from the caller's request context. The caller gets
// the job id immediately and polls the tracker for progress.
func (e *Engine) StartBulk(ctx context.Context, userID int64) (string, error) {
	job, err := e.tracker.Create(ctx, userID)
	if err != nil {
		return "", err
	}

	go e.runBulk(context.Background(), job.ID, userID)

	return job.ID, nil
}

// runBulk executes the three phases of a bulk sync: planning tasks, deadline
// tasks, orphan cleanup. Per-item failures accumulate on the job without
// changing its outcome; only conditions that make the whole run impossible
// fail it.
func (e *Engine) runBulk(ctx context.Context, jobID string, userID int64) {
	started := time.Now()
	logger := e.logger.With().Str("job_id", jobID).Int64("user_id", userID).Logger()
	logger.Info().Msg("bulk sync started")

	session, account, err := e.resolveSession(ctx, userID)
	if errors.Is(err, ErrNotConnected) {
		metrics.IncSyncAttempt("bulk", "skipped")
		e.failJob(ctx, jobID, "calendar not connected", &logger)
		return
	}
	if err != nil {
		metrics.IncSyncAttempt("bulk", "error")
		e.failJob(ctx, jobID, err.Error(), &logger)
		return
	}

	calendarID, err := e.ensureCalendar(ctx, session, account)
	if err != nil {
		metrics.IncSyncAttempt("bulk", "error")
		e.failJob(ctx, jobID, fmt.Sprintf("failed to resolve calendar: %v", err), &logger)
		return
	}

	if err := e.ensureCategories(ctx, session); err != nil {
		logger.Warn().Err(err).Msg("failed to ensure category taxonomy")
		e.updateJob(ctx, jobID, models.SyncProgress{}, &logger, err.Error())
	}

	planning, err := e.store.GetPlanningTasks(ctx, userID)
	if err != nil {
		metrics.IncSyncAttempt("bulk", "error")
		e.failJob(ctx, jobID, fmt.Sprintf("failed to load planning tasks: %v", err), &logger)
		return
	}
	synced, phaseErrs := e.syncPhase(ctx, session, calendarID, planning)
	e.updateJob(ctx, jobID, models.SyncProgress{TasksSeen: len(planning), PlanningSynced: synced}, &logger, phaseErrs...)

	deadlines, err := e.store.GetDeadlineTasks(ctx, userID)
	if err != nil {
		metrics.IncSyncAttempt("bulk", "error")
		e.failJob(ctx, jobID, fmt.Sprintf("failed to load deadline tasks: %v", err), &logger)
		return
	}
	synced, phaseErrs = e.syncPhase(ctx, session, calendarID, deadlines)
	e.updateJob(ctx, jobID, models.SyncProgress{TasksSeen: len(deadlines), DeadlinesSynced: synced}, &logger, phaseErrs...)

	removed, reconcileErrs := e.reconcile(ctx, session, calendarID, userID)
	if len(reconcileErrs) > 0 {
		e.updateJob(ctx, jobID, models.SyncProgress{}, &logger, reconcileErrs...)
	}

	if err := e.tracker.Complete(ctx, jobID, models.SyncProgress{EventsRemoved: removed}); err != nil {
		logger.Error().Err(err).Msg("failed to complete sync job")
	}

	metrics.IncSyncAttempt("bulk", "ok")
	metrics.ObserveBulkDuration(time.Since(started))
	logger.Info().
		Int("planning_tasks", len(planning)).
		Int("deadline_tasks", len(deadlines)).
		Int("events_removed", removed).
		Dur("took", time.Since(started)).
		Msg("bulk sync finished")
}

func (e *Engine) failJob(ctx context.Context, jobID, msg string, logger *zerolog.Logger) {
	logger.Warn().Str("reason", msg).Msg("bulk sync failed")
	if err := e.tracker.Fail(ctx, jobID, msg); err != nil {
		logger.Error().Err(err).Msg("failed to mark sync job failed")
	}
}

func (e *Engine) updateJob(ctx context.Context, jobID string, delta models.SyncProgress, logger *zerolog.Logger, errMsgs ...string) {
	if err := e.tracker.UpdateProgress(ctx, jobID, delta, errMsgs...); err != nil {
		logger.Error().Err(err).Msg("failed to update sync job")
	}
}
