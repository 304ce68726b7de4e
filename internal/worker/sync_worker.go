package worker

import (
	"context"
	"time"

	"plansync/internal/models"

	"github.com/rs/zerolog"
)

// processTimeout caps how long one queued request may hold the worker loop.
// Generous on purpose; it only exists so a wedged provider call cannot stall
// the queue forever.
const processTimeout = 2 * time.Minute

// Syncer is the slice of the engine the worker drives.
type Syncer interface {
	SyncTask(ctx context.Context, taskID, userID int64) (bool, error)
	RemoveEvent(ctx context.Context, userID int64, eventID string) error
	StartBulk(ctx context.Context, userID int64) (string, error)
}

type requestKind int

const (
	requestSyncTask requestKind = iota
	requestRemoveEvent
)

type syncResult struct {
	synced bool
	err    error
}

type syncRequest struct {
	kind    requestKind
	taskID  int64
	userID  int64
	eventID string

	// reply is buffered so the worker never blocks on a caller that gave up
	// waiting.
	reply chan syncResult
}

// SyncWorker serializes sync work through one buffered channel. Callers on a
// write path hand off a request and wait at most the task budget for the
// answer; the work itself keeps running on the worker's clock either way.
type SyncWorker struct {
	syncer      Syncer
	queue       chan syncRequest
	taskTimeout time.Duration
	logger      *zerolog.Logger
}

func NewSyncWorker(syncer Syncer, queueSize int, taskTimeout time.Duration, logger *zerolog.Logger) *SyncWorker {
	if queueSize <= 0 {
		queueSize = models.WorkerQueueSize
	}
	if taskTimeout <= 0 {
		taskTimeout = models.DefaultTaskSyncTimeoutSeconds * time.Second
	}
	return &SyncWorker{
		syncer:      syncer,
		queue:       make(chan syncRequest, queueSize),
		taskTimeout: taskTimeout,
		logger:      logger,
	}
}

// Start runs the worker loop until the context is canceled.
func (w *SyncWorker) Start(ctx context.Context) {
	w.logger.Info().Int("queue_size", cap(w.queue)).Msg("sync worker started")
	defer w.logger.Info().Msg("sync worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case request := <-w.queue:
			w.process(ctx, request)
		}
	}
}

func (w *SyncWorker) process(ctx context.Context, request syncRequest) {
	ctx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()

	switch request.kind {
	case requestSyncTask:
		synced, err := w.syncer.SyncTask(ctx, request.taskID, request.userID)
		if err != nil {
			w.logger.Error().Err(err).
				Int64("task_id", request.taskID).
				Int64("user_id", request.userID).
				Msg("task sync failed")
		}
		if request.reply != nil {
			request.reply <- syncResult{synced: synced, err: err}
		}
	case requestRemoveEvent:
		if err := w.syncer.RemoveEvent(ctx, request.userID, request.eventID); err != nil {
			w.logger.Error().Err(err).
				Int64("user_id", request.userID).
				Str("event_id", request.eventID).
				Msg("event removal failed")
		}
	}
}

// SyncTaskNow enqueues a single-task sync and waits up to the task budget for
// the result. Over-budget syncs report false and finish in the background; a
// full queue reports false immediately. The caller's local write is never
// held hostage.
func (w *SyncWorker) SyncTaskNow(ctx context.Context, taskID, userID int64) (bool, error) {
	reply := make(chan syncResult, 1)
	request := syncRequest{kind: requestSyncTask, taskID: taskID, userID: userID, reply: reply}

	select {
	case w.queue <- request:
	default:
		w.logger.Warn().Int64("task_id", taskID).Int64("user_id", userID).Msg("sync queue full, task sync dropped")
		return false, nil
	}

	timer := time.NewTimer(w.taskTimeout)
	defer timer.Stop()

	select {
	case result := <-reply:
		return result.synced, result.err
	case <-timer.C:
		w.logger.Warn().
			Int64("task_id", taskID).
			Dur("budget", w.taskTimeout).
			Msg("task sync over budget, finishing in background")
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// StartBulkSync hands the whole-account sync to the engine, which runs it
// detached; the returned job id is pollable immediately.
func (w *SyncWorker) StartBulkSync(ctx context.Context, userID int64) (string, error) {
	return w.syncer.StartBulk(ctx, userID)
}

// RemoveEventAsync enqueues a remote event deletion without waiting. A
// dropped removal is healed by the next bulk run's orphan sweep.
func (w *SyncWorker) RemoveEventAsync(userID int64, eventID string) {
	if eventID == "" {
		return
	}
	select {
	case w.queue <- syncRequest{kind: requestRemoveEvent, userID: userID, eventID: eventID}:
	default:
		w.logger.Warn().Int64("user_id", userID).Str("event_id", eventID).Msg("sync queue full, event removal dropped")
	}
}
