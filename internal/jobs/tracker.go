package jobs

import (
	"context"
	"errors"
	"fmt"

	"plansync/internal/domain"
	"plansync/internal/models"
)

var (
	// ErrNotFound is returned when a job does not exist or has expired.
	ErrNotFound = errors.New("sync job not found")

	// ErrTerminal is returned when a mutation targets a completed or
	// failed job. Terminal transitions are one-way.
	ErrTerminal = errors.New("sync job is already terminal")
)

// Tracker owns the sync job state machine: in_progress moves to completed
// or failed exactly once, counters only merge forward, and terminal jobs
// stick around just long enough to be polled.
type Tracker struct {
	store domain.JobStore
}

func NewTracker(store domain.JobStore) *Tracker {
	return &Tracker{store: store}
}

// Create registers a new in-progress job for the user.
func (t *Tracker) Create(ctx context.Context, userID int64) (*models.SyncJob, error) {
	job := models.NewSyncJob(userID)
	if err := t.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create sync job: %w", err)
	}
	return job, nil
}

// Get returns a job, or ErrNotFound once it has expired.
func (t *Tracker) Get(ctx context.Context, id string) (*models.SyncJob, error) {
	job, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}
	return job, nil
}

// UpdateProgress merges a counter delta and any non-fatal errors into the
// job without touching its status.
func (t *Tracker) UpdateProgress(ctx context.Context, id string, delta models.SyncProgress, errMsgs ...string) error {
	job, err := t.mutable(ctx, id)
	if err != nil {
		return err
	}

	job.Progress.Add(delta)
	for _, msg := range errMsgs {
		job.AddError(msg)
	}
	return t.store.Save(ctx, job)
}

// Complete terminates the job as completed. Accumulated non-fatal errors
// stay visible on the job but do not change the outcome.
func (t *Tracker) Complete(ctx context.Context, id string, final models.SyncProgress) error {
	job, err := t.mutable(ctx, id)
	if err != nil {
		return err
	}

	job.Progress.Add(final)
	job.Complete()
	return t.store.Save(ctx, job)
}

// Fail terminates the job with an error message.
func (t *Tracker) Fail(ctx context.Context, id, msg string) error {
	job, err := t.mutable(ctx, id)
	if err != nil {
		return err
	}

	job.Fail(msg)
	return t.store.Save(ctx, job)
}

func (t *Tracker) mutable(ctx context.Context, id string) (*models.SyncJob, error) {
	job, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrTerminal, id)
	}
	return job, nil
}
