package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncProgress counts what a bulk run has done so far. Counters only grow.
type SyncProgress struct {
	TasksSeen       int `json:"tasks_seen"`
	PlanningSynced  int `json:"planning_synced"`
	DeadlinesSynced int `json:"deadlines_synced"`
	EventsRemoved   int `json:"events_removed"`
}

// Add merges a progress delta into the receiver.
func (p *SyncProgress) Add(delta SyncProgress) {
	p.TasksSeen += delta.TasksSeen
	p.PlanningSynced += delta.PlanningSynced
	p.DeadlinesSynced += delta.DeadlinesSynced
	p.EventsRemoved += delta.EventsRemoved
}

// SyncJob tracks one background bulk synchronization. Jobs are ephemeral:
// terminal jobs are kept only long enough for a client to poll the result.
type SyncJob struct {
	ID         string       `json:"id"`
	UserID     int64        `json:"user_id"`
	Status     string       `json:"status"`
	Progress   SyncProgress `json:"progress"`
	Errors     []string     `json:"errors,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// NewSyncJob creates an in-progress job for the user.
func NewSyncJob(userID int64) *SyncJob {
	return &SyncJob{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    JobStatusInProgress,
		StartedAt: time.Now().UTC(),
	}
}

// Terminal reports whether the job has finished, successfully or not.
func (j *SyncJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Complete marks the job finished. Non-fatal errors collected along the way
// stay visible in Errors but do not fail the job.
func (j *SyncJob) Complete() {
	now := time.Now().UTC()
	j.FinishedAt = &now
	j.Status = JobStatusCompleted
}

// Fail marks the job failed with a final error.
func (j *SyncJob) Fail(msg string) {
	j.Errors = append(j.Errors, msg)
	now := time.Now().UTC()
	j.FinishedAt = &now
	j.Status = JobStatusFailed
}

// AddError records a non-fatal error without terminating the job.
func (j *SyncJob) AddError(msg string) {
	j.Errors = append(j.Errors, msg)
}
