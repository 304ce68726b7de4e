package jobs

import (
	"context"
	"sync"
	"time"

	"plansync/internal/models"
)

// MemoryJobStore is the in-process fallback store. Expiry is lazy: expired
// entries are dropped when read.
type MemoryJobStore struct {
	jobs      sync.Map
	retention time.Duration
}

type memoryEntry struct {
	job       *models.SyncJob
	expiresAt time.Time
}

func NewMemoryJobStore(retention time.Duration) *MemoryJobStore {
	return &MemoryJobStore{retention: retention}
}

func (m *MemoryJobStore) Save(ctx context.Context, job *models.SyncJob) error {
	ttl := inProgressTTL
	if job.Terminal() {
		ttl = m.retention
	}
	m.jobs.Store(job.ID, &memoryEntry{job: cloneJob(job), expiresAt: time.Now().Add(ttl)})
	return nil
}

func (m *MemoryJobStore) Get(ctx context.Context, id string) (*models.SyncJob, error) {
	val, ok := m.jobs.Load(id)
	if !ok {
		return nil, nil
	}
	entry := val.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		m.jobs.Delete(id)
		return nil, nil
	}
	return cloneJob(entry.job), nil
}

// cloneJob snapshots a job so stored state never aliases a job the caller
// keeps mutating. The redis store gets this for free from serialization.
func cloneJob(job *models.SyncJob) *models.SyncJob {
	clone := *job
	if job.Errors != nil {
		clone.Errors = append([]string(nil), job.Errors...)
	}
	if job.FinishedAt != nil {
		finished := *job.FinishedAt
		clone.FinishedAt = &finished
	}
	return &clone
}
