package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"plansync/internal/domain"
	"plansync/internal/models"

	"github.com/rs/zerolog"
)

// FailoverJobStore serves from the primary store until it fails, then from
// the fallback, probing the primary again after a cooldown.
type FailoverJobStore struct {
	primary   domain.JobStore
	fallback  domain.JobStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

const recoveryInterval = time.Minute

func NewFailoverJobStore(primary, fallback domain.JobStore, logger *zerolog.Logger) *FailoverJobStore {
	return &FailoverJobStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverJobStore) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary job store failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverJobStore) shouldProbe() bool {
	last := time.Unix(0, r.lastCheck.Load())
	return time.Since(last) > recoveryInterval
}

func (r *FailoverJobStore) Save(ctx context.Context, job *models.SyncJob) error {
	if !r.isDown.Load() || r.shouldProbe() {
		err := r.primary.Save(ctx, job)
		if err == nil {
			r.isDown.Store(false)
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.Save(ctx, job)
}

func (r *FailoverJobStore) Get(ctx context.Context, id string) (*models.SyncJob, error) {
	if !r.isDown.Load() || r.shouldProbe() {
		job, err := r.primary.Get(ctx, id)
		if err == nil {
			r.isDown.Store(false)
			return job, nil
		}
		r.markDown(err)
	}
	return r.fallback.Get(ctx, id)
}
