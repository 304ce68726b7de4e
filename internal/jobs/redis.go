package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"plansync/internal/config"
	"plansync/internal/models"

	"github.com/redis/go-redis/v9"
)

// inProgressTTL caps how long a job record survives when its run never
// terminates, e.g. after a crash mid-bulk.
const inProgressTTL = time.Hour

// NewRedisClient creates a redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// RedisJobStore keeps sync jobs in redis. Terminal jobs expire after the
// retention window; in-progress jobs carry a longer safety TTL.
type RedisJobStore struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisJobStore(client *redis.Client, retention time.Duration) *RedisJobStore {
	return &RedisJobStore{client: client, retention: retention}
}

func jobKey(id string) string {
	return "sync_job:" + id
}

func (r *RedisJobStore) Save(ctx context.Context, job *models.SyncJob) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal sync job: %w", err)
	}

	ttl := inProgressTTL
	if job.Terminal() {
		ttl = r.retention
	}

	if err := r.client.Set(ctx, jobKey(job.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save sync job in redis: %w", err)
	}
	return nil
}

func (r *RedisJobStore) Get(ctx context.Context, id string) (*models.SyncJob, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, jobKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync job from redis: %w", err)
	}

	var job models.SyncJob
	if err := json.Unmarshal([]byte(val), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sync job: %w", err)
	}
	return &job, nil
}

// Ping verifies the redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Close closes the redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
