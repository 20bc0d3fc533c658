package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/phambaophuc/smartmine-client/internal/models"
)

var ErrJobNotFound = errors.New("job not found")

// jobCache is the slice of the Redis API the job store uses.
type jobCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// JobStore keeps queued job state in Redis until it expires.
type JobStore struct {
	redisClient jobCache
	ttl         time.Duration
}

func NewJobStore(redisClient jobCache, ttl time.Duration) *JobStore {
	return &JobStore{redisClient: redisClient, ttl: ttl}
}

func jobKey(id string) string {
	return "smartmine_job:" + id
}

func (s *JobStore) SaveJob(ctx context.Context, job *models.ProcessingJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := s.redisClient.Set(ctx, jobKey(job.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}

func (s *JobStore) GetJob(ctx context.Context, id string) (*models.ProcessingJob, error) {
	data, err := s.redisClient.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}

	var job models.ProcessingJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &job, nil
}

// HealthCheck pings Redis.
func (s *JobStore) HealthCheck(ctx context.Context) string {
	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		return "unhealthy: " + err.Error()
	}
	return "healthy"
}
