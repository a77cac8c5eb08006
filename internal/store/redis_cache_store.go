package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCacheStore decorates a Store with a Redis-backed read-through cache
// and a secondary index over job status. Redis is never the source of
// truth: every mutating call goes to the wrapped Store first, and any
// Redis failure is logged and swallowed rather than returned, so an
// unreachable cache degrades GetJob back to the wrapped Store's latency
// instead of taking the service down.
type RedisCacheStore struct {
	inner     Store
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewRedisCacheStore wraps inner with a Redis cache at addr/db. It pings
// addr with a 5s timeout before returning, the same way the Redis feedback
// mirror (feedback.NewMirroredInbox) fails fast at startup rather than on
// first use.
func NewRedisCacheStore(ctx context.Context, inner Store, addr, password string, db int, ttl time.Duration, logger *zap.Logger) (*RedisCacheStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RedisCacheStore{
		inner:     inner,
		client:    client,
		keyPrefix: "proposalreview:job:",
		ttl:       ttl,
		logger:    logger.With(zap.String("component", "redis_cache_store")),
	}, nil
}

// Close releases the underlying Redis client.
func (s *RedisCacheStore) Close() error {
	return s.client.Close()
}

func (s *RedisCacheStore) dataKey(jobID int64) string {
	return fmt.Sprintf("%sdata:%d", s.keyPrefix, jobID)
}

func (s *RedisCacheStore) statusKey(status string) string {
	return s.keyPrefix + "status:" + status
}

// CreateJob delegates to the wrapped store, then warms the cache for the
// new job. A cache-population failure is not the caller's problem.
func (s *RedisCacheStore) CreateJob(ctx context.Context, fields NewFields) (int64, error) {
	jobID, err := s.inner.CreateJob(ctx, fields)
	if err != nil {
		return jobID, err
	}
	if job, getErr := s.inner.GetJob(ctx, jobID); getErr == nil {
		s.put(ctx, job)
	}
	return jobID, nil
}

// GetJob serves from the cache when present, falling back to the wrapped
// store on a cache miss or any Redis error and repopulating the cache on
// the way out.
func (s *RedisCacheStore) GetJob(ctx context.Context, jobID int64) (*Job, error) {
	if job := s.get(ctx, jobID); job != nil {
		return job, nil
	}

	job, err := s.inner.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	s.put(ctx, job)
	return job, nil
}

// UpdateJob delegates the patch to the wrapped store then refreshes the
// cache entry and status index for the updated job.
func (s *RedisCacheStore) UpdateJob(ctx context.Context, jobID int64, patch JobPatch) (*Job, error) {
	job, err := s.inner.UpdateJob(ctx, jobID, patch)
	if err != nil {
		return nil, err
	}
	s.put(ctx, job)
	return job, nil
}

// ListJobs always reads through to the wrapped store. The cache only
// fast-paths single-job lookups by ID; search/filter pagination stays with
// the store of record.
func (s *RedisCacheStore) ListJobs(ctx context.Context, filter ListFilter) (ListResult, error) {
	return s.inner.ListJobs(ctx, filter)
}

// DeleteJob delegates to the wrapped store then evicts the job from the
// cache and every status index it might appear under.
func (s *RedisCacheStore) DeleteJob(ctx context.Context, jobID int64) error {
	if err := s.inner.DeleteJob(ctx, jobID); err != nil {
		return err
	}
	s.evict(ctx, jobID)
	return nil
}

func (s *RedisCacheStore) get(ctx context.Context, jobID int64) *Job {
	data, err := s.client.Get(ctx, s.dataKey(jobID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("redis cache get failed", zap.Int64("job_id", jobID), zap.Error(err))
		}
		return nil
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		s.logger.Warn("redis cache entry corrupt", zap.Int64("job_id", jobID), zap.Error(err))
		return nil
	}
	return &job
}

// put caches job and moves its status-index membership. Stage statuses
// (see review.statusFor) aren't drawn from a small fixed enum, so the old
// index entry is found by reading whatever was cached before, the same
// way SaveTask looks up the prior task to know which ZSet to ZRem from.
func (s *RedisCacheStore) put(ctx context.Context, job *Job) {
	old := s.get(ctx, job.JobID)

	data, err := json.Marshal(job)
	if err != nil {
		s.logger.Warn("redis cache marshal failed", zap.Int64("job_id", job.JobID), zap.Error(err))
		return
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.dataKey(job.JobID), data, s.ttl)
	if old != nil && old.Status != job.Status {
		pipe.ZRem(ctx, s.statusKey(old.Status), job.JobID)
	}
	pipe.ZAdd(ctx, s.statusKey(job.Status), redis.Z{Score: float64(job.UpdatedAt.UnixNano()), Member: job.JobID})
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("redis cache write failed", zap.Int64("job_id", job.JobID), zap.Error(err))
	}
}

func (s *RedisCacheStore) evict(ctx context.Context, jobID int64) {
	old := s.get(ctx, jobID)

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.dataKey(jobID))
	if old != nil {
		pipe.ZRem(ctx, s.statusKey(old.Status), jobID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("redis cache evict failed", zap.Int64("job_id", jobID), zap.Error(err))
	}
}
