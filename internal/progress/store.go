package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const counterTTL = 7 * 24 * time.Hour

// Snapshot is one consistent view of a job's shared counters.
type Snapshot struct {
	Processed int64 `json:"processed"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
}

// Store holds the shared per-job counters and the cancellation flag. The
// production implementation is Redis; MemoryStore serves tests and
// single-process setups with the same atomicity contract.
type Store interface {
	// IncrBy atomically adds the deltas to a job's counters and returns
	// the new totals.
	IncrBy(ctx context.Context, jobID string, processed, succeeded, failed int64) (Snapshot, error)
	// Snapshot reads the current totals without modifying them.
	Snapshot(ctx context.Context, jobID string) (Snapshot, error)
	// SetCancelled raises the job's cancellation flag.
	SetCancelled(ctx context.Context, jobID string) error
	// IsCancelled reads the cancellation flag.
	IsCancelled(ctx context.Context, jobID string) (bool, error)
}

// RedisStore backs the counters with Redis INCRBY so every worker in the
// system shares one view of progress.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed progress store.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "progress"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(jobID, field string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, jobID, field)
}

// IncrBy adds the deltas in one pipeline so the three counters move
// together, and returns the new totals.
func (s *RedisStore) IncrBy(ctx context.Context, jobID string, processed, succeeded, failed int64) (Snapshot, error) {
	pipe := s.client.Pipeline()
	processedCmd := pipe.IncrBy(ctx, s.key(jobID, "processed"), processed)
	succeededCmd := pipe.IncrBy(ctx, s.key(jobID, "succeeded"), succeeded)
	failedCmd := pipe.IncrBy(ctx, s.key(jobID, "failed"), failed)
	pipe.Expire(ctx, s.key(jobID, "processed"), counterTTL)
	pipe.Expire(ctx, s.key(jobID, "succeeded"), counterTTL)
	pipe.Expire(ctx, s.key(jobID, "failed"), counterTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("increment progress counters: %w", err)
	}

	return Snapshot{
		Processed: processedCmd.Val(),
		Succeeded: succeededCmd.Val(),
		Failed:    failedCmd.Val(),
	}, nil
}

// Snapshot reads all three counters in one pipeline. Missing keys read
// as zero.
func (s *RedisStore) Snapshot(ctx context.Context, jobID string) (Snapshot, error) {
	pipe := s.client.Pipeline()
	processedCmd := pipe.Get(ctx, s.key(jobID, "processed"))
	succeededCmd := pipe.Get(ctx, s.key(jobID, "succeeded"))
	failedCmd := pipe.Get(ctx, s.key(jobID, "failed"))

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Snapshot{}, fmt.Errorf("read progress counters: %w", err)
	}

	var snap Snapshot
	if v, err := processedCmd.Int64(); err == nil {
		snap.Processed = v
	}
	if v, err := succeededCmd.Int64(); err == nil {
		snap.Succeeded = v
	}
	if v, err := failedCmd.Int64(); err == nil {
		snap.Failed = v
	}

	return snap, nil
}

// SetCancelled raises the cancellation flag with the same TTL as the
// counters.
func (s *RedisStore) SetCancelled(ctx context.Context, jobID string) error {
	if err := s.client.Set(ctx, s.key(jobID, "cancelled"), "1", counterTTL).Err(); err != nil {
		return fmt.Errorf("set cancellation flag: %w", err)
	}
	return nil
}

// IsCancelled reads the cancellation flag.
func (s *RedisStore) IsCancelled(ctx context.Context, jobID string) (bool, error) {
	_, err := s.client.Get(ctx, s.key(jobID, "cancelled")).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read cancellation flag: %w", err)
	}
	return true, nil
}

// MemoryStore is an in-process Store with the same atomicity contract.
type MemoryStore struct {
	mu        sync.Mutex
	counters  map[string]*Snapshot
	cancelled map[string]bool
}

// NewMemoryStore creates an empty in-memory progress store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters:  make(map[string]*Snapshot),
		cancelled: make(map[string]bool),
	}
}

func (s *MemoryStore) IncrBy(_ context.Context, jobID string, processed, succeeded, failed int64) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.counters[jobID]
	if !ok {
		snap = &Snapshot{}
		s.counters[jobID] = snap
	}
	snap.Processed += processed
	snap.Succeeded += succeeded
	snap.Failed += failed

	return *snap, nil
}

func (s *MemoryStore) Snapshot(_ context.Context, jobID string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap, ok := s.counters[jobID]; ok {
		return *snap, nil
	}
	return Snapshot{}, nil
}

func (s *MemoryStore) SetCancelled(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled[jobID] = true
	return nil
}

func (s *MemoryStore) IsCancelled(_ context.Context, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled[jobID], nil
}
