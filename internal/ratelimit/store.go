package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// windowTTL is how long a window counter key lives in Redis. Windows are
// one second wide; the TTL only needs to outlive stragglers.
const windowTTL = 10 * time.Second

// Store is a shared window counter, keyed by provider and window start.
// Implementations must make IncrWindow atomic so concurrent workers never
// under-count.
type Store interface {
	// IncrWindow increments the counter for the provider's window and
	// returns the new value.
	IncrWindow(ctx context.Context, provider string, window int64) (int64, error)
}

// RedisStore implements Store on a shared Redis instance, making the rate
// ceiling global across every worker process.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore creates a Redis-backed window counter store.
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "ratelimit"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// IncrWindow atomically increments the window counter with a TTL, using a
// pipeline so INCR and EXPIRE travel together.
func (s *RedisStore) IncrWindow(ctx context.Context, provider string, window int64) (int64, error) {
	key := fmt.Sprintf("%s:%s:%d", s.keyPrefix, provider, window)

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, windowTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("increment rate window: %w", err)
	}

	return incr.Val(), nil
}

// MemoryStore implements Store with an in-process map. It backs tests and
// single-process deployments; the atomicity contract is the same, the
// ceiling just stops being global.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[windowKey]int64
}

type windowKey struct {
	provider string
	window   int64
}

// NewMemoryStore creates an in-memory window counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[windowKey]int64),
	}
}

// IncrWindow increments the window counter under a mutex, evicting windows
// past the TTL horizon so a long-lived process does not accumulate one
// entry per provider-second forever.
func (s *MemoryStore) IncrWindow(_ context.Context, provider string, window int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	horizon := window - int64(windowTTL/time.Second)
	for key := range s.windows {
		if key.window < horizon {
			delete(s.windows, key)
		}
	}

	key := windowKey{provider: provider, window: window}
	s.windows[key]++
	return s.windows[key], nil
}
