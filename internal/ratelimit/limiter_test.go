package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/profitscan/profitscan/internal/logger"
	"github.com/profitscan/profitscan/internal/telemetry"
)

func TestLimiter_AdmitsUpToCeilingWithoutBlocking(t *testing.T) {
	limiter := New(NewMemoryStore(), map[string]int{"pricing": 5}, nil, logger.NewNop())

	// Pin the clock so every acquire lands in the same window.
	limiter.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	start := time.Now()
	for range 5 {
		if err := limiter.Acquire(context.Background(), "pricing"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("acquires within the ceiling should not block, took %v", elapsed)
	}
}

func TestLimiter_BlocksWhenWindowExhausted(t *testing.T) {
	limiter := New(NewMemoryStore(), map[string]int{"pricing": 2}, nil, logger.NewNop())
	limiter.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	for range 2 {
		if err := limiter.Acquire(ctx, "pricing"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// The window never advances under the pinned clock, so the third
	// acquire must block until the context expires.
	err := limiter.Acquire(ctx, "pricing")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestLimiter_ConcurrentWorkersShareCeiling(t *testing.T) {
	store := NewMemoryStore()
	limiter := New(store, map[string]int{"history": 10}, nil, logger.NewNop())
	limiter.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Acquire(ctx, "history"); err == nil {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	// Exactly the ceiling gets through the frozen window; the rest block
	// until the context expires.
	if admitted.Load() != 10 {
		t.Errorf("expected 10 admitted, got %d", admitted.Load())
	}
}

type failingStore struct {
	calls atomic.Int64
}

func (s *failingStore) IncrWindow(context.Context, string, int64) (int64, error) {
	s.calls.Add(1)
	return 0, errors.New("connection refused")
}

func TestLimiter_FallsBackToLocalWhenStoreUnreachable(t *testing.T) {
	store := &failingStore{}
	limiter := New(store, map[string]int{"pricing": 100}, nil, logger.NewNop())

	// Must not propagate the store error; the local limiter admits the
	// call instead.
	if err := limiter.Acquire(context.Background(), "pricing"); err != nil {
		t.Fatalf("expected fallback to local limiter, got error: %v", err)
	}
	if store.calls.Load() != 1 {
		t.Errorf("expected one store attempt, got %d", store.calls.Load())
	}
}

func TestLimiter_CountsWaitsWhenWindowExhausted(t *testing.T) {
	metrics := telemetry.NewMetricsWith(prometheus.NewRegistry())
	limiter := New(NewMemoryStore(), map[string]int{"pricing": 1}, metrics, logger.NewNop())
	limiter.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := limiter.Acquire(ctx, "pricing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The frozen window is now full, so this acquire waits until the
	// context expires.
	_ = limiter.Acquire(ctx, "pricing")

	if waits := testutil.ToFloat64(metrics.RateLimitWaits.WithLabelValues("pricing")); waits < 1 {
		t.Errorf("expected at least one recorded wait, got %v", waits)
	}
}

func TestMemoryStore_EvictsExpiredWindows(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := int64(1_700_000_000)
	if _, err := store.IncrWindow(ctx, "pricing", base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.IncrWindow(ctx, "history", base+1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Far past the TTL horizon: the old windows must be gone.
	if _, err := store.IncrWindow(ctx, "pricing", base+60); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.windows) != 1 {
		t.Errorf("expected only the live window retained, got %d", len(store.windows))
	}
}

func TestLimiter_UnknownProvider(t *testing.T) {
	limiter := New(NewMemoryStore(), map[string]int{"pricing": 5}, nil, logger.NewNop())

	if err := limiter.Acquire(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown provider")
	}
}
