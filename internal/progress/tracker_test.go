package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/profitscan/profitscan/internal/logger"
)

type fakeJobStore struct {
	mu      sync.Mutex
	updates []Snapshot
}

func (s *fakeJobStore) UpdateProgress(_ context.Context, _ string, processed, succeeded, failed int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, Snapshot{Processed: processed, Succeeded: succeeded, Failed: failed})
	return nil
}

func (s *fakeJobStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func (s *fakeJobStore) last() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates[len(s.updates)-1]
}

func TestTracker_FlushesEveryNItems(t *testing.T) {
	jobs := &fakeJobStore{}
	tracker := NewTracker(NewMemoryStore(), jobs, time.Hour, 10, logger.NewNop())

	base := time.Now()
	tracker.now = func() time.Time { return base }

	ctx := context.Background()

	// First increment always flushes.
	if _, err := tracker.Increment(ctx, "job-1", 1, 1, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobs.count() != 1 {
		t.Fatalf("expected initial flush, got %d", jobs.count())
	}

	// Eight more stay under the 10-item cadence.
	for range 8 {
		if _, err := tracker.Increment(ctx, "job-1", 1, 1, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if jobs.count() != 1 {
		t.Fatalf("expected no flush below cadence, got %d", jobs.count())
	}

	// Tenth item since the last flush triggers one.
	for range 2 {
		if _, err := tracker.Increment(ctx, "job-1", 1, 0, 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if jobs.count() != 2 {
		t.Fatalf("expected flush at item cadence, got %d", jobs.count())
	}
	if got := jobs.last(); got.Processed != 11 || got.Succeeded != 9 || got.Failed != 2 {
		t.Errorf("unexpected flushed counts: %+v", got)
	}
}

func TestTracker_FlushesOnInterval(t *testing.T) {
	jobs := &fakeJobStore{}
	tracker := NewTracker(NewMemoryStore(), jobs, 2*time.Second, 1000, logger.NewNop())

	now := time.Now()
	tracker.now = func() time.Time { return now }

	ctx := context.Background()
	if _, err := tracker.Increment(ctx, "job-1", 1, 1, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := tracker.Increment(ctx, "job-1", 1, 1, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobs.count() != 1 {
		t.Fatalf("expected only the initial flush, got %d", jobs.count())
	}

	now = now.Add(3 * time.Second)
	if _, err := tracker.Increment(ctx, "job-1", 1, 1, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobs.count() != 2 {
		t.Errorf("expected flush after interval elapsed, got %d", jobs.count())
	}
}

func TestTracker_ConcurrentIncrementsConserveCounts(t *testing.T) {
	tracker := NewTracker(NewMemoryStore(), &fakeJobStore{}, time.Hour, 1000000, logger.NewNop())
	ctx := context.Background()

	const workers = 8
	const perWorker = 125

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range perWorker {
				// Alternate success and failure so both counters move.
				if (w+i)%2 == 0 {
					_, _ = tracker.Increment(ctx, "job-1", 1, 1, 0)
				} else {
					_, _ = tracker.Increment(ctx, "job-1", 1, 0, 1)
				}
			}
		}(w)
	}
	wg.Wait()

	snap, err := tracker.Snapshot(ctx, "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	total := int64(workers * perWorker)
	if snap.Processed != total {
		t.Errorf("expected processed %d, got %d", total, snap.Processed)
	}
	if snap.Succeeded+snap.Failed != total {
		t.Errorf("succeeded+failed must equal processed: %d + %d != %d", snap.Succeeded, snap.Failed, total)
	}
}

func TestTracker_ForcedFlushWritesExactCounts(t *testing.T) {
	jobs := &fakeJobStore{}
	tracker := NewTracker(NewMemoryStore(), jobs, time.Hour, 1000000, logger.NewNop())
	ctx := context.Background()

	for range 7 {
		if _, err := tracker.Increment(ctx, "job-1", 1, 1, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	snap, err := tracker.Flush(ctx, "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Processed != 7 || snap.Succeeded != 7 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if got := jobs.last(); got != snap {
		t.Errorf("durable record diverges from snapshot: %+v vs %+v", got, snap)
	}
}

func TestTracker_Cancellation(t *testing.T) {
	tracker := NewTracker(NewMemoryStore(), &fakeJobStore{}, time.Hour, 10, logger.NewNop())
	ctx := context.Background()

	if tracker.IsCancelled(ctx, "job-1") {
		t.Error("fresh job must not read as cancelled")
	}

	if err := tracker.Cancel(ctx, "job-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tracker.IsCancelled(ctx, "job-1") {
		t.Error("expected cancellation flag visible after Cancel")
	}
	if tracker.IsCancelled(ctx, "job-2") {
		t.Error("cancellation must be scoped to one job")
	}
}
