// Package progress tracks shared per-job counters (processed, succeeded,
// failed) updated concurrently by every chunk worker, flushes them to the
// durable job record on a fixed cadence, and carries the cooperative
// cancellation flag.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/profitscan/profitscan/internal/logger"
)

const (
	defaultFlushInterval = 2 * time.Second
	defaultFlushEvery    = 50
)

// JobStore receives the periodic durable flushes of a job's counters.
type JobStore interface {
	UpdateProgress(ctx context.Context, jobID string, processed, succeeded, failed int64) error
}

// Tracker maintains the shared counters for running jobs. Increments hit
// the atomic store on every call; the durable job record is only written
// when enough items or enough time has accumulated since the last flush,
// whichever comes first.
type Tracker struct {
	store  Store
	jobs   JobStore
	logger logger.Logger

	flushInterval time.Duration
	flushEvery    int64

	mu        sync.Mutex
	lastFlush map[string]flushMark

	// now is swappable for tests.
	now func() time.Time
}

type flushMark struct {
	at        time.Time
	processed int64
}

// NewTracker creates a progress tracker. Non-positive cadence values fall
// back to the defaults (2s / 50 items).
func NewTracker(store Store, jobs JobStore, flushInterval time.Duration, flushEvery int, log logger.Logger) *Tracker {
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}
	if flushEvery <= 0 {
		flushEvery = defaultFlushEvery
	}

	return &Tracker{
		store:         store,
		jobs:          jobs,
		logger:        log,
		flushInterval: flushInterval,
		flushEvery:    int64(flushEvery),
		lastFlush:     make(map[string]flushMark),
		now:           time.Now,
	}
}

// Increment atomically adds the deltas to the job's shared counters and
// returns the new totals. Callable concurrently from every chunk worker.
// The durable record is flushed when the cadence says so; a failed flush
// is logged and retried on the next cadence hit, never failing the caller.
func (t *Tracker) Increment(ctx context.Context, jobID string, processed, succeeded, failed int64) (Snapshot, error) {
	snap, err := t.store.IncrBy(ctx, jobID, processed, succeeded, failed)
	if err != nil {
		return Snapshot{}, err
	}

	if t.shouldFlush(jobID, snap.Processed) {
		t.flush(ctx, jobID, snap)
	}

	return snap, nil
}

// Flush writes the job's current counters to the durable record
// unconditionally. Called at chunk completion and before finalization so
// the stored counts are exact at every boundary.
func (t *Tracker) Flush(ctx context.Context, jobID string) (Snapshot, error) {
	snap, err := t.store.Snapshot(ctx, jobID)
	if err != nil {
		return Snapshot{}, err
	}

	if err := t.jobs.UpdateProgress(ctx, jobID, snap.Processed, snap.Succeeded, snap.Failed); err != nil {
		return snap, err
	}
	t.markFlushed(jobID, snap.Processed)

	return snap, nil
}

// Snapshot reads the job's current shared counters.
func (t *Tracker) Snapshot(ctx context.Context, jobID string) (Snapshot, error) {
	return t.store.Snapshot(ctx, jobID)
}

// Cancel raises the job's cancellation flag. Workers observe it between
// items, so the request takes effect within one item's latency.
func (t *Tracker) Cancel(ctx context.Context, jobID string) error {
	return t.store.SetCancelled(ctx, jobID)
}

// IsCancelled reports whether cancellation was requested. A store fault
// reads as "not cancelled": the job keeps running rather than stalling on
// an unreachable flag.
func (t *Tracker) IsCancelled(ctx context.Context, jobID string) bool {
	cancelled, err := t.store.IsCancelled(ctx, jobID)
	if err != nil {
		t.logger.Warn("Failed to read cancellation flag",
			logger.String("job_id", jobID),
			logger.Error(err),
		)
		return false
	}
	return cancelled
}

// Forget drops the tracker's flush bookkeeping for a finished job.
func (t *Tracker) Forget(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastFlush, jobID)
}

func (t *Tracker) shouldFlush(jobID string, processed int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	mark, ok := t.lastFlush[jobID]
	if !ok {
		// First increment for this job always flushes so observers see
		// the job move off zero promptly.
		return true
	}

	return processed-mark.processed >= t.flushEvery || t.now().Sub(mark.at) >= t.flushInterval
}

func (t *Tracker) flush(ctx context.Context, jobID string, snap Snapshot) {
	if err := t.jobs.UpdateProgress(ctx, jobID, snap.Processed, snap.Succeeded, snap.Failed); err != nil {
		t.logger.Warn("Failed to flush job progress",
			logger.String("job_id", jobID),
			logger.Int64("processed", snap.Processed),
			logger.Error(err),
		)
		return
	}
	t.markFlushed(jobID, snap.Processed)
}

func (t *Tracker) markFlushed(jobID string, processed int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastFlush[jobID] = flushMark{at: t.now(), processed: processed}
}
