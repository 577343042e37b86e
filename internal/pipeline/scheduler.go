package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/profitscan/profitscan/internal/domain"
	"github.com/profitscan/profitscan/internal/logger"
	"github.com/profitscan/profitscan/internal/progress"
	"github.com/profitscan/profitscan/internal/telemetry"
)

const (
	defaultWorkers    = 4
	defaultChunkCount = 8
	maxItemsPerJob    = 10000
)

// ErrValidation wraps submission rejections: bad input is refused before
// any provider budget is spent.
var ErrValidation = errors.New("invalid job submission")

// ErrJobTerminal is returned when an operation requires a job that is
// still running.
var ErrJobTerminal = errors.New("job already in a terminal state")

// JobStore is the durable job-record surface the scheduler needs.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, jobID string) (*domain.Job, error)
	MarkRunning(ctx context.Context, jobID string) error
	Finalize(ctx context.Context, jobID string, status domain.JobStatus, processed, succeeded, failed int64) (bool, error)
}

// ItemStore persists a completed chunk's items.
type ItemStore interface {
	AppendChunk(ctx context.Context, chunk *domain.Chunk) error
}

// ChunkRunner executes one chunk. Implemented by ChunkProcessor.
type ChunkRunner interface {
	Process(ctx context.Context, chunk *domain.Chunk) error
}

// Scheduler splits submitted jobs into contiguous chunks, fans them out
// across a fixed-size worker pool, and finalizes each job exactly once when
// its last chunk reports in. Finalization is triggered independently by
// whichever chunk finishes last; the job store's compare-and-set transition
// makes redundant triggers harmless.
type Scheduler struct {
	jobs      JobStore
	items     ItemStore
	runner    ChunkRunner
	tracker   *progress.Tracker
	metrics   *telemetry.Metrics
	logger    logger.Logger
	workers   int
	queueSize int

	queue      chan *domain.Chunk
	wg         sync.WaitGroup
	dispatches sync.WaitGroup

	mu     sync.Mutex
	active map[string]*jobState
}

// jobState is the scheduler's in-flight bookkeeping for one job.
type jobState struct {
	total      int
	chunkCount int
	done       int
	failed     bool
	startedAt  time.Time
}

// NewScheduler creates a scheduler with the given worker-pool size.
func NewScheduler(
	jobs JobStore,
	items ItemStore,
	runner ChunkRunner,
	tracker *progress.Tracker,
	metrics *telemetry.Metrics,
	workers int,
	log logger.Logger,
) *Scheduler {
	if workers <= 0 {
		workers = defaultWorkers
	}

	return &Scheduler{
		jobs:      jobs,
		items:     items,
		runner:    runner,
		tracker:   tracker,
		metrics:   metrics,
		logger:    log,
		workers:   workers,
		queueSize: workers * 4,
		active:    make(map[string]*jobState),
	}
}

// Start launches the worker pool. Workers run until Stop is called or the
// context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.queue = make(chan *domain.Chunk, s.queueSize)

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Scheduler started", logger.Int("workers", s.workers))
}

// Stop drains the queue and waits for in-flight chunks to finish. In-flight
// dispatchers finish enqueueing first; closing the queue out from under a
// dispatcher would crash it.
func (s *Scheduler) Stop() {
	s.dispatches.Wait()
	close(s.queue)
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// SubmitJob validates the items, creates the durable job record, splits the
// items into chunkCount contiguous chunks, and dispatches them to the
// worker pool. Returns the new job's ID.
func (s *Scheduler) SubmitJob(ctx context.Context, items []*domain.AnalysisItem, chunkCount int) (string, error) {
	if err := validateItems(items); err != nil {
		return "", err
	}

	if chunkCount <= 0 {
		chunkCount = defaultChunkCount
	}
	if chunkCount > len(items) {
		chunkCount = len(items)
	}

	job := &domain.Job{
		ID:         uuid.New().String(),
		TotalItems: len(items),
		ChunkCount: chunkCount,
		Status:     domain.JobStatusQueued,
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	s.mu.Lock()
	s.active[job.ID] = &jobState{
		total:      job.TotalItems,
		chunkCount: chunkCount,
		startedAt:  time.Now(),
	}
	s.mu.Unlock()

	if err := s.jobs.MarkRunning(ctx, job.ID); err != nil {
		s.logger.Warn("Failed to mark job running",
			logger.String("job_id", job.ID),
			logger.Error(err),
		)
	}

	chunks := splitChunks(job.ID, items, chunkCount)

	s.logger.Info("Job submitted",
		logger.String("job_id", job.ID),
		logger.Int("total_items", job.TotalItems),
		logger.Int("chunks", len(chunks)),
	)

	// Dispatch off the caller's goroutine so a full queue delays the
	// workers, not the submitter.
	s.dispatches.Add(1)
	go func() {
		defer s.dispatches.Done()
		for _, chunk := range chunks {
			s.queue <- chunk
		}
	}()

	return job.ID, nil
}

// CancelJob raises the cancellation flag for a running job. Chunks observe
// it between items; the job turns cancelled once they have all stopped.
func (s *Scheduler) CancelJob(ctx context.Context, jobID string) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrJobTerminal, job.Status)
	}

	if err := s.tracker.Cancel(ctx, jobID); err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}

	s.logger.Info("Job cancellation requested", logger.String("job_id", jobID))
	return nil
}

func (s *Scheduler) worker(ctx context.Context, id int) {
	defer s.wg.Done()

	s.logger.Debug("Worker started", logger.Int("worker_id", id))

	for chunk := range s.queue {
		s.metrics.ActiveWorkers.Inc()
		chunk.Status = domain.ChunkStatusRunning

		err := s.runner.Process(ctx, chunk)

		s.metrics.ActiveWorkers.Dec()
		s.completeChunk(ctx, chunk, err)
	}

	s.logger.Debug("Worker finished", logger.Int("worker_id", id))
}

// completeChunk persists the chunk's items, merges its completion into the
// job, and finalizes the job if this was the last chunk. Safe to race with
// other chunks of the same job: the durable compare-and-set picks exactly
// one finalizer.
func (s *Scheduler) completeChunk(ctx context.Context, chunk *domain.Chunk, procErr error) {
	if procErr != nil {
		chunk.Status = domain.ChunkStatusFailed
		s.logger.Error("Chunk failed",
			logger.String("job_id", chunk.JobID),
			logger.Int("chunk_id", chunk.ID),
			logger.Error(procErr),
		)
		// Attribute the infrastructure fault to every item the chunk
		// never decided.
		for _, item := range chunk.Items {
			if item.Classification == "" || item.Classification == domain.ClassSkipped {
				item.MarkError(fmt.Sprintf("chunk processing failed: %v", procErr))
			}
		}
	} else {
		chunk.Status = domain.ChunkStatusCompleted
	}
	s.metrics.ChunksCompleted.WithLabelValues(string(chunk.Status)).Inc()

	if err := s.items.AppendChunk(ctx, chunk); err != nil {
		s.logger.Error("Failed to persist chunk items",
			logger.String("job_id", chunk.JobID),
			logger.Int("chunk_id", chunk.ID),
			logger.Error(err),
		)
		chunk.Status = domain.ChunkStatusFailed
	}

	s.mu.Lock()
	state, ok := s.active[chunk.JobID]
	if !ok {
		s.mu.Unlock()
		return
	}
	state.done++
	if chunk.Status == domain.ChunkStatusFailed {
		state.failed = true
	}
	snapshot := *state
	last := state.done == state.chunkCount
	s.mu.Unlock()

	snap, err := s.tracker.Flush(ctx, chunk.JobID)
	if err != nil {
		s.logger.Warn("Failed to flush progress at chunk boundary",
			logger.String("job_id", chunk.JobID),
			logger.Error(err),
		)
	}

	// Finalize when every item is accounted for or when the last chunk
	// has reported (which covers failed and cancelled jobs, whose
	// processed count stays short of the total).
	if last || (err == nil && snap.Processed >= int64(snapshot.total)) {
		s.finalize(ctx, chunk.JobID, snapshot)
	}
}

func (s *Scheduler) finalize(ctx context.Context, jobID string, state jobState) {
	snap, err := s.tracker.Flush(ctx, jobID)
	if err != nil {
		// The shared counters are unreachable, so the true final counts
		// are unknown. Freeze the last durable flush instead of zeros and
		// fail the job; a later attempt may still finalize cleanly.
		s.logger.Error("Failed to read final counts",
			logger.String("job_id", jobID),
			logger.Error(err),
		)

		job, getErr := s.jobs.Get(ctx, jobID)
		if getErr != nil {
			s.logger.Error("Failed to load last flushed counts, leaving job unfinalized",
				logger.String("job_id", jobID),
				logger.Error(getErr),
			)
			return
		}
		snap = progress.Snapshot{
			Processed: job.ProcessedCount,
			Succeeded: job.SuccessCount,
			Failed:    job.ErrorCount,
		}
		state.failed = true
	}

	status := domain.JobStatusCompleted
	switch {
	case state.failed:
		status = domain.JobStatusFailed
	case s.tracker.IsCancelled(ctx, jobID) && snap.Processed < int64(state.total):
		status = domain.JobStatusCancelled
	}

	won, err := s.jobs.Finalize(ctx, jobID, status, snap.Processed, snap.Succeeded, snap.Failed)
	if err != nil {
		s.logger.Error("Failed to finalize job",
			logger.String("job_id", jobID),
			logger.Error(err),
		)
		return
	}
	if !won {
		// Another chunk's completion got there first.
		return
	}

	s.metrics.JobDuration.Observe(time.Since(state.startedAt).Seconds())
	s.tracker.Forget(jobID)

	s.mu.Lock()
	delete(s.active, jobID)
	s.mu.Unlock()

	s.logger.Info("Job finalized",
		logger.String("job_id", jobID),
		logger.String("status", string(status)),
		logger.Int64("processed", snap.Processed),
		logger.Int64("succeeded", snap.Succeeded),
		logger.Int64("failed", snap.Failed),
	)
}

// validateItems rejects bad input at submission time, before any external
// call is made.
func validateItems(items []*domain.AnalysisItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: no items", ErrValidation)
	}
	if len(items) > maxItemsPerJob {
		return fmt.Errorf("%w: %d items exceeds the per-job limit of %d", ErrValidation, len(items), maxItemsPerJob)
	}

	for i, item := range items {
		if item.Identifier == "" {
			return fmt.Errorf("%w: item %d has no identifier", ErrValidation, i)
		}
		if item.AcquisitionCost <= 0 {
			return fmt.Errorf("%w: item %d (%s) has non-positive acquisition cost", ErrValidation, i, item.Identifier)
		}
		switch item.Kind {
		case domain.KindUPC, domain.KindCatalog:
		case "":
			item.Kind = inferKind(item.Identifier)
		default:
			return fmt.Errorf("%w: item %d (%s) has unknown identifier kind %q", ErrValidation, i, item.Identifier, item.Kind)
		}
	}

	return nil
}

// inferKind guesses the identifier kind when the caller did not declare
// one: all-digit codes of UPC/EAN length are treated as universal product
// codes, everything else as catalog codes.
func inferKind(identifier string) domain.IdentifierKind {
	if len(identifier) < 8 || len(identifier) > 14 {
		return domain.KindCatalog
	}
	for _, r := range identifier {
		if r < '0' || r > '9' {
			return domain.KindCatalog
		}
	}
	return domain.KindUPC
}

// splitChunks partitions items into chunkCount contiguous chunks whose
// sizes differ by at most one.
func splitChunks(jobID string, items []*domain.AnalysisItem, chunkCount int) []*domain.Chunk {
	chunks := make([]*domain.Chunk, 0, chunkCount)
	base := len(items) / chunkCount
	extra := len(items) % chunkCount

	start := 0
	for i := 0; i < chunkCount; i++ {
		size := base
		if i < extra {
			size++
		}
		end := start + size

		chunks = append(chunks, &domain.Chunk{
			ID:     i,
			JobID:  jobID,
			Start:  start,
			End:    end,
			Status: domain.ChunkStatusPending,
			Items:  items[start:end],
		})
		start = end
	}

	return chunks
}
