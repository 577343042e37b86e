package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/profitscan/profitscan/internal/domain"
)

// ErrJobNotFound is returned when a job ID does not exist.
var ErrJobNotFound = errors.New("job not found")

// JobRepository handles durable storage of Job records.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job in the queued state.
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (id, total_items, chunk_count, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		job.ID, job.TotalItems, job.ChunkCount, job.Status,
	).Scan(&job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// Get retrieves a job by ID.
func (r *JobRepository) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	query := `
		SELECT id, total_items, chunk_count, status,
		       processed_count, success_count, error_count,
		       created_at, completed_at
		FROM jobs
		WHERE id = $1
	`

	if err := r.db.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// MarkRunning transitions a queued job to running. Transitions only move
// forward, so a job already past queued is left untouched.
func (r *JobRepository) MarkRunning(ctx context.Context, jobID string) error {
	query := `UPDATE jobs SET status = $2 WHERE id = $1 AND status = $3`

	if _, err := r.db.ExecContext(ctx, query, jobID, domain.JobStatusRunning, domain.JobStatusQueued); err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}

	return nil
}

// UpdateProgress flushes the shared progress counters onto the durable job
// row. Terminal jobs are skipped so frozen counts stay frozen.
func (r *JobRepository) UpdateProgress(ctx context.Context, jobID string, processed, succeeded, failed int64) error {
	query := `
		UPDATE jobs
		SET processed_count = $2, success_count = $3, error_count = $4
		WHERE id = $1 AND status IN ($5, $6)
	`

	_, err := r.db.ExecContext(ctx, query, jobID, processed, succeeded, failed,
		domain.JobStatusQueued, domain.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}

	return nil
}

// Finalize performs the one-time transition to a terminal status, writing
// the final counts and completion time. The WHERE clause is the
// compare-and-set guard: it only matches non-terminal rows, so concurrent
// finalization attempts from racing chunks collapse to exactly one winner.
// Returns true for the caller that won the transition.
func (r *JobRepository) Finalize(ctx context.Context, jobID string, status domain.JobStatus, processed, succeeded, failed int64) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("finalize requires a terminal status, got %q", status)
	}

	query := `
		UPDATE jobs
		SET status = $2,
		    processed_count = $3, success_count = $4, error_count = $5,
		    completed_at = now()
		WHERE id = $1 AND status IN ($6, $7)
	`

	res, err := r.db.ExecContext(ctx, query, jobID, status, processed, succeeded, failed,
		domain.JobStatusQueued, domain.JobStatusRunning)
	if err != nil {
		return false, fmt.Errorf("failed to finalize job: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read finalize result: %w", err)
	}

	return rows == 1, nil
}
