// Package domain holds the core types shared across the analysis pipeline.
package domain

import "time"

// JobStatus represents the lifecycle state of an analysis job.
// Transitions only move forward: queued -> running -> terminal.
type JobStatus string

// Job status constants.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status is a terminal state.
// Once terminal, counts are frozen and results become readable.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is the unit of work submitted by a caller. It owns ChunkCount chunks
// and is finalized exactly once when the last chunk reports completion.
type Job struct {
	ID             string     `db:"id"              json:"id"`
	TotalItems     int        `db:"total_items"     json:"total_items"`
	ChunkCount     int        `db:"chunk_count"     json:"chunk_count"`
	Status         JobStatus  `db:"status"          json:"status"`
	ProcessedCount int64      `db:"processed_count" json:"processed_count"`
	SuccessCount   int64      `db:"success_count"   json:"success_count"`
	ErrorCount     int64      `db:"error_count"     json:"error_count"`
	CreatedAt      time.Time  `db:"created_at"      json:"created_at"`
	CompletedAt    *time.Time `db:"completed_at"    json:"completed_at,omitempty"`
}

// ChunkStatus represents the state of a single chunk.
type ChunkStatus string

// Chunk status constants.
const (
	ChunkStatusPending   ChunkStatus = "pending"
	ChunkStatusRunning   ChunkStatus = "running"
	ChunkStatusCompleted ChunkStatus = "completed"
	ChunkStatusFailed    ChunkStatus = "failed"
	ChunkStatusCancelled ChunkStatus = "cancelled"
)

// Chunk is a contiguous slice of a job's items, processed end-to-end by
// exactly one worker. It is owned by that worker until completion; nothing
// else mutates it.
type Chunk struct {
	ID     int             `json:"id"`
	JobID  string          `json:"job_id"`
	Start  int             `json:"start"` // index of the first item, inclusive
	End    int             `json:"end"`   // index past the last item, exclusive
	Status ChunkStatus     `json:"status"`
	Items  []*AnalysisItem `json:"items"`
}
