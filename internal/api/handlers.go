// Package api exposes the job surface over HTTP: submission, status,
// results, stats, and cancellation.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/profitscan/profitscan/internal/database"
	"github.com/profitscan/profitscan/internal/domain"
	"github.com/profitscan/profitscan/internal/logger"
	"github.com/profitscan/profitscan/internal/pipeline"
	"github.com/profitscan/profitscan/internal/progress"
	"github.com/profitscan/profitscan/internal/provider"
)

// JobController submits and cancels jobs. Implemented by the scheduler.
type JobController interface {
	SubmitJob(ctx context.Context, items []*domain.AnalysisItem, chunkCount int) (string, error)
	CancelJob(ctx context.Context, jobID string) error
}

// JobReader reads durable job records.
type JobReader interface {
	Get(ctx context.Context, jobID string) (*domain.Job, error)
}

// ItemReader reads a job's finalized items.
type ItemReader interface {
	ListByJob(ctx context.Context, jobID string) ([]*domain.AnalysisItem, error)
	ClassificationCounts(ctx context.Context, jobID string) (map[domain.Classification]int, error)
}

// ProgressReader reads the live shared counters for running jobs.
type ProgressReader interface {
	Snapshot(ctx context.Context, jobID string) (progress.Snapshot, error)
}

// dependencyProbe names one downstream health check.
type dependencyProbe struct {
	name  string
	check func(ctx context.Context) error
}

// Handler handles HTTP requests for the analysis API.
type Handler struct {
	controller JobController
	jobs       JobReader
	items      ItemReader
	progress   ProgressReader
	probes     []dependencyProbe
	logger     logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(
	controller JobController,
	jobs JobReader,
	items ItemReader,
	progressReader ProgressReader,
	log logger.Logger,
) *Handler {
	return &Handler{
		controller: controller,
		jobs:       jobs,
		items:      items,
		progress:   progressReader,
		logger:     log,
	}
}

// SubmitItemRequest is one identifier/cost pair in a job submission.
type SubmitItemRequest struct {
	Identifier      string  `json:"identifier" binding:"required"`
	Kind            string  `json:"kind"`
	AcquisitionCost float64 `json:"acquisition_cost" binding:"required"`
}

// SubmitJobRequest is the body for POST /api/v1/jobs.
type SubmitJobRequest struct {
	Items      []SubmitItemRequest `json:"items" binding:"required,min=1"`
	ChunkCount int                 `json:"chunk_count"`
}

// SubmitJobResponse acknowledges a submitted job.
type SubmitJobResponse struct {
	JobID string `json:"job_id"`
}

// JobStatusResponse is the live view of one job.
type JobStatusResponse struct {
	JobID          string           `json:"job_id"`
	Status         domain.JobStatus `json:"status"`
	TotalItems     int              `json:"total_items"`
	ProcessedCount int64            `json:"processed_count"`
	SuccessCount   int64            `json:"success_count"`
	ErrorCount     int64            `json:"error_count"`
}

// JobResultsResponse lists a terminal job's analyzed items.
type JobResultsResponse struct {
	JobID  string                 `json:"job_id"`
	Status domain.JobStatus       `json:"status"`
	Items  []*domain.AnalysisItem `json:"items"`
	Total  int                    `json:"total"`
}

// JobStatsResponse breaks a job down by classification.
type JobStatsResponse struct {
	JobID           string                        `json:"job_id"`
	Status          domain.JobStatus              `json:"status"`
	Classifications map[domain.Classification]int `json:"classifications"`
}

// SubmitJob handles POST /api/v1/jobs.
func (h *Handler) SubmitJob(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid job submission", logger.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items := make([]*domain.AnalysisItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, &domain.AnalysisItem{
			Identifier:      item.Identifier,
			Kind:            domain.IdentifierKind(item.Kind),
			AcquisitionCost: item.AcquisitionCost,
		})
	}

	jobID, err := h.controller.SubmitJob(c.Request.Context(), items, req.ChunkCount)
	if err != nil {
		if errors.Is(err, pipeline.ErrValidation) {
			h.logger.Warn("Job submission rejected", logger.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to submit job", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("Job accepted",
		logger.String("job_id", jobID),
		logger.Int("items", len(items)),
	)

	c.JSON(http.StatusAccepted, SubmitJobResponse{JobID: jobID})
}

// GetJobStatus handles GET /api/v1/jobs/:id. Running jobs overlay the
// durable record with the live shared counters so pollers see progress
// ahead of the periodic flush.
func (h *Handler) GetJobStatus(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	resp := JobStatusResponse{
		JobID:          job.ID,
		Status:         job.Status,
		TotalItems:     job.TotalItems,
		ProcessedCount: job.ProcessedCount,
		SuccessCount:   job.SuccessCount,
		ErrorCount:     job.ErrorCount,
	}

	if !job.Status.IsTerminal() {
		if snap, err := h.progress.Snapshot(c.Request.Context(), job.ID); err == nil {
			resp.ProcessedCount = snap.Processed
			resp.SuccessCount = snap.Succeeded
			resp.ErrorCount = snap.Failed
		}
	}

	c.JSON(http.StatusOK, resp)
}

// GetJobResults handles GET /api/v1/jobs/:id/results. Results become
// readable once the job is terminal.
func (h *Handler) GetJobResults(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	if !job.Status.IsTerminal() {
		c.JSON(http.StatusConflict, gin.H{"error": "job is still running", "status": job.Status})
		return
	}

	items, err := h.items.ListByJob(c.Request.Context(), job.ID)
	if err != nil {
		h.logger.Error("Failed to list job results",
			logger.String("job_id", job.ID),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, JobResultsResponse{
		JobID:  job.ID,
		Status: job.Status,
		Items:  items,
		Total:  len(items),
	})
}

// GetJobStats handles GET /api/v1/jobs/:id/stats.
func (h *Handler) GetJobStats(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	counts, err := h.items.ClassificationCounts(c.Request.Context(), job.ID)
	if err != nil {
		h.logger.Error("Failed to count classifications",
			logger.String("job_id", job.ID),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, JobStatsResponse{
		JobID:           job.ID,
		Status:          job.Status,
		Classifications: counts,
	})
}

// CancelJob handles POST /api/v1/jobs/:id/cancel.
func (h *Handler) CancelJob(c *gin.Context) {
	jobID := c.Param("id")

	err := h.controller.CancelJob(c.Request.Context(), jobID)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "cancelled": true})
	case errors.Is(err, database.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
	case errors.Is(err, pipeline.ErrJobTerminal):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Failed to cancel job",
			logger.String("job_id", jobID),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// RegisterDependency adds a downstream health probe to the /health report.
func (h *Handler) RegisterDependency(name string, check func(context.Context) error) {
	h.probes = append(h.probes, dependencyProbe{name: name, check: check})
}

// HealthCheck handles GET /health. With probes registered it reports each
// downstream provider's reachability and degrades to 503 when one is down.
func (h *Handler) HealthCheck(c *gin.Context) {
	if len(h.probes) == 0 {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		return
	}

	statuses := make([]provider.HealthStatus, 0, len(h.probes))
	healthy := true
	for _, p := range h.probes {
		status := provider.CheckHealth(c.Request.Context(), p.name, p.check)
		if !status.Reachable {
			healthy = false
		}
		statuses = append(statuses, status)
	}

	code := http.StatusOK
	overall := "healthy"
	if !healthy {
		code = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(code, gin.H{"status": overall, "dependencies": statuses})
}

// loadJob resolves the :id parameter to a job record, writing the error
// response itself when it cannot.
func (h *Handler) loadJob(c *gin.Context) (*domain.Job, bool) {
	jobID := c.Param("id")

	job, err := h.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, database.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return nil, false
		}
		h.logger.Error("Failed to load job",
			logger.String("job_id", jobID),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}

	return job, true
}
