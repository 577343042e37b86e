package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/profitscan/profitscan/internal/database"
	"github.com/profitscan/profitscan/internal/domain"
	"github.com/profitscan/profitscan/internal/logger"
	"github.com/profitscan/profitscan/internal/pipeline"
	"github.com/profitscan/profitscan/internal/progress"
)

type fakeController struct {
	submitted  []*domain.AnalysisItem
	chunkCount int
	submitErr  error
	cancelErr  error
	cancelled  []string
}

func (f *fakeController) SubmitJob(_ context.Context, items []*domain.AnalysisItem, chunkCount int) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = items
	f.chunkCount = chunkCount
	return "job-123", nil
}

func (f *fakeController) CancelJob(_ context.Context, jobID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, jobID)
	return nil
}

type fakeJobReader struct {
	jobs map[string]*domain.Job
}

func (f *fakeJobReader) Get(_ context.Context, jobID string) (*domain.Job, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, database.ErrJobNotFound
	}
	return job, nil
}

type fakeItemReader struct {
	items  []*domain.AnalysisItem
	counts map[domain.Classification]int
}

func (f *fakeItemReader) ListByJob(_ context.Context, _ string) ([]*domain.AnalysisItem, error) {
	return f.items, nil
}

func (f *fakeItemReader) ClassificationCounts(_ context.Context, _ string) (map[domain.Classification]int, error) {
	return f.counts, nil
}

type fakeProgressReader struct {
	snap progress.Snapshot
}

func (f *fakeProgressReader) Snapshot(_ context.Context, _ string) (progress.Snapshot, error) {
	return f.snap, nil
}

type testEnv struct {
	router     *gin.Engine
	handler    *Handler
	controller *fakeController
	jobs       *fakeJobReader
	items      *fakeItemReader
	progress   *fakeProgressReader
}

func newTestEnv() *testEnv {
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		controller: &fakeController{},
		jobs:       &fakeJobReader{jobs: make(map[string]*domain.Job)},
		items:      &fakeItemReader{},
		progress:   &fakeProgressReader{},
	}

	env.handler = NewHandler(env.controller, env.jobs, env.items, env.progress, logger.NewNop())
	env.router = gin.New()
	SetupRoutes(env.router, env.handler)

	return env
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitJob(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodPost, "/api/v1/jobs", SubmitJobRequest{
		Items: []SubmitItemRequest{
			{Identifier: "012345678905", Kind: "upc", AcquisitionCost: 9.5},
			{Identifier: "CAT-1", Kind: "catalog", AcquisitionCost: 4},
		},
		ChunkCount: 2,
	})

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp SubmitJobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID != "job-123" {
		t.Errorf("unexpected job id %q", resp.JobID)
	}
	if len(env.controller.submitted) != 2 || env.controller.chunkCount != 2 {
		t.Errorf("submission not forwarded: %d items, %d chunks", len(env.controller.submitted), env.controller.chunkCount)
	}
	if env.controller.submitted[0].Kind != domain.KindUPC {
		t.Errorf("unexpected kind %s", env.controller.submitted[0].Kind)
	}
}

func TestSubmitJob_BadRequests(t *testing.T) {
	env := newTestEnv()

	// Malformed body.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", rec.Code)
	}

	// Validation rejection from the scheduler.
	env.controller.submitErr = fmt.Errorf("%w: item 0 has non-positive acquisition cost", pipeline.ErrValidation)
	rec = env.do(http.MethodPost, "/api/v1/jobs", SubmitJobRequest{
		Items: []SubmitItemRequest{{Identifier: "CAT-1", AcquisitionCost: 1}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for validation error, got %d", rec.Code)
	}
}

func TestGetJobStatus_RunningOverlaysLiveCounters(t *testing.T) {
	env := newTestEnv()
	env.jobs.jobs["job-1"] = &domain.Job{
		ID:             "job-1",
		TotalItems:     100,
		Status:         domain.JobStatusRunning,
		ProcessedCount: 40, // stale durable flush
	}
	env.progress.snap = progress.Snapshot{Processed: 57, Succeeded: 50, Failed: 7}

	rec := env.do(http.MethodGet, "/api/v1/jobs/job-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp JobStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ProcessedCount != 57 || resp.SuccessCount != 50 || resp.ErrorCount != 7 {
		t.Errorf("expected live counters, got %+v", resp)
	}
}

func TestGetJobStatus_TerminalUsesFrozenCounts(t *testing.T) {
	env := newTestEnv()
	env.jobs.jobs["job-1"] = &domain.Job{
		ID:             "job-1",
		TotalItems:     10,
		Status:         domain.JobStatusCompleted,
		ProcessedCount: 10,
		SuccessCount:   9,
		ErrorCount:     1,
	}
	env.progress.snap = progress.Snapshot{Processed: 999}

	rec := env.do(http.MethodGet, "/api/v1/jobs/job-1", nil)
	var resp JobStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ProcessedCount != 10 {
		t.Errorf("terminal job must report frozen counts, got %d", resp.ProcessedCount)
	}
}

func TestGetJobStatus_NotFound(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodGet, "/api/v1/jobs/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetJobResults(t *testing.T) {
	env := newTestEnv()
	score := 72
	env.items.items = []*domain.AnalysisItem{
		{Identifier: "CAT-1", Kind: domain.KindCatalog, FinalScore: &score, PassedStage1: true, Classification: domain.ClassProfitable},
	}

	// Still running: results are not readable yet.
	env.jobs.jobs["job-1"] = &domain.Job{ID: "job-1", Status: domain.JobStatusRunning}
	rec := env.do(http.MethodGet, "/api/v1/jobs/job-1/results", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 while running, got %d", rec.Code)
	}

	env.jobs.jobs["job-1"].Status = domain.JobStatusCompleted
	rec = env.do(http.MethodGet, "/api/v1/jobs/job-1/results", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp JobResultsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 || resp.Items[0].Classification != domain.ClassProfitable {
		t.Errorf("unexpected results: %+v", resp)
	}
}

func TestGetJobStats(t *testing.T) {
	env := newTestEnv()
	env.jobs.jobs["job-1"] = &domain.Job{ID: "job-1", Status: domain.JobStatusCompleted}
	env.items.counts = map[domain.Classification]int{
		domain.ClassProfitable:    12,
		domain.ClassNotProfitable: 80,
		domain.ClassError:         3,
	}

	rec := env.do(http.MethodGet, "/api/v1/jobs/job-1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp JobStatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Classifications[domain.ClassNotProfitable] != 80 {
		t.Errorf("unexpected stats: %+v", resp.Classifications)
	}
}

func TestCancelJob(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodPost, "/api/v1/jobs/job-1/cancel", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if len(env.controller.cancelled) != 1 || env.controller.cancelled[0] != "job-1" {
		t.Errorf("cancellation not forwarded: %v", env.controller.cancelled)
	}

	env.controller.cancelErr = fmt.Errorf("%w: completed", pipeline.ErrJobTerminal)
	rec = env.do(http.MethodPost, "/api/v1/jobs/job-1/cancel", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for terminal job, got %d", rec.Code)
	}

	env.controller.cancelErr = database.ErrJobNotFound
	rec = env.do(http.MethodPost, "/api/v1/jobs/nope/cancel", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHealthCheck_DegradesWhenProviderDown(t *testing.T) {
	env := newTestEnv()
	env.handler.RegisterDependency("pricing", func(context.Context) error { return nil })
	env.handler.RegisterDependency("history", func(context.Context) error {
		return fmt.Errorf("history provider unhealthy: 503")
	})

	rec := env.do(http.MethodGet, "/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var resp struct {
		Status       string `json:"status"`
		Dependencies []struct {
			Name      string `json:"name"`
			Reachable bool   `json:"reachable"`
		} `json:"dependencies"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "degraded" || len(resp.Dependencies) != 2 {
		t.Errorf("unexpected health report: %+v", resp)
	}
	if !resp.Dependencies[0].Reachable || resp.Dependencies[1].Reachable {
		t.Errorf("unexpected reachability: %+v", resp.Dependencies)
	}
}
