package orchestrator

import (
	"context"

	"github.com/profitscan/profitscan/internal/domain"
	"github.com/profitscan/profitscan/internal/logger"
	"github.com/profitscan/profitscan/internal/retry"
	"github.com/profitscan/profitscan/internal/telemetry"
)

// HistoryAPI is the surface of the history provider the orchestrator needs.
type HistoryAPI interface {
	FetchBatch(ctx context.Context, codes []string) (map[string]*domain.HistorySignals, error)
}

// HistoryOrchestrator drives the sales history provider. It is only ever
// fed quick-pass survivors, which is what keeps spend on the expensive
// provider bounded.
type HistoryOrchestrator struct {
	api       HistoryAPI
	limiter   Limiter
	batchSize int
	retryCfg  retry.Config
	metrics   *telemetry.Metrics
	logger    logger.Logger
}

// NewHistoryOrchestrator creates a history orchestrator. batchSize is
// clamped to the provider's ceiling of MaxHistoryBatch.
func NewHistoryOrchestrator(
	api HistoryAPI,
	limiter Limiter,
	batchSize int,
	retryCfg retry.Config,
	metrics *telemetry.Metrics,
	log logger.Logger,
) *HistoryOrchestrator {
	if batchSize <= 0 || batchSize > MaxHistoryBatch {
		batchSize = MaxHistoryBatch
	}

	return &HistoryOrchestrator{
		api:       api,
		limiter:   limiter,
		batchSize: batchSize,
		retryCfg:  retryCfg,
		metrics:   metrics,
		logger:    log,
	}
}

// FetchBatch returns sales history signals for catalog codes, partial
// results keyed by code.
func (o *HistoryOrchestrator) FetchBatch(ctx context.Context, codes []string) map[string]Outcome[domain.HistorySignals] {
	return fetchGrouped(ctx, ProviderHistory, codes, o.batchSize, o.limiter, o.retryCfg, o.metrics, o.logger, o.api.FetchBatch)
}
