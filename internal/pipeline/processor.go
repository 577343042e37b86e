// Package pipeline runs the analysis itself: the chunk processor executes
// the full per-item pipeline for one chunk, and the scheduler fans chunks
// out across the worker pool and finalizes the job exactly once.
package pipeline

import (
	"context"
	"fmt"

	"github.com/profitscan/profitscan/internal/domain"
	"github.com/profitscan/profitscan/internal/logger"
	"github.com/profitscan/profitscan/internal/orchestrator"
	"github.com/profitscan/profitscan/internal/progress"
	"github.com/profitscan/profitscan/internal/scoring"
	"github.com/profitscan/profitscan/internal/telemetry"
)

// PricingSource is the pricing orchestrator surface the processor needs.
type PricingSource interface {
	Resolve(ctx context.Context, codes []string) (map[string]orchestrator.Outcome[domain.ResolutionRecord], error)
	FetchBatch(ctx context.Context, codes []string) map[string]orchestrator.Outcome[domain.PricingSignals]
}

// HistorySource is the history orchestrator surface the processor needs.
type HistorySource interface {
	FetchBatch(ctx context.Context, codes []string) map[string]orchestrator.Outcome[domain.HistorySignals]
}

// ChunkProcessor runs one chunk end to end: identifier resolution, pricing
// lookup, quick-pass scoring, history lookup for survivors, and deep
// scoring. Items are decided in submission order and each item is reported
// to the progress tracker exactly once, at the moment it becomes terminal.
type ChunkProcessor struct {
	pricing PricingSource
	history HistorySource
	stage1  *scoring.Stage1Scorer
	stage2  *scoring.Stage2Scorer
	tracker *progress.Tracker
	metrics *telemetry.Metrics
	logger  logger.Logger
}

// NewChunkProcessor creates a chunk processor.
func NewChunkProcessor(
	pricing PricingSource,
	history HistorySource,
	stage1 *scoring.Stage1Scorer,
	stage2 *scoring.Stage2Scorer,
	tracker *progress.Tracker,
	metrics *telemetry.Metrics,
	log logger.Logger,
) *ChunkProcessor {
	return &ChunkProcessor{
		pricing: pricing,
		history: history,
		stage1:  stage1,
		stage2:  stage2,
		tracker: tracker,
		metrics: metrics,
		logger:  log,
	}
}

// Process executes the chunk. Per-item failures never return an error;
// they become error classifications on the items. The returned error is
// reserved for infrastructure faults (shared store unreachable), which
// fail the chunk and with it the job.
//
// Cancellation is cooperative: the flag is polled between items, so a
// cancel request takes effect within one item's latency. Items never
// reached are classified skipped and not counted as processed.
func (p *ChunkProcessor) Process(ctx context.Context, chunk *domain.Chunk) error {
	p.logger.Debug("Processing chunk",
		logger.String("job_id", chunk.JobID),
		logger.Int("chunk_id", chunk.ID),
		logger.Int("items", len(chunk.Items)),
	)

	if err := p.resolveIdentifiers(ctx, chunk); err != nil {
		return err
	}

	// Offer signals live only for the duration of the chunk; they are
	// inputs to scoring, not part of the persisted result.
	signals := make(map[*domain.AnalysisItem]*domain.PricingSignals)
	p.fetchPricing(ctx, chunk, signals)
	p.scoreStage1(ctx, chunk, signals)
	p.fetchHistoryAndScore(ctx, chunk, signals)
	p.skipRemaining(chunk)

	return nil
}

// resolveIdentifiers fills CatalogCode for every item. Catalog-kind
// identifiers skip resolution entirely; universal product codes go through
// the identifier cache and, on miss, the pricing provider.
func (p *ChunkProcessor) resolveIdentifiers(ctx context.Context, chunk *domain.Chunk) error {
	if p.cancelled(ctx, chunk.JobID) {
		return nil
	}

	var upcs []string
	for _, item := range chunk.Items {
		switch item.Kind {
		case domain.KindCatalog:
			item.CatalogCode = item.Identifier
		case domain.KindUPC:
			upcs = append(upcs, item.Identifier)
		}
	}

	if len(upcs) == 0 {
		return nil
	}

	outcomes, err := p.pricing.Resolve(ctx, upcs)
	if err != nil {
		return fmt.Errorf("resolve chunk identifiers: %w", err)
	}

	var decided []*domain.AnalysisItem
	for _, item := range chunk.Items {
		if item.Kind != domain.KindUPC {
			continue
		}

		oc := outcomes[item.Identifier]
		switch {
		case oc.Err != nil:
			item.MarkError(fmt.Sprintf("identifier resolution failed: %v", oc.Err))
			decided = append(decided, item)
		case oc.Value.Status == domain.ResolutionFound:
			item.CatalogCode = oc.Value.ResolvedCode
		default:
			// not_found and multiple are terminal classifications, not
			// failures.
			item.Classification = domain.ClassUnresolved
			decided = append(decided, item)
		}
	}

	p.report(ctx, chunk.JobID, decided)
	return nil
}

// fetchPricing loads offer signals for every undecided item into the
// chunk-local signals map. Items the pricing provider does not know become
// unresolved: without offer data there is nothing to analyze.
func (p *ChunkProcessor) fetchPricing(ctx context.Context, chunk *domain.Chunk, signals map[*domain.AnalysisItem]*domain.PricingSignals) {
	pending := undecided(chunk)
	if len(pending) == 0 || p.cancelled(ctx, chunk.JobID) {
		return
	}

	codes := make([]string, 0, len(pending))
	for _, item := range pending {
		codes = append(codes, item.CatalogCode)
	}

	outcomes := p.pricing.FetchBatch(ctx, codes)

	var decided []*domain.AnalysisItem
	for _, item := range pending {
		oc := outcomes[item.CatalogCode]
		switch {
		case oc.Err != nil:
			item.MarkError(fmt.Sprintf("pricing lookup failed: %v", oc.Err))
			decided = append(decided, item)
		case oc.Value == nil:
			item.CatalogCode = ""
			item.Classification = domain.ClassUnresolved
			decided = append(decided, item)
		default:
			signals[item] = oc.Value
		}
	}

	p.report(ctx, chunk.JobID, decided)
}

// scoreStage1 runs the quick-pass score over every undecided item. Items
// below the pass threshold are terminally not_profitable and never reach
// the expensive provider.
func (p *ChunkProcessor) scoreStage1(ctx context.Context, chunk *domain.Chunk, signals map[*domain.AnalysisItem]*domain.PricingSignals) {
	for _, item := range undecided(chunk) {
		if p.cancelled(ctx, chunk.JobID) {
			return
		}

		// No offer signals means an earlier phase stopped before reaching
		// this item (a cancellation poll read true mid-chunk); leave it for
		// skipRemaining rather than scoring nothing.
		pricing, ok := signals[item]
		if !ok {
			continue
		}

		result := p.stage1.Score(item.AcquisitionCost, pricing)
		score := result.Score
		item.Stage1Score = &score
		item.PassedStage1 = result.Passed

		if !result.Passed {
			item.Classification = domain.ClassNotProfitable
			p.metrics.Stage2Skipped.Inc()
			p.report(ctx, chunk.JobID, []*domain.AnalysisItem{item})
		}
	}
}

// fetchHistoryAndScore loads history signals for the quick-pass survivors
// and produces their final score and classification. A survivor the
// history provider does not know is scored on pricing signals alone.
func (p *ChunkProcessor) fetchHistoryAndScore(ctx context.Context, chunk *domain.Chunk, signals map[*domain.AnalysisItem]*domain.PricingSignals) {
	// Only items that were actually priced can be scored; anything still
	// undecided without signals was passed over after a cancellation poll
	// and belongs to skipRemaining.
	var survivors []*domain.AnalysisItem
	for _, item := range undecided(chunk) {
		if _, ok := signals[item]; ok {
			survivors = append(survivors, item)
		}
	}
	if len(survivors) == 0 || p.cancelled(ctx, chunk.JobID) {
		return
	}

	codes := make([]string, 0, len(survivors))
	for _, item := range survivors {
		codes = append(codes, item.CatalogCode)
	}

	outcomes := p.history.FetchBatch(ctx, codes)

	for _, item := range survivors {
		if p.cancelled(ctx, chunk.JobID) {
			return
		}

		oc := outcomes[item.CatalogCode]
		if oc.Err != nil {
			item.MarkError(fmt.Sprintf("history lookup failed: %v", oc.Err))
			p.report(ctx, chunk.JobID, []*domain.AnalysisItem{item})
			continue
		}

		history := oc.Value
		if history == nil {
			history = &domain.HistorySignals{CatalogCode: item.CatalogCode}
		}

		result := p.stage2.Score(item.AcquisitionCost, signals[item], history)
		score := result.Score
		item.FinalScore = &score
		item.Classification = result.Classification
		p.report(ctx, chunk.JobID, []*domain.AnalysisItem{item})
	}
}

// skipRemaining classifies anything still undecided (only possible after a
// cancellation) as skipped. Skipped items are not counted as processed.
func (p *ChunkProcessor) skipRemaining(chunk *domain.Chunk) {
	for _, item := range undecided(chunk) {
		item.Classification = domain.ClassSkipped
	}
}

func (p *ChunkProcessor) cancelled(ctx context.Context, jobID string) bool {
	return p.tracker.IsCancelled(ctx, jobID)
}

// report counts newly terminal items into the shared progress counters.
// Every classification except error counts as a success.
func (p *ChunkProcessor) report(ctx context.Context, jobID string, items []*domain.AnalysisItem) {
	if len(items) == 0 {
		return
	}

	var succeeded, failed int64
	for _, item := range items {
		p.metrics.ItemsProcessed.WithLabelValues(string(item.Classification)).Inc()
		if item.Classification == domain.ClassError {
			failed++
		} else {
			succeeded++
		}
	}

	if _, err := p.tracker.Increment(ctx, jobID, int64(len(items)), succeeded, failed); err != nil {
		p.logger.Warn("Failed to increment job progress",
			logger.String("job_id", jobID),
			logger.Error(err),
		)
	}
}

// undecided returns the chunk's items that have no terminal classification
// yet, in submission order.
func undecided(chunk *domain.Chunk) []*domain.AnalysisItem {
	var items []*domain.AnalysisItem
	for _, item := range chunk.Items {
		if item.Classification == "" {
			items = append(items, item)
		}
	}
	return items
}
