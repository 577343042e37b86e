package orchestrator

import (
	"context"
	"time"

	"github.com/profitscan/profitscan/internal/cache"
	"github.com/profitscan/profitscan/internal/domain"
	"github.com/profitscan/profitscan/internal/logger"
	"github.com/profitscan/profitscan/internal/retry"
	"github.com/profitscan/profitscan/internal/telemetry"
)

// PricingAPI is the surface of the pricing provider the orchestrator needs.
type PricingAPI interface {
	ResolveBatch(ctx context.Context, codes []string) (map[string][]string, error)
	FetchBatch(ctx context.Context, codes []string) (map[string]*domain.PricingSignals, error)
}

// PricingOrchestrator drives the pricing provider: universal product code
// resolution (through the identifier cache) and current offer lookups.
type PricingOrchestrator struct {
	api       PricingAPI
	cache     *cache.IdentifierCache
	limiter   Limiter
	batchSize int
	retryCfg  retry.Config
	metrics   *telemetry.Metrics
	logger    logger.Logger
}

// NewPricingOrchestrator creates a pricing orchestrator. batchSize is
// clamped to the provider's ceiling of MaxPricingBatch.
func NewPricingOrchestrator(
	api PricingAPI,
	idCache *cache.IdentifierCache,
	limiter Limiter,
	batchSize int,
	retryCfg retry.Config,
	metrics *telemetry.Metrics,
	log logger.Logger,
) *PricingOrchestrator {
	if batchSize <= 0 || batchSize > MaxPricingBatch {
		batchSize = MaxPricingBatch
	}

	return &PricingOrchestrator{
		api:       api,
		cache:     idCache,
		limiter:   limiter,
		batchSize: batchSize,
		retryCfg:  retryCfg,
		metrics:   metrics,
		logger:    log,
	}
}

// Resolve maps universal product codes to resolution records, consulting
// the identifier cache first and spending provider budget only on misses.
// Fresh resolutions (found, multiple, and not_found alike) are persisted to
// the cache so no job ever re-resolves the same code externally.
//
// The returned error is reserved for cache-read faults; provider failures
// surface per-code in the outcome map.
func (o *PricingOrchestrator) Resolve(ctx context.Context, codes []string) (map[string]Outcome[domain.ResolutionRecord], error) {
	codes = dedupe(codes)

	cached, err := o.cache.ResolveBatch(ctx, codes)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Outcome[domain.ResolutionRecord], len(codes))
	misses := make([]string, 0, len(codes)-len(cached))
	for _, code := range codes {
		if rec, ok := cached[code]; ok {
			out[code] = Outcome[domain.ResolutionRecord]{Value: rec}
		} else {
			misses = append(misses, code)
		}
	}

	o.metrics.CacheLookups.WithLabelValues("hit").Add(float64(len(cached)))
	o.metrics.CacheLookups.WithLabelValues("miss").Add(float64(len(misses)))

	if len(misses) == 0 {
		return out, nil
	}

	fetched := fetchGrouped(ctx, ProviderPricing, misses, o.batchSize, o.limiter, o.retryCfg, o.metrics, o.logger,
		func(ctx context.Context, group []string) (map[string]*domain.ResolutionRecord, error) {
			resolved, err := o.api.ResolveBatch(ctx, group)
			if err != nil {
				return nil, err
			}

			records := make(map[string]*domain.ResolutionRecord, len(resolved))
			for code, candidates := range resolved {
				records[code] = newResolutionRecord(code, candidates)
			}
			return records, nil
		})

	for code, oc := range fetched {
		if oc.Err != nil {
			out[code] = oc
			continue
		}

		rec := oc.Value
		if rec == nil {
			rec = newResolutionRecord(code, nil)
		}
		if err := o.cache.Store(ctx, rec); err != nil {
			// The resolution is still usable for this job; only the
			// cross-job cache write was lost.
			o.logger.Warn("Failed to cache resolution",
				logger.String("code", code),
				logger.Error(err),
			)
		}

		out[code] = Outcome[domain.ResolutionRecord]{Value: rec}
	}

	return out, nil
}

// FetchBatch returns current offer signals for catalog codes, partial
// results keyed by code.
func (o *PricingOrchestrator) FetchBatch(ctx context.Context, codes []string) map[string]Outcome[domain.PricingSignals] {
	return fetchGrouped(ctx, ProviderPricing, codes, o.batchSize, o.limiter, o.retryCfg, o.metrics, o.logger, o.api.FetchBatch)
}

func newResolutionRecord(code string, candidates []string) *domain.ResolutionRecord {
	rec := &domain.ResolutionRecord{
		InputCode:  code,
		ResolvedAt: time.Now().UTC(),
	}

	switch len(candidates) {
	case 0:
		rec.Status = domain.ResolutionNotFound
	case 1:
		rec.Status = domain.ResolutionFound
		rec.ResolvedCode = candidates[0]
	default:
		rec.Status = domain.ResolutionMultiple
		rec.Candidates = candidates
	}

	return rec
}
