// Package orchestrator groups identifier lookups into provider-sized
// batches, paces them through the shared rate limiter, retries transient
// failures, and returns partial results keyed by identifier. One
// orchestrator exists per external provider; they differ only in batch
// ceiling and payload shape.
package orchestrator

import (
	"context"
	"time"

	"github.com/profitscan/profitscan/internal/logger"
	"github.com/profitscan/profitscan/internal/retry"
	"github.com/profitscan/profitscan/internal/telemetry"
)

// Provider names used for rate-limit and metrics labels.
const (
	ProviderPricing = "pricing"
	ProviderHistory = "history"
)

// Provider-mandated batch ceilings. Configured batch sizes are clamped to
// these.
const (
	MaxPricingBatch = 20
	MaxHistoryBatch = 100
)

// Limiter admits provider calls under the shared per-provider ceiling.
type Limiter interface {
	Acquire(ctx context.Context, provider string) error
}

// Outcome is the per-code result of a batch fetch. Exactly one of three
// states holds: Value set (provider returned data), Err set (the code's
// group exhausted retries), or neither (the provider does not know the
// code).
type Outcome[T any] struct {
	Value *T
	Err   error
}

// Found reports whether the provider returned data for the code.
func (o Outcome[T]) Found() bool {
	return o.Err == nil && o.Value != nil
}

// fetchGrouped partitions codes into provider-sized groups and fetches each
// group under the rate limiter with retry. A group that exhausts its
// retries marks every code in it with the error instead of failing the
// whole batch.
func fetchGrouped[T any](
	ctx context.Context,
	provider string,
	codes []string,
	batchSize int,
	limiter Limiter,
	retryCfg retry.Config,
	metrics *telemetry.Metrics,
	log logger.Logger,
	call func(context.Context, []string) (map[string]*T, error),
) map[string]Outcome[T] {
	out := make(map[string]Outcome[T], len(codes))

	for _, group := range partition(dedupe(codes), batchSize) {
		var results map[string]*T

		attempt := 0
		err := retry.Do(ctx, retryCfg, func() error {
			attempt++
			if attempt > 1 {
				metrics.ProviderRetries.WithLabelValues(provider).Inc()
			}

			if err := limiter.Acquire(ctx, provider); err != nil {
				return err
			}

			start := time.Now()
			fetched, err := call(ctx, group)
			metrics.ProviderDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.ProviderCalls.WithLabelValues(provider, "error").Inc()
				return err
			}
			metrics.ProviderCalls.WithLabelValues(provider, "success").Inc()

			results = fetched
			return nil
		})
		if err != nil {
			log.Error("Provider group exhausted retries",
				logger.String("provider", provider),
				logger.Int("group_size", len(group)),
				logger.Error(err),
			)
			for _, code := range group {
				out[code] = Outcome[T]{Err: err}
			}
			continue
		}

		// A code absent from the response is a not_found for this
		// provider, not a pipeline error.
		for _, code := range group {
			out[code] = Outcome[T]{Value: results[code]}
		}
	}

	return out
}

// partition splits codes into contiguous groups of at most size.
func partition(codes []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}

	groups := make([][]string, 0, (len(codes)+size-1)/size)
	for start := 0; start < len(codes); start += size {
		end := min(start+size, len(codes))
		groups = append(groups, codes[start:end])
	}

	return groups
}

// dedupe removes duplicate codes, preserving first-seen order so repeated
// identifiers in one chunk spend provider budget once.
func dedupe(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}

	return out
}
