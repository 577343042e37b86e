// Package ratelimit enforces per-provider request ceilings shared across
// every concurrent worker in the system.
//
// Each provider gets an independent requests-per-second ceiling backed by an
// atomic window counter in Redis. When Redis is unreachable the limiter
// degrades to an in-process token bucket at the same rate: correctness
// degrades (the ceiling becomes per-process), availability is preserved.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/profitscan/profitscan/internal/logger"
	"github.com/profitscan/profitscan/internal/telemetry"
)

// Limiter blocks callers until their provider's shared quota admits
// another call. Acquire only ever delays; it does not fail under normal
// operation.
type Limiter struct {
	store   Store
	limits  map[string]int
	local   map[string]*rate.Limiter
	metrics *telemetry.Metrics
	logger  logger.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates a limiter with per-provider requests-per-second ceilings.
// metrics may be nil.
func New(store Store, limits map[string]int, metrics *telemetry.Metrics, log logger.Logger) *Limiter {
	local := make(map[string]*rate.Limiter, len(limits))
	for provider, rps := range limits {
		if rps <= 0 {
			rps = 1
		}
		limits[provider] = rps
		// Burst 1 keeps the local approximation at least as strict as the
		// shared window.
		local[provider] = rate.NewLimiter(rate.Limit(rps), 1)
	}

	return &Limiter{
		store:   store,
		limits:  limits,
		local:   local,
		metrics: metrics,
		logger:  log,
		now:     time.Now,
	}
}

// Acquire blocks until the provider's rate ceiling admits another request.
// It returns an error only when the context is cancelled or the provider is
// unknown.
func (l *Limiter) Acquire(ctx context.Context, provider string) error {
	limit, ok := l.limits[provider]
	if !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		now := l.now()
		window := now.Unix()

		count, err := l.store.IncrWindow(ctx, provider, window)
		if err != nil {
			// Shared store unreachable: degrade to the local limiter
			// rather than failing the caller.
			l.logger.Warn("Rate limit store unreachable, using local limiter",
				logger.String("provider", provider),
				logger.Error(err),
			)
			return l.local[provider].Wait(ctx)
		}

		if count <= int64(limit) {
			return nil
		}

		// Window exhausted: sleep the minimal remaining time, then retry
		// against the next window.
		if l.metrics != nil {
			l.metrics.RateLimitWaits.WithLabelValues(provider).Inc()
		}
		sleep := time.Unix(window+1, 0).Sub(now)
		if sleep <= 0 {
			sleep = time.Millisecond
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// Limit returns the configured ceiling for a provider (0 if unknown).
func (l *Limiter) Limit(provider string) int {
	return l.limits[provider]
}
