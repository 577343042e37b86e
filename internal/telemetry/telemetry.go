// Package telemetry exports the Prometheus metrics for the analysis
// pipeline: provider call volume, retry pressure, rate-limiter waits,
// worker utilization, and per-classification item counts.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "profitscan"

// Metrics holds all pipeline Prometheus metrics.
type Metrics struct {
	// Provider metrics
	ProviderCalls    *prometheus.CounterVec
	ProviderRetries  *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec

	// Rate limiter metrics
	RateLimitWaits *prometheus.CounterVec

	// Pipeline metrics
	ItemsProcessed  *prometheus.CounterVec
	Stage2Skipped   prometheus.Counter
	CacheLookups    *prometheus.CounterVec
	ActiveWorkers   prometheus.Gauge
	ChunksCompleted *prometheus.CounterVec
	JobDuration     prometheus.Histogram
}

// NewMetrics registers pipeline metrics on the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers pipeline metrics on the given registerer. Tests
// pass a fresh prometheus.NewRegistry to avoid duplicate registration.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ProviderCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "External provider calls by provider and outcome",
		}, []string{"provider", "outcome"}),
		ProviderRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_retries_total",
			Help:      "Retried provider calls by provider",
		}, []string{"provider"}),
		ProviderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Provider call latency by provider",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		RateLimitWaits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_waits_total",
			Help:      "Acquire calls that had to wait for the next window",
		}, []string{"provider"}),
		ItemsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_processed_total",
			Help:      "Analyzed items by final classification",
		}, []string{"classification"}),
		Stage2Skipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage2_skipped_total",
			Help:      "Items filtered out by the quick-pass score before deep analysis",
		}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identifier_cache_lookups_total",
			Help:      "Identifier cache lookups by result (hit or miss)",
		}, []string{"result"}),
		ActiveWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Workers currently processing a chunk",
		}),
		ChunksCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_completed_total",
			Help:      "Completed chunks by status",
		}, []string{"status"}),
		JobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall-clock time from job submission to finalization",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
	}
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
