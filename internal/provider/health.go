package provider

import (
	"context"
	"time"
)

const healthTimeout = 5 * time.Second

// HealthStatus is the outcome of probing one provider's health endpoint.
type HealthStatus struct {
	Name      string `json:"name"`
	Reachable bool   `json:"reachable"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// CheckHealth runs check under a bounded timeout and reports reachability
// and observed latency for the named provider.
func CheckHealth(ctx context.Context, name string, check func(context.Context) error) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	start := time.Now()
	err := check(ctx)
	status := HealthStatus{
		Name:      name,
		Reachable: err == nil,
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}
