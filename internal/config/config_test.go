package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetDefaults(t *testing.T) {
	var cfg Config
	SetDefaults(&cfg)

	assert.Equal(t, "profitscan", cfg.Service.Name)
	assert.Equal(t, 8080, cfg.Service.Port)
	assert.Equal(t, 4, cfg.Service.Workers)

	assert.Equal(t, 20, cfg.Providers.Pricing.BatchSize)
	assert.Equal(t, 5, cfg.Providers.Pricing.RateLimitPerSec)
	assert.Equal(t, 100, cfg.Providers.History.BatchSize)
	assert.Equal(t, 20, cfg.Providers.History.RateLimitPerSec)

	assert.Equal(t, 3, cfg.Providers.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Providers.Retry.InitialDelay)

	assert.Equal(t, 50, cfg.Scoring.Stage1PassThreshold)
	assert.Equal(t, 70, cfg.Scoring.HighlyProfitableMin)
	assert.Equal(t, 50, cfg.Scoring.ProfitableMin)
	assert.Equal(t, 30, cfg.Scoring.MarginalMin)

	assert.Equal(t, 2*time.Second, cfg.Progress.FlushInterval)
	assert.Equal(t, 50, cfg.Progress.FlushEvery)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestSetDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := Config{}
	cfg.Scoring.Stage1PassThreshold = 60
	cfg.Providers.Pricing.RateLimitPerSec = 2
	SetDefaults(&cfg)

	assert.Equal(t, 60, cfg.Scoring.Stage1PassThreshold)
	assert.Equal(t, 2, cfg.Providers.Pricing.RateLimitPerSec)
}
