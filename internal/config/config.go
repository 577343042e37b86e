// Package config holds all configuration for the analysis service.
package config

import (
	"time"

	"github.com/profitscan/profitscan/internal/configload"
	"github.com/profitscan/profitscan/internal/database"
	"github.com/profitscan/profitscan/internal/logger"
	"github.com/profitscan/profitscan/internal/redis"
)

// Default configuration values.
const (
	defaultServiceName    = "profitscan"
	defaultServiceVersion = "1.0.0"
	defaultServicePort    = 8080
	defaultWorkers        = 4

	defaultPricingBatchSize = 20
	defaultPricingRPS       = 5
	defaultHistoryBatchSize = 100
	defaultHistoryRPS       = 20

	defaultRetryMaxAttempts  = 3
	defaultRetryInitialDelay = 250 * time.Millisecond
	defaultRetryMaxDelay     = 10 * time.Second
	defaultRetryMultiplier   = 2.0

	defaultStage1PassThreshold = 50
	defaultHighlyProfitableMin = 70
	defaultProfitableMin       = 50
	defaultMarginalMin         = 30

	defaultFlushInterval  = 2 * time.Second
	defaultFlushEvery     = 50
	defaultRateLimitKeyNS = "ratelimit"
)

// Config holds all configuration for the service.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  database.Config `yaml:"database"`
	Redis     redis.Config    `yaml:"redis"`
	Logging   logger.Config   `yaml:"logging"`
	Providers ProvidersConfig `yaml:"providers"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Progress  ProgressConfig  `yaml:"progress"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Port    int    `env:"PROFITSCAN_PORT"    yaml:"port"`
	Debug   bool   `env:"APP_DEBUG"          yaml:"debug"`
	// Workers is the fixed size of the chunk worker pool.
	Workers int `env:"PROFITSCAN_WORKERS" yaml:"workers"`
}

// ProvidersConfig holds the two external provider configurations.
type ProvidersConfig struct {
	Pricing ProviderConfig `yaml:"pricing"`
	History ProviderConfig `yaml:"history"`
	Retry   RetryConfig    `yaml:"retry"`
}

// ProviderConfig holds one external provider's connection and pacing
// settings.
type ProviderConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	// BatchSize is clamped to the provider's documented ceiling.
	BatchSize int `yaml:"batch_size"`
	// RateLimitPerSec is the shared requests-per-second ceiling.
	RateLimitPerSec int `yaml:"rate_limit_per_sec"`
}

// RetryConfig holds backoff settings for transient provider failures.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
}

// ScoringConfig holds the scoring thresholds. The pass threshold and
// classification bands are configurable with the documented defaults.
type ScoringConfig struct {
	Stage1PassThreshold int `yaml:"stage1_pass_threshold"`
	HighlyProfitableMin int `yaml:"highly_profitable_min"`
	ProfitableMin       int `yaml:"profitable_min"`
	MarginalMin         int `yaml:"marginal_min"`
}

// ProgressConfig holds the progress flush cadence and the rate-limiter
// key namespace.
type ProgressConfig struct {
	FlushInterval  time.Duration `yaml:"flush_interval"`
	FlushEvery     int           `yaml:"flush_every"`
	RateLimitKeyNS string        `yaml:"rate_limit_key_namespace"`
	ProgressKeyNS  string        `yaml:"progress_key_namespace"`
}

// Load loads configuration from the specified path.
func Load(path string) (*Config, error) {
	return configload.LoadWithDefaults[Config](path, SetDefaults)
}

// SetDefaults applies default values to the config.
func SetDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setProviderDefaults(&cfg.Providers)
	setScoringDefaults(&cfg.Scoring)
	setProgressDefaults(&cfg.Progress)
	cfg.Logging.SetDefaults()
}

func setServiceDefaults(s *ServiceConfig) {
	if s.Name == "" {
		s.Name = defaultServiceName
	}
	if s.Version == "" {
		s.Version = defaultServiceVersion
	}
	if s.Port == 0 {
		s.Port = defaultServicePort
	}
	if s.Workers == 0 {
		s.Workers = defaultWorkers
	}
}

func setProviderDefaults(p *ProvidersConfig) {
	if p.Pricing.BatchSize == 0 {
		p.Pricing.BatchSize = defaultPricingBatchSize
	}
	if p.Pricing.RateLimitPerSec == 0 {
		p.Pricing.RateLimitPerSec = defaultPricingRPS
	}
	if p.History.BatchSize == 0 {
		p.History.BatchSize = defaultHistoryBatchSize
	}
	if p.History.RateLimitPerSec == 0 {
		p.History.RateLimitPerSec = defaultHistoryRPS
	}
	if p.Retry.MaxAttempts == 0 {
		p.Retry.MaxAttempts = defaultRetryMaxAttempts
	}
	if p.Retry.InitialDelay == 0 {
		p.Retry.InitialDelay = defaultRetryInitialDelay
	}
	if p.Retry.MaxDelay == 0 {
		p.Retry.MaxDelay = defaultRetryMaxDelay
	}
	if p.Retry.Multiplier == 0 {
		p.Retry.Multiplier = defaultRetryMultiplier
	}
}

func setScoringDefaults(s *ScoringConfig) {
	if s.Stage1PassThreshold == 0 {
		s.Stage1PassThreshold = defaultStage1PassThreshold
	}
	if s.HighlyProfitableMin == 0 {
		s.HighlyProfitableMin = defaultHighlyProfitableMin
	}
	if s.ProfitableMin == 0 {
		s.ProfitableMin = defaultProfitableMin
	}
	if s.MarginalMin == 0 {
		s.MarginalMin = defaultMarginalMin
	}
}

func setProgressDefaults(p *ProgressConfig) {
	if p.FlushInterval == 0 {
		p.FlushInterval = defaultFlushInterval
	}
	if p.FlushEvery == 0 {
		p.FlushEvery = defaultFlushEvery
	}
	if p.RateLimitKeyNS == "" {
		p.RateLimitKeyNS = defaultRateLimitKeyNS
	}
	if p.ProgressKeyNS == "" {
		p.ProgressKeyNS = "progress"
	}
}
