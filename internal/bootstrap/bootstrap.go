// Package bootstrap assembles the service components from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	"github.com/profitscan/profitscan/internal/api"
	"github.com/profitscan/profitscan/internal/cache"
	"github.com/profitscan/profitscan/internal/config"
	"github.com/profitscan/profitscan/internal/database"
	"github.com/profitscan/profitscan/internal/logger"
	"github.com/profitscan/profitscan/internal/orchestrator"
	"github.com/profitscan/profitscan/internal/pipeline"
	"github.com/profitscan/profitscan/internal/progress"
	"github.com/profitscan/profitscan/internal/provider"
	"github.com/profitscan/profitscan/internal/ratelimit"
	"github.com/profitscan/profitscan/internal/redis"
	"github.com/profitscan/profitscan/internal/retry"
	"github.com/profitscan/profitscan/internal/scoring"
	"github.com/profitscan/profitscan/internal/telemetry"
)

const defaultShutdownTimeout = 30 * time.Second

// Components holds everything the service needs at runtime.
type Components struct {
	DB        *sqlx.DB
	Redis     *goredis.Client
	Scheduler *pipeline.Scheduler
	Server    *api.Server
	Logger    logger.Logger
}

// New builds the full component graph: database, Redis, provider clients,
// orchestrators, scoring, the chunk scheduler, and the HTTP server. The
// caller owns the lifecycle: Scheduler.Start, Server.Start, then Close on
// shutdown.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*Components, error) {
	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info("Database ready", logger.String("host", cfg.Database.Host))

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	jobRepo := database.NewJobRepository(db)
	itemRepo := database.NewItemRepository(db)
	resolutionRepo := database.NewResolutionRepository(db)

	metrics := telemetry.NewMetrics()

	limiter := ratelimit.New(
		ratelimit.NewRedisStore(redisClient, cfg.Progress.RateLimitKeyNS),
		map[string]int{
			orchestrator.ProviderPricing: cfg.Providers.Pricing.RateLimitPerSec,
			orchestrator.ProviderHistory: cfg.Providers.History.RateLimitPerSec,
		},
		metrics,
		log,
	)

	idCache := cache.New(resolutionRepo, log)

	retryCfg := retry.Config{
		MaxAttempts:  cfg.Providers.Retry.MaxAttempts,
		InitialDelay: cfg.Providers.Retry.InitialDelay,
		MaxDelay:     cfg.Providers.Retry.MaxDelay,
		Multiplier:   cfg.Providers.Retry.Multiplier,
	}

	pricingClient := provider.NewPricingClient(cfg.Providers.Pricing.URL, cfg.Providers.Pricing.APIKey)
	historyClient := provider.NewHistoryClient(cfg.Providers.History.URL, cfg.Providers.History.APIKey)

	pricingOrch := orchestrator.NewPricingOrchestrator(
		pricingClient, idCache, limiter, cfg.Providers.Pricing.BatchSize, retryCfg, metrics, log)
	historyOrch := orchestrator.NewHistoryOrchestrator(
		historyClient, limiter, cfg.Providers.History.BatchSize, retryCfg, metrics, log)

	tracker := progress.NewTracker(
		progress.NewRedisStore(redisClient, cfg.Progress.ProgressKeyNS),
		jobRepo,
		cfg.Progress.FlushInterval,
		cfg.Progress.FlushEvery,
		log,
	)

	stage1 := scoring.NewStage1Scorer(log, scoring.Stage1Config{
		PassThreshold: cfg.Scoring.Stage1PassThreshold,
	})
	stage2 := scoring.NewStage2Scorer(log, scoring.Stage2Config{
		HighlyProfitableMin: cfg.Scoring.HighlyProfitableMin,
		ProfitableMin:       cfg.Scoring.ProfitableMin,
		MarginalMin:         cfg.Scoring.MarginalMin,
	})

	processor := pipeline.NewChunkProcessor(pricingOrch, historyOrch, stage1, stage2, tracker, metrics, log)
	scheduler := pipeline.NewScheduler(jobRepo, itemRepo, processor, tracker, metrics, cfg.Service.Workers, log)

	handler := api.NewHandler(scheduler, jobRepo, itemRepo, tracker, log)
	handler.RegisterDependency(orchestrator.ProviderPricing, pricingClient.Health)
	handler.RegisterDependency(orchestrator.ProviderHistory, historyClient.Health)

	server := api.NewServer(handler, api.ServerConfig{
		Port:  cfg.Service.Port,
		Debug: cfg.Service.Debug,
	}, log)

	return &Components{
		DB:        db,
		Redis:     redisClient,
		Scheduler: scheduler,
		Server:    server,
		Logger:    log,
	}, nil
}

// Close releases the shared connections. Call after the scheduler and
// server have stopped.
func (c *Components) Close() {
	if err := c.Redis.Close(); err != nil {
		c.Logger.Warn("Redis close failed", logger.Error(err))
	}
	if err := c.DB.Close(); err != nil {
		c.Logger.Warn("Database close failed", logger.Error(err))
	}
}

// ShutdownTimeout returns the grace period for draining in-flight work.
func ShutdownTimeout() time.Duration {
	return defaultShutdownTimeout
}
