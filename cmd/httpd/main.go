package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/profitscan/profitscan/internal/bootstrap"
	"github.com/profitscan/profitscan/internal/config"
	"github.com/profitscan/profitscan/internal/configload"
	"github.com/profitscan/profitscan/internal/logger"
)

const defaultConfigPath = "config.yml"

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	cfg, err := config.Load(configload.GetConfigPath(defaultConfigPath))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}

	if err := run(cfg, appLogger); err != nil {
		appLogger.Error("Service failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, appLogger logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLogger.Info("Starting analysis service",
		logger.String("name", cfg.Service.Name),
		logger.String("version", cfg.Service.Version),
		logger.Int("port", cfg.Service.Port),
	)

	comps, err := bootstrap.New(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer comps.Close()

	// The pool gets its own context: a shutdown signal must not cancel the
	// queued chunks that Stop drains below.
	poolCtx, poolCancel := context.WithCancel(context.Background())
	defer poolCancel()
	comps.Scheduler.Start(poolCtx)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- comps.Server.Start()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		appLogger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), bootstrap.ShutdownTimeout())
	defer cancel()

	if err := comps.Server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Graceful shutdown failed", logger.Error(err))
	}

	// Let queued chunks drain so their jobs finalize.
	comps.Scheduler.Stop()

	appLogger.Info("Service stopped")
	return nil
}
