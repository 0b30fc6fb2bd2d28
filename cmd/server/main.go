package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/STRATINT/eventfeed/internal/api"
	"github.com/STRATINT/eventfeed/internal/app"
	"github.com/STRATINT/eventfeed/internal/config"
	"github.com/STRATINT/eventfeed/internal/ingestion"
	"github.com/STRATINT/eventfeed/internal/logging"
	"github.com/STRATINT/eventfeed/internal/metrics"
	"github.com/STRATINT/eventfeed/internal/scheduler"
	"github.com/STRATINT/eventfeed/internal/server"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting eventfeed")

	collector, err := metrics.New()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := app.Build(ctx, cfg, collector, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	router := api.NewRouter(api.Deps{
		Events:     pipeline.Store,
		RunLogs:    pipeline.Store,
		Moderator:  pipeline.Moderator,
		Runner:     pipeline.Orchestrator,
		Dedup:      pipeline.Orchestrator,
		Trust:      pipeline.Trust,
		Metrics:    collector.Handler(),
		Middleware: []api.Middleware{collector.InstrumentHandler},
		Checks:     pipeline.HealthChecks(),
	}, logger)

	var runs *scheduler.RunScheduler
	if cfg.Pipeline.RunInterval > 0 {
		runs = scheduler.NewRunScheduler(pipeline.Orchestrator, ingestion.RunOptions{Strategy: cfg.Pipeline.Strategy}, cfg.Pipeline.RunInterval, logger)
		go runs.Start(ctx)
	} else {
		logger.Info("scheduled runs disabled, trigger runs via POST /api/runs")
	}

	srv := server.New(cfg.Server, logger, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	}

	if runs != nil {
		runs.Stop()
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}
	logger.Info("eventfeed stopped")
}
