// Package app wires the collection pipeline from configuration. It is shared
// by the server and the eventctl command.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/STRATINT/eventfeed/internal/api"
	"github.com/STRATINT/eventfeed/internal/config"
	"github.com/STRATINT/eventfeed/internal/database"
	"github.com/STRATINT/eventfeed/internal/dedup"
	"github.com/STRATINT/eventfeed/internal/enrichment"
	"github.com/STRATINT/eventfeed/internal/ingestion"
	"github.com/STRATINT/eventfeed/internal/metrics"
	"github.com/STRATINT/eventfeed/internal/moderation"
	"github.com/STRATINT/eventfeed/internal/publish"
)

const (
	httpClientTimeout = 30 * time.Second
	classifierTTL     = 24 * time.Hour
)

// App holds the wired pipeline components.
type App struct {
	Config       config.Config
	Sources      config.SourcesFile
	Store        ingestion.CandidateStore
	DB           *sql.DB
	Trust        *moderation.TrustRegistry
	Quality      *enrichment.QualityScorer
	Evaluator    *enrichment.Evaluator
	Dedup        *dedup.Service
	Orchestrator *ingestion.Orchestrator
	Moderator    *moderation.Moderator
	Publisher    *publish.RabbitMQPublisher
	Metrics      *metrics.Collector

	logger *slog.Logger
}

// Build connects the store, loads sources and assembles the orchestrator.
// collector may be nil.
func Build(ctx context.Context, cfg config.Config, collector *metrics.Collector, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Metrics: collector, logger: logger}

	sources, err := config.LoadSources(cfg.Pipeline.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	a.Sources = sources

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	a.Trust = moderation.NewTrustRegistry(sources.Trust)
	a.Quality = enrichment.NewQualityScorer()
	a.Evaluator = enrichment.NewEvaluator(enrichment.NewRelevanceScorer(enrichment.DefaultTaxonomy()), a.classifier())

	strategy, err := dedup.ParseClusterStrategy(cfg.Dedup.Strategy)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("dedup strategy: %w", err)
	}
	engine := dedup.NewEngine(dedup.Options{Threshold: cfg.Dedup.Threshold, Strategy: strategy}, a.Quality, a.Trust)
	a.Dedup = dedup.NewService(engine, a.Store, logger)

	limiter := ingestion.NewOriginLimiter(cfg.Pipeline.OriginRate, cfg.Pipeline.OriginBurst)
	specs, err := ingestion.BuildAdapters(sources, &http.Client{Timeout: httpClientTimeout}, limiter, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build adapters: %w", err)
	}

	if cfg.RabbitMQ.URL != "" {
		pub, err := publish.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			logger.Warn("rabbitmq unavailable, run notifications disabled", "error", err)
		} else {
			a.Publisher = pub
		}
	}

	defaultStrategy, ok := ingestion.ParseStrategy(cfg.Pipeline.Strategy)
	if !ok {
		logger.Warn("unknown orchestration strategy, using comprehensive", "strategy", cfg.Pipeline.Strategy)
	}

	deps := ingestion.OrchestratorDeps{
		Adapters:  specs,
		Store:     a.Store,
		Evaluator: a.Evaluator,
		Quality:   a.Quality,
		Router:    a.Trust,
		Dedup:     a.Dedup,
	}
	// Typed nil pointers must not leak into the optional interfaces.
	if a.Publisher != nil {
		deps.Notifier = a.Publisher
	}
	if collector != nil {
		deps.Metrics = collector
	}
	a.Orchestrator = ingestion.NewOrchestrator(deps, ingestion.OrchestratorConfig{
		DefaultStrategy: defaultStrategy,
		TierCooldown:    cfg.Pipeline.TierCooldown,
	}, logger)

	var notifier moderation.ApprovalNotifier
	if a.Publisher != nil {
		notifier = a.Publisher
	}
	a.Moderator = moderation.NewModerator(a.Store, notifier, logger)

	logger.Info("pipeline ready",
		"adapters", a.Orchestrator.Adapters(),
		"strategy", defaultStrategy,
		"dedup_strategy", strategy,
		"postgres", a.DB != nil,
		"rabbitmq", a.Publisher != nil,
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	if a.Config.Database.URL == "" {
		a.logger.Warn("no database configured, using in-memory candidate store")
		a.Store = ingestion.NewMemoryCandidateStore()
		return nil
	}

	db, err := database.Connect(ctx, a.Config.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := database.RunMigrations(ctx, db, a.Config.Database.MigrationsDir, a.logger); err != nil {
		db.Close()
		return fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database connected", "stats", database.Stats(db))

	a.DB = db
	a.Store = database.NewPostgresCandidateStore(db)
	return nil
}

func (a *App) classifier() enrichment.Classifier {
	if a.Config.OpenAI.APIKey == "" {
		return nil
	}
	c, err := enrichment.NewOpenAIClassifier(enrichment.OpenAIConfig{
		APIKey: a.Config.OpenAI.APIKey,
		Model:  a.Config.OpenAI.Model,
	}, a.logger)
	if err != nil {
		a.logger.Warn("openai classifier disabled", "error", err)
		return nil
	}
	return enrichment.NewCachedClassifier(c, classifierTTL)
}

// HealthChecks returns the dependency checks for /healthz.
func (a *App) HealthChecks() map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{}
	if a.DB != nil {
		db := a.DB
		checks["database"] = func(ctx context.Context) error { return database.HealthCheck(ctx, db) }
	}
	if a.Publisher != nil {
		pub := a.Publisher
		checks["rabbitmq"] = func(context.Context) error { return pub.HealthCheck() }
	}
	return checks
}

// Close releases the publisher and database.
func (a *App) Close() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.logger.Warn("failed to close publisher", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.logger.Warn("failed to close database", "error", err)
		}
	}
}
