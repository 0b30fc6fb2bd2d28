package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/STRATINT/eventfeed/internal/ingestion"
	"github.com/STRATINT/eventfeed/internal/models"
	"github.com/STRATINT/eventfeed/internal/moderation"
	"github.com/gorilla/mux"
)

// EventReader reads candidates for the moderation UI.
type EventReader interface {
	Get(ctx context.Context, id string) (models.CandidateEvent, error)
	List(ctx context.Context, filter ingestion.CandidateFilter) ([]models.CandidateEvent, error)
}

// RunLogReader reads persisted run logs.
type RunLogReader interface {
	LatestRunLog(ctx context.Context, source string) (models.RunLog, error)
}

// Moderator applies moderation actions.
type Moderator interface {
	Approve(ctx context.Context, id string) (models.CandidateEvent, error)
	Reject(ctx context.Context, id, reason string) (models.CandidateEvent, error)
	Edit(ctx context.Context, id string, fields moderation.EditFields) (models.CandidateEvent, error)
	Delete(ctx context.Context, id string) error
}

// Runner triggers and reports orchestrated collection runs.
type Runner interface {
	Run(ctx context.Context, opts ingestion.RunOptions) (models.Summary, error)
	LastSummary() (models.Summary, bool)
	State() ingestion.RunState
}

// Deduplicator runs the dedup stage on demand. It must refuse with
// ingestion.ErrRunInProgress while a collection run holds the pool.
type Deduplicator interface {
	Deduplicate(ctx context.Context) (models.DedupStats, error)
}

// HealthCheck reports the health of one dependency.
type HealthCheck func(ctx context.Context) error

// Middleware wraps the router, e.g. metrics.Collector.InstrumentHandler.
type Middleware func(http.Handler) http.Handler

// Deps wires the handlers. Trust, Metrics and Checks are optional.
type Deps struct {
	Events     EventReader
	RunLogs    RunLogReader
	Moderator  Moderator
	Runner     Runner
	Dedup      Deduplicator
	Trust      *moderation.TrustRegistry
	Metrics    http.Handler
	Middleware []Middleware
	Checks     map[string]HealthCheck
}

// NewRouter configures all API routes.
func NewRouter(deps Deps, logger *slog.Logger) *mux.Router {
	logger = logger.With("component", "api")
	events := &EventHandler{events: deps.Events, moderator: deps.Moderator, trust: deps.Trust, logger: logger}
	runs := &RunHandler{runner: deps.Runner, dedup: deps.Dedup, logs: deps.RunLogs, logger: logger}

	r := mux.NewRouter()
	for _, mw := range deps.Middleware {
		r.Use(mux.MiddlewareFunc(mw))
	}
	r.Use(requestLogger(logger))

	r.HandleFunc("/healthz", healthHandler(deps.Checks)).Methods(http.MethodGet)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/events", events.List).Methods(http.MethodGet)
	api.HandleFunc("/events/{id}", events.Get).Methods(http.MethodGet)
	api.HandleFunc("/events/{id}", events.Edit).Methods(http.MethodPatch)
	api.HandleFunc("/events/{id}", events.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/events/{id}/approve", events.Approve).Methods(http.MethodPost)
	api.HandleFunc("/events/{id}/reject", events.Reject).Methods(http.MethodPost)

	api.HandleFunc("/runs", runs.Start).Methods(http.MethodPost)
	api.HandleFunc("/runs/latest", runs.Latest).Methods(http.MethodGet)
	api.HandleFunc("/runs/state", runs.State).Methods(http.MethodGet)
	api.HandleFunc("/dedup", runs.Deduplicate).Methods(http.MethodPost)
	api.HandleFunc("/dedup/latest", runs.LatestDedup).Methods(http.MethodGet)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

func requestLogger(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request handled", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		writeJSON(w, status, map[string]any{"status": overall, "checks": results})
	}
}
