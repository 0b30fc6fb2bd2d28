package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/STRATINT/eventfeed/internal/ingestion"
	"github.com/STRATINT/eventfeed/internal/models"
)

// Runner starts one orchestrated collection run.
type Runner interface {
	Run(ctx context.Context, opts ingestion.RunOptions) (models.Summary, error)
}

// RunScheduler triggers collection runs on a fixed interval.
type RunScheduler struct {
	runner   Runner
	opts     ingestion.RunOptions
	interval time.Duration
	logger   *slog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewRunScheduler creates a scheduler that runs every interval with opts.
func NewRunScheduler(runner Runner, opts ingestion.RunOptions, interval time.Duration, logger *slog.Logger) *RunScheduler {
	return &RunScheduler{
		runner:   runner,
		opts:     opts,
		interval: interval,
		logger:   logger.With("component", "run_scheduler"),
		stopChan: make(chan struct{}),
	}
}

// Start blocks until Stop is called or ctx is cancelled. A run is triggered
// immediately and then on every tick.
func (s *RunScheduler) Start(ctx context.Context) {
	s.logger.Info("starting run scheduler", "interval", s.interval, "strategy", s.opts.Strategy)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.stopChan:
			s.logger.Info("run scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("run scheduler stopping due to context cancellation")
			return
		}
	}
}

// Stop stops the scheduler. It is safe to call more than once.
func (s *RunScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *RunScheduler) runOnce(ctx context.Context) {
	summary, err := s.runner.Run(ctx, s.opts)
	switch {
	case errors.Is(err, ingestion.ErrRunInProgress):
		s.logger.Info("skipping scheduled run, another run is active")
	case err != nil:
		s.logger.Error("scheduled run failed", "error", err)
	default:
		s.logger.Info("scheduled run finished",
			"run_id", summary.RunID,
			"found", summary.TotalEventsFound,
			"added", summary.TotalEventsAdded,
		)
	}
}
