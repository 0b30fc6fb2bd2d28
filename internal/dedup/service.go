package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/STRATINT/eventfeed/internal/models"
)

// PoolStore is the part of the candidate store the dedup stage needs.
// UpdatePool must keep other writers out between handing fn the pool and
// storing fn's result.
type PoolStore interface {
	UpdatePool(ctx context.Context, fn func(pool []models.CandidateEvent) ([]models.CandidateEvent, error)) error
}

// Service runs the deduplication stage against the persisted pool.
type Service struct {
	engine *Engine
	store  PoolStore
	logger *slog.Logger
}

// NewService creates a dedup stage service.
func NewService(engine *Engine, store PoolStore, logger *slog.Logger) *Service {
	return &Service{
		engine: engine,
		store:  store,
		logger: logger.With("component", "dedup"),
	}
}

// Run deduplicates the pool and writes the merged records back as one locked
// read-modify-write, so candidates appended or edited meanwhile are not lost.
// When clustering fails the pool is left untouched.
func (s *Service) Run(ctx context.Context) (models.DedupStats, error) {
	start := time.Now()

	var (
		result    Result
		computed  bool
		processed int
		engineErr error
	)
	err := s.store.UpdatePool(ctx, func(pool []models.CandidateEvent) ([]models.CandidateEvent, error) {
		processed = len(pool)
		r, err := s.engine.Deduplicate(pool)
		if err != nil {
			engineErr = err
			return nil, err
		}
		result, computed = r, true
		return r.Unique, nil
	})

	switch {
	case engineErr != nil:
		s.logger.Error("deduplication failed", "events", processed, "error", engineErr)
		stats := failedStats(engineErr)
		stats.EventsProcessed = processed
		return stats, engineErr
	case err != nil && !computed:
		return failedStats(err), fmt.Errorf("read pool: %w", err)
	case err != nil:
		stats := result.Stats
		stats.Error = err.Error()
		s.logger.Error("failed to replace pool", "unique", len(result.Unique), "error", err)
		return stats, fmt.Errorf("replace pool: %w", err)
	}

	s.logger.Info("deduplication complete",
		"strategy", s.engine.Strategy(),
		"processed", result.Stats.EventsProcessed,
		"groups", result.Stats.DuplicateGroupsFound,
		"removed", result.Stats.TotalDuplicatesRemoved,
		"unique", result.Stats.UniqueEventsRemaining,
		"duration", time.Since(start),
	)
	return result.Stats, nil
}

func failedStats(err error) models.DedupStats {
	return models.DedupStats{
		Success:           false,
		AvgQualityScore:   "0.0",
		DeduplicationRate: "0%",
		Error:             err.Error(),
	}
}
