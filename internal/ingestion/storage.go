package ingestion

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/STRATINT/eventfeed/internal/models"
)

// CandidateFilter narrows a candidate listing.
type CandidateFilter struct {
	Status models.Status
	Source models.SourceTag
	Limit  int
	Offset int
}

// PoolUpdateFunc receives the current pool and returns the pool to store in
// its place. It must not call back into the store.
type PoolUpdateFunc = func(pool []models.CandidateEvent) ([]models.CandidateEvent, error)

// CandidateStore defines the interface for storing and retrieving candidates
// and run logs.
type CandidateStore interface {
	// AppendCandidates adds new candidates to the pool.
	AppendCandidates(ctx context.Context, events []models.CandidateEvent) error

	// ListPool returns every candidate in insertion order.
	ListPool(ctx context.Context) ([]models.CandidateEvent, error)

	// ReplacePool swaps the whole pool for events.
	ReplacePool(ctx context.Context, events []models.CandidateEvent) error

	// UpdatePool runs fn on the pool and stores its result with no writes
	// landing in between. When fn fails the pool is left as it was.
	UpdatePool(ctx context.Context, fn PoolUpdateFunc) error

	// Get retrieves a candidate by id or returns models.ErrNotFound.
	Get(ctx context.Context, id string) (models.CandidateEvent, error)

	// Update overwrites an existing candidate.
	Update(ctx context.Context, event models.CandidateEvent) error

	// Delete removes a candidate by id.
	Delete(ctx context.Context, id string) error

	// List returns candidates matching filter, newest first.
	List(ctx context.Context, filter CandidateFilter) ([]models.CandidateEvent, error)

	// AppendRunLog records one adapter or run outcome.
	AppendRunLog(ctx context.Context, log models.RunLog) error

	// LatestRunLog returns the most recent row for source or models.ErrNotFound.
	LatestRunLog(ctx context.Context, source string) (models.RunLog, error)
}

// MemoryCandidateStore implements an in-memory candidate store for testing
// and development.
type MemoryCandidateStore struct {
	mu     sync.RWMutex
	events []models.CandidateEvent
	logs   []models.RunLog
}

// NewMemoryCandidateStore creates an empty in-memory store.
func NewMemoryCandidateStore() *MemoryCandidateStore {
	return &MemoryCandidateStore{}
}

// AppendCandidates adds candidates. Ids must be unique across the pool.
func (s *MemoryCandidateStore) AppendCandidates(ctx context.Context, events []models.CandidateEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if e.ID == "" {
			return fmt.Errorf("candidate %q has no id", e.Title)
		}
		if s.indexOf(e.ID) >= 0 {
			return fmt.Errorf("candidate %s already exists", e.ID)
		}
	}
	for _, e := range events {
		s.events = append(s.events, e.Clone())
	}
	return nil
}

// ListPool returns a copy of the pool.
func (s *MemoryCandidateStore) ListPool(ctx context.Context) ([]models.CandidateEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.events), nil
}

// ReplacePool swaps the pool for a copy of events.
func (s *MemoryCandidateStore) ReplacePool(ctx context.Context, events []models.CandidateEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = cloneAll(events)
	return nil
}

// UpdatePool holds the write lock across the read, fn and the swap.
func (s *MemoryCandidateStore) UpdatePool(ctx context.Context, fn PoolUpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(cloneAll(s.events))
	if err != nil {
		return err
	}
	s.events = cloneAll(next)
	return nil
}

// Get retrieves a candidate by id.
func (s *MemoryCandidateStore) Get(ctx context.Context, id string) (models.CandidateEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.CandidateEvent{}, fmt.Errorf("candidate %s: %w", id, models.ErrNotFound)
	}
	return s.events[i].Clone(), nil
}

// Update overwrites an existing candidate.
func (s *MemoryCandidateStore) Update(ctx context.Context, event models.CandidateEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(event.ID)
	if i < 0 {
		return fmt.Errorf("candidate %s: %w", event.ID, models.ErrNotFound)
	}
	s.events[i] = event.Clone()
	return nil
}

// Delete removes a candidate by id.
func (s *MemoryCandidateStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("candidate %s: %w", id, models.ErrNotFound)
	}
	s.events = append(s.events[:i], s.events[i+1:]...)
	return nil
}

// List returns candidates matching filter ordered by scraped date, newest
// first.
func (s *MemoryCandidateStore) List(ctx context.Context, filter CandidateFilter) ([]models.CandidateEvent, error) {
	s.mu.RLock()
	matched := make([]models.CandidateEvent, 0, len(s.events))
	for _, e := range s.events {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.Source != "" && e.Source != filter.Source {
			continue
		}
		matched = append(matched, e.Clone())
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].ScrapedDate.After(matched[j].ScrapedDate)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []models.CandidateEvent{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// AppendRunLog records a run log row.
func (s *MemoryCandidateStore) AppendRunLog(ctx context.Context, log models.RunLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, log)
	return nil
}

// LatestRunLog returns the most recently appended row for source.
func (s *MemoryCandidateStore) LatestRunLog(ctx context.Context, source string) (models.RunLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].Source == source {
			return s.logs[i], nil
		}
	}
	return models.RunLog{}, fmt.Errorf("run log for %s: %w", source, models.ErrNotFound)
}

// RunLogs returns every recorded row in order.
func (s *MemoryCandidateStore) RunLogs() []models.RunLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.RunLog(nil), s.logs...)
}

func (s *MemoryCandidateStore) indexOf(id string) int {
	for i := range s.events {
		if s.events[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneAll(events []models.CandidateEvent) []models.CandidateEvent {
	out := make([]models.CandidateEvent, len(events))
	for i, e := range events {
		out[i] = e.Clone()
	}
	return out
}
