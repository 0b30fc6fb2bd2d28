package dedup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/STRATINT/eventfeed/internal/ingestion"
	"github.com/STRATINT/eventfeed/internal/models"
)

type fakePoolStore struct {
	pool       []models.CandidateEvent
	replaced   []models.CandidateEvent
	listErr    error
	replaceErr error
	replaces   int
}

func (f *fakePoolStore) UpdatePool(ctx context.Context, fn func([]models.CandidateEvent) ([]models.CandidateEvent, error)) error {
	if f.listErr != nil {
		return f.listErr
	}
	next, err := fn(f.pool)
	if err != nil {
		return err
	}
	f.replaces++
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replaced = next
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServiceRun_ReplacesPool(t *testing.T) {
	night, evening := poetryPair()
	store := &fakePoolStore{pool: []models.CandidateEvent{night, evening}}
	svc := NewService(NewEngine(Options{}, nil, nil), store, discardLogger())

	stats, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !stats.Success || stats.UniqueEventsRemaining != 1 || stats.TotalDuplicatesRemoved != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(store.replaced) != 1 || store.replaced[0].ID != "night" {
		t.Errorf("replaced pool = %+v", store.replaced)
	}
}

func TestServiceRun_StatsKeepRemovedIDs(t *testing.T) {
	night, evening := poetryPair()
	store := &fakePoolStore{pool: []models.CandidateEvent{night, evening}}
	svc := NewService(NewEngine(Options{}, nil, nil), store, discardLogger())

	stats, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(stats.DuplicateGroups) != 1 {
		t.Fatalf("DuplicateGroups = %+v, want one group", stats.DuplicateGroups)
	}
	group := stats.DuplicateGroups[0]
	if group.PrimaryID != "night" || len(group.DuplicateIDs) != 1 || group.DuplicateIDs[0] != "evening" {
		t.Errorf("group = %+v", group)
	}
	if _, ok := stats.QualityScores["evening"]; !ok || len(stats.QualityScores) != 2 {
		t.Errorf("QualityScores = %v, want a score for every input candidate", stats.QualityScores)
	}
}

func TestServiceRun_EmptyPool(t *testing.T) {
	store := &fakePoolStore{}
	svc := NewService(NewEngine(Options{}, nil, nil), store, discardLogger())

	stats, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(store.replaced) != 0 {
		t.Errorf("replaced pool = %+v, want empty", store.replaced)
	}
	if stats.EventsProcessed != 0 || !stats.Success || len(stats.DuplicateGroups) != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestServiceRun_ListError(t *testing.T) {
	store := &fakePoolStore{listErr: errors.New("connection refused")}
	svc := NewService(NewEngine(Options{}, nil, nil), store, discardLogger())

	stats, err := svc.Run(context.Background())
	if err == nil {
		t.Fatal("Run() error = nil, want error")
	}
	if stats.Success || stats.Error == "" {
		t.Errorf("stats = %+v, want failure", stats)
	}
}

func TestServiceRun_EngineFailureLeavesPool(t *testing.T) {
	night, evening := poetryPair()
	store := &fakePoolStore{pool: []models.CandidateEvent{night, evening}}
	engine := NewEngine(Options{}, nil, nil)
	engine.similarity = func(a, b models.CandidateEvent) float64 { panic("corrupt candidate") }
	svc := NewService(engine, store, discardLogger())

	stats, err := svc.Run(context.Background())
	if err == nil {
		t.Fatal("Run() error = nil, want error")
	}
	if store.replaces != 0 {
		t.Errorf("pool written %d times, want 0", store.replaces)
	}
	if stats.Success || stats.EventsProcessed != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestServiceRun_ReplaceError(t *testing.T) {
	night, evening := poetryPair()
	store := &fakePoolStore{
		pool:       []models.CandidateEvent{night, evening},
		replaceErr: errors.New("disk full"),
	}
	svc := NewService(NewEngine(Options{}, nil, nil), store, discardLogger())

	stats, err := svc.Run(context.Background())
	if err == nil {
		t.Fatal("Run() error = nil, want error")
	}
	if stats.UniqueEventsRemaining != 1 || stats.Error != "disk full" {
		t.Errorf("stats = %+v, want computed stats with the error attached", stats)
	}
}

// A candidate appended while clustering is in progress must survive the pool
// rewrite.
func TestServiceRun_KeepsCandidatesAppendedDuringRun(t *testing.T) {
	ctx := context.Background()
	store := ingestion.NewMemoryCandidateStore()
	night, evening := poetryPair()
	if err := store.AppendCandidates(ctx, []models.CandidateEvent{night, evening}); err != nil {
		t.Fatalf("AppendCandidates() error = %v", err)
	}

	late := models.CandidateEvent{
		ID:        "late",
		Title:     "Trans Swim Social",
		Location:  "London Fields Lido",
		Source:    models.SourceCommunitySubmission,
		SourceURL: "https://example.org/events/swim",
		Status:    models.StatusPending,
	}

	var (
		once      sync.Once
		wg        sync.WaitGroup
		appendErr error
	)
	engine := NewEngine(Options{}, nil, nil)
	engine.similarity = func(a, b models.CandidateEvent) float64 {
		once.Do(func() {
			started := make(chan struct{})
			wg.Add(1)
			go func() {
				defer wg.Done()
				close(started)
				appendErr = store.AppendCandidates(ctx, []models.CandidateEvent{late})
			}()
			<-started
			// give the writer time to reach the store while the pool is held
			time.Sleep(20 * time.Millisecond)
		})
		return Similarity(a, b)
	}
	svc := NewService(engine, store, discardLogger())

	stats, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	wg.Wait()
	if appendErr != nil {
		t.Fatalf("concurrent AppendCandidates() error = %v", appendErr)
	}
	if stats.TotalDuplicatesRemoved != 1 {
		t.Errorf("stats = %+v", stats)
	}

	if _, err := store.Get(ctx, "late"); err != nil {
		t.Errorf("Get(late) error = %v, want the concurrent append to survive dedup", err)
	}
	if _, err := store.Get(ctx, "evening"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Get(evening) error = %v, want the duplicate removed", err)
	}
}
