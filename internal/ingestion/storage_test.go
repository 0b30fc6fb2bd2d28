package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/STRATINT/eventfeed/internal/models"
)

func storedCandidate(id string, status models.Status, source models.SourceTag, scraped time.Time) models.CandidateEvent {
	return models.CandidateEvent{
		ID:          id,
		Title:       "Event " + id,
		Status:      status,
		Source:      source,
		ScrapedDate: scraped,
		Tags:        []string{"community"},
	}
}

func TestMemoryCandidateStore_CRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCandidateStore()
	base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

	err := store.AppendCandidates(ctx, []models.CandidateEvent{
		storedCandidate("a", models.StatusPending, models.SourceEventbrite, base),
		storedCandidate("b", models.StatusApproved, models.SourceRSSFeed, base.Add(time.Hour)),
	})
	if err != nil {
		t.Fatalf("AppendCandidates() error = %v", err)
	}

	if err := store.AppendCandidates(ctx, []models.CandidateEvent{storedCandidate("a", models.StatusPending, "", base)}); err == nil {
		t.Error("duplicate id accepted")
	}
	if err := store.AppendCandidates(ctx, []models.CandidateEvent{{Title: "no id"}}); err == nil {
		t.Error("empty id accepted")
	}

	got, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	got.Tags[0] = "mutated"
	again, _ := store.Get(ctx, "a")
	if again.Tags[0] != "community" {
		t.Error("Get() returned shared tag slice")
	}

	got.Title = "Renamed"
	if err := store.Update(ctx, got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated, _ := store.Get(ctx, "a"); updated.Title != "Renamed" {
		t.Errorf("title after update = %q", updated.Title)
	}

	if err := store.Delete(ctx, "b"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "b"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrNotFound", err)
	}
	if err := store.Update(ctx, models.CandidateEvent{ID: "missing"}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryCandidateStore_List(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCandidateStore()
	base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	store.AppendCandidates(ctx, []models.CandidateEvent{
		storedCandidate("old", models.StatusPending, models.SourceEventbrite, base),
		storedCandidate("mid", models.StatusApproved, models.SourceEventbrite, base.Add(time.Hour)),
		storedCandidate("new", models.StatusPending, models.SourceRSSFeed, base.Add(2*time.Hour)),
	})

	tests := []struct {
		name   string
		filter CandidateFilter
		want   []string
	}{
		{"all newest first", CandidateFilter{}, []string{"new", "mid", "old"}},
		{"by status", CandidateFilter{Status: models.StatusPending}, []string{"new", "old"}},
		{"by source", CandidateFilter{Source: models.SourceEventbrite}, []string{"mid", "old"}},
		{"paged", CandidateFilter{Limit: 1, Offset: 1}, []string{"mid"}},
		{"offset past end", CandidateFilter{Offset: 10}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("List() returned %d, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("List()[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestMemoryCandidateStore_PoolAndRunLogs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCandidateStore()
	base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	store.AppendCandidates(ctx, []models.CandidateEvent{
		storedCandidate("a", models.StatusPending, "", base),
		storedCandidate("b", models.StatusPending, "", base),
	})

	if err := store.ReplacePool(ctx, []models.CandidateEvent{storedCandidate("c", models.StatusApproved, "", base)}); err != nil {
		t.Fatalf("ReplacePool() error = %v", err)
	}
	pool, _ := store.ListPool(ctx)
	if len(pool) != 1 || pool[0].ID != "c" {
		t.Errorf("pool = %+v", pool)
	}

	if _, err := store.LatestRunLog(ctx, "rss"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("LatestRunLog() on empty store error = %v", err)
	}
	store.AppendRunLog(ctx, models.RunLog{ID: "1", Source: "rss", Status: models.RunStatusFailed})
	store.AppendRunLog(ctx, models.RunLog{ID: "2", Source: "html", Status: models.RunStatusSuccess})
	store.AppendRunLog(ctx, models.RunLog{ID: "3", Source: "rss", Status: models.RunStatusSuccess})

	latest, err := store.LatestRunLog(ctx, "rss")
	if err != nil || latest.ID != "3" {
		t.Errorf("LatestRunLog() = %+v, %v", latest, err)
	}
	if len(store.RunLogs()) != 3 {
		t.Errorf("RunLogs() = %d rows", len(store.RunLogs()))
	}
}

func TestMemoryCandidateStore_UpdatePoolHoldsWriters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCandidateStore()
	base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	store.AppendCandidates(ctx, []models.CandidateEvent{
		storedCandidate("a", models.StatusPending, "", base),
		storedCandidate("b", models.StatusPending, "", base),
	})

	inside := make(chan struct{})
	appended := make(chan error, 1)
	go func() {
		<-inside
		appended <- store.AppendCandidates(ctx, []models.CandidateEvent{storedCandidate("late", models.StatusPending, "", base)})
	}()

	err := store.UpdatePool(ctx, func(pool []models.CandidateEvent) ([]models.CandidateEvent, error) {
		close(inside)
		time.Sleep(20 * time.Millisecond)
		if len(pool) != 2 {
			t.Errorf("fn saw %d candidates, want 2", len(pool))
		}
		return pool[:1], nil
	})
	if err != nil {
		t.Fatalf("UpdatePool() error = %v", err)
	}
	if err := <-appended; err != nil {
		t.Fatalf("AppendCandidates() error = %v", err)
	}

	pool, _ := store.ListPool(ctx)
	if len(pool) != 2 || pool[0].ID != "a" || pool[1].ID != "late" {
		t.Errorf("pool = %+v, want a then late", pool)
	}
}

func TestMemoryCandidateStore_UpdatePoolErrorKeepsPool(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCandidateStore()
	base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	store.AppendCandidates(ctx, []models.CandidateEvent{storedCandidate("a", models.StatusPending, "", base)})

	boom := errors.New("cluster failed")
	err := store.UpdatePool(ctx, func(pool []models.CandidateEvent) ([]models.CandidateEvent, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("UpdatePool() error = %v, want %v", err, boom)
	}
	if pool, _ := store.ListPool(ctx); len(pool) != 1 {
		t.Errorf("pool size = %d, want untouched", len(pool))
	}
}
