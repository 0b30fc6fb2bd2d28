package enrichment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/STRATINT/eventfeed/internal/models"
)

func TestCachedClassifier(t *testing.T) {
	stub := &stubClassifier{likely: true}
	cached := NewCachedClassifier(stub, time.Hour)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cached.now = func() time.Time { return now }

	e := models.CandidateEvent{Title: "Open mic", SourceURL: "https://example.org/1"}

	for i := 0; i < 3; i++ {
		likely, err := cached.IsEvent(context.Background(), e)
		if err != nil || !likely {
			t.Fatalf("call %d: got %v, %v", i, likely, err)
		}
	}
	if stub.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", stub.calls)
	}

	now = now.Add(2 * time.Hour)
	if _, err := cached.IsEvent(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.calls != 2 {
		t.Errorf("expected refresh after ttl, got %d calls", stub.calls)
	}
}

func TestCachedClassifierDoesNotCacheErrors(t *testing.T) {
	stub := &stubClassifier{err: errors.New("rate limited")}
	cached := NewCachedClassifier(stub, time.Hour)
	e := models.CandidateEvent{Title: "Open mic"}

	for i := 0; i < 2; i++ {
		if _, err := cached.IsEvent(context.Background(), e); err == nil {
			t.Fatal("expected error")
		}
	}
	if stub.calls != 2 {
		t.Errorf("expected errors to bypass cache, got %d calls", stub.calls)
	}
}
