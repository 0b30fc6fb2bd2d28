package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFeedCache_Stale(t *testing.T) {
	now := time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		cache FeedCache
		want  bool
	}{
		{"empty", FeedCache{TTL: time.Hour}, true},
		{"zero ttl", FeedCache{Data: []byte("x"), LastRefreshed: now}, true},
		{"fresh", FeedCache{Data: []byte("x"), LastRefreshed: now.Add(-30 * time.Minute), TTL: time.Hour}, false},
		{"expired", FeedCache{Data: []byte("x"), LastRefreshed: now.Add(-time.Hour), TTL: time.Hour}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cache.Stale(now); got != tt.want {
				t.Errorf("Stale() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRefreshIfStale(t *testing.T) {
	now := time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)
	cache := &FeedCache{TTL: time.Hour}
	calls := 0
	fetch := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("payload"), nil
	}

	data, refreshed, err := RefreshIfStale(context.Background(), cache, now, fetch)
	if err != nil || !refreshed || string(data) != "payload" {
		t.Fatalf("first refresh = %q, %v, %v", data, refreshed, err)
	}
	if !cache.LastRefreshed.Equal(now) {
		t.Errorf("LastRefreshed = %v", cache.LastRefreshed)
	}

	data, refreshed, err = RefreshIfStale(context.Background(), cache, now.Add(time.Minute), fetch)
	if err != nil || refreshed || string(data) != "payload" || calls != 1 {
		t.Errorf("cached read = %q, %v, %v (calls %d)", data, refreshed, err, calls)
	}
}

func TestRefreshIfStale_KeepsCacheOnError(t *testing.T) {
	then := time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)
	cache := &FeedCache{Data: []byte("old"), LastRefreshed: then, TTL: time.Minute}

	_, refreshed, err := RefreshIfStale(context.Background(), cache, then.Add(time.Hour), func(ctx context.Context) ([]byte, error) {
		return nil, errors.New("boom")
	})
	if err == nil || refreshed {
		t.Fatalf("RefreshIfStale() = %v, %v, want error", refreshed, err)
	}
	if string(cache.Data) != "old" || !cache.LastRefreshed.Equal(then) {
		t.Errorf("cache modified on failure: %+v", cache)
	}
}
