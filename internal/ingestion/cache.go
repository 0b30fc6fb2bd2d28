package ingestion

import (
	"context"
	"time"
)

// FeedCache is an explicit cached payload with its refresh time. Callers own
// the value and pass it to RefreshIfStale.
type FeedCache struct {
	Data          []byte
	LastRefreshed time.Time
	TTL           time.Duration
}

// Stale reports whether the cache must be refreshed at now. An empty cache
// or a zero TTL is always stale.
func (c *FeedCache) Stale(now time.Time) bool {
	if c.Data == nil || c.TTL <= 0 {
		return true
	}
	return now.Sub(c.LastRefreshed) >= c.TTL
}

// RefreshIfStale returns the cached data, calling fetch first when the cache
// is stale. On fetch failure the cache is left as it was. The boolean reports
// whether fetch was called successfully.
func RefreshIfStale(ctx context.Context, cache *FeedCache, now time.Time, fetch func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	if !cache.Stale(now) {
		return cache.Data, false, nil
	}

	data, err := fetch(ctx)
	if err != nil {
		return nil, false, err
	}
	cache.Data = data
	cache.LastRefreshed = now
	return data, true, nil
}
