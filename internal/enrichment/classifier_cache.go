package enrichment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/STRATINT/eventfeed/internal/models"
)

// CachedClassifier memoizes classifier verdicts per listing so repeated runs
// over the same feeds do not pay for the same question twice.
type CachedClassifier struct {
	next  Classifier
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	cache map[string]verdictEntry
}

type verdictEntry struct {
	likely    bool
	timestamp time.Time
}

// NewCachedClassifier wraps next with a TTL cache.
func NewCachedClassifier(next Classifier, ttl time.Duration) *CachedClassifier {
	return &CachedClassifier{
		next:  next,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]verdictEntry),
	}
}

// IsEvent returns a cached verdict or asks the wrapped classifier. Errors are
// never cached.
func (c *CachedClassifier) IsEvent(ctx context.Context, e models.CandidateEvent) (bool, error) {
	key := verdictKey(e)

	c.mu.RLock()
	entry, exists := c.cache[key]
	c.mu.RUnlock()

	if exists && c.now().Sub(entry.timestamp) < c.ttl {
		return entry.likely, nil
	}

	likely, err := c.next.IsEvent(ctx, e)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	c.cache[key] = verdictEntry{likely: likely, timestamp: c.now()}
	c.mu.Unlock()

	return likely, nil
}

func verdictKey(e models.CandidateEvent) string {
	sum := sha256.Sum256([]byte(strings.ToLower(e.SourceURL + "\x00" + e.Title + "\x00" + e.Description)))
	return hex.EncodeToString(sum[:])
}
