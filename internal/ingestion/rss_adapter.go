package ingestion

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/STRATINT/eventfeed/internal/config"
	"github.com/STRATINT/eventfeed/internal/models"
)

const userAgent = "Mozilla/5.0 (compatible; eventfeed/1.0; +https://github.com/STRATINT/eventfeed)"

// maxFeedBytes caps how much of a response body is read.
const maxFeedBytes = 5 << 20

// RSSAdapter collects candidates from RSS 2.0 and Atom feeds.
type RSSAdapter struct {
	name     string
	source   models.SourceTag
	feeds    []config.FeedConfig
	client   *http.Client
	limiter  *OriginLimiter
	cacheTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	caches map[string]*FeedCache
}

// NewRSSAdapter creates an adapter over the configured feeds. limiter may be
// shared between adapters.
func NewRSSAdapter(cfg config.AdapterConfig, client *http.Client, limiter *OriginLimiter, logger *slog.Logger) *RSSAdapter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if limiter == nil {
		limiter = NewOriginLimiter(0, 1)
	}
	return &RSSAdapter{
		name:     cfg.Name,
		source:   models.SourceTag(cfg.Source),
		feeds:    cfg.Feeds,
		client:   client,
		limiter:  limiter,
		cacheTTL: cfg.CacheTTL,
		logger:   logger.With("adapter", cfg.Name),
		now:      time.Now,
		caches:   make(map[string]*FeedCache),
	}
}

// Name implements Adapter.
func (a *RSSAdapter) Name() string {
	return a.name
}

// RSS represents the RSS 2.0 feed structure.
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title       string    `xml:"title"`
		Description string    `xml:"description"`
		Items       []RSSItem `xml:"item"`
	} `xml:"channel"`
}

// RSSItem represents a single RSS 2.0 item.
type RSSItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	PubDate     string   `xml:"pubDate"`
	GUID        string   `xml:"guid"`
	Categories  []string `xml:"category"`
	Enclosure   struct {
		URL  string `xml:"url,attr"`
		Type string `xml:"type,attr"`
	} `xml:"enclosure"`
}

// AtomFeed represents the Atom feed structure.
type AtomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Entries []AtomEntry `xml:"entry"`
}

// AtomEntry represents a single Atom entry.
type AtomEntry struct {
	Title     string      `xml:"title"`
	Link      AtomLink    `xml:"link"`
	Summary   string      `xml:"summary"`
	Content   AtomContent `xml:"content"`
	Published string      `xml:"published"`
	Updated   string      `xml:"updated"`
	ID        string      `xml:"id"`
	Author    AtomAuthor  `xml:"author"`
}

// AtomLink represents an Atom link element.
type AtomLink struct {
	Href string `xml:"href,attr"`
}

// AtomContent represents Atom content.
type AtomContent struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

// AtomAuthor represents an Atom author.
type AtomAuthor struct {
	Name string `xml:"name"`
}

// Collect fetches every configured feed. A feed that fails is logged and
// skipped; an error is returned only when every feed failed.
func (a *RSSAdapter) Collect(ctx context.Context) ([]models.CandidateEvent, error) {
	var (
		candidates []models.CandidateEvent
		errs       []error
	)

	for _, feed := range a.feeds {
		items, err := a.collectFeed(ctx, feed)
		if err != nil {
			a.logger.Warn("failed to collect feed", "url", feed.URL, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", feed.URL, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		a.logger.Debug("collected feed", "url", feed.URL, "count", len(items))
		candidates = append(candidates, items...)
	}

	if len(errs) > 0 && len(errs) == len(a.feeds) {
		return nil, errors.Join(errs...)
	}
	if len(errs) > 0 && ctx.Err() != nil {
		return candidates, ctx.Err()
	}
	return candidates, nil
}

func (a *RSSAdapter) collectFeed(ctx context.Context, feed config.FeedConfig) ([]models.CandidateEvent, error) {
	body, err := a.feedBody(ctx, feed.URL)
	if err != nil {
		return nil, err
	}

	listings, err := parseFeed(body)
	if err != nil {
		return nil, err
	}

	now := a.now()
	out := make([]models.CandidateEvent, 0, len(listings))
	for _, l := range listings {
		if !isHTTPURL(l.URL) {
			a.logger.Debug("skipping item without a usable link", "title", l.Title)
			continue
		}
		if l.Organizer == "" {
			l.Organizer = feed.Organizer
		}
		if l.Location == "" {
			l.Location = feed.Location
		}
		l.Tags = append(l.Tags, feed.Tags...)
		out = append(out, Normalize(l, a.source, now))
	}
	return out, nil
}

// feedBody returns the feed payload, from the per-feed cache when it is
// still fresh.
func (a *RSSAdapter) feedBody(ctx context.Context, feedURL string) ([]byte, error) {
	a.mu.Lock()
	cache, ok := a.caches[feedURL]
	if !ok {
		cache = &FeedCache{TTL: a.cacheTTL}
		a.caches[feedURL] = cache
	}
	snapshot := *cache
	a.mu.Unlock()

	data, refreshed, err := RefreshIfStale(ctx, &snapshot, a.now(), func(ctx context.Context) ([]byte, error) {
		return a.fetch(ctx, feedURL)
	})
	if err != nil {
		return nil, err
	}
	if refreshed {
		a.mu.Lock()
		*cache = snapshot
		a.mu.Unlock()
	}
	return data, nil
}

func (a *RSSAdapter) fetch(ctx context.Context, feedURL string) ([]byte, error) {
	if err := a.limiter.Wait(ctx, feedURL); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}

// parseFeed decodes RSS 2.0 first and falls back to Atom.
func parseFeed(body []byte) ([]RawListing, error) {
	var rss RSS
	rssErr := xml.Unmarshal(body, &rss)
	if rssErr == nil && len(rss.Channel.Items) > 0 {
		listings := make([]RawListing, 0, len(rss.Channel.Items))
		for _, item := range rss.Channel.Items {
			link := strings.TrimSpace(item.Link)
			if link == "" {
				link = strings.TrimSpace(item.GUID)
			}
			image := ""
			if strings.HasPrefix(item.Enclosure.Type, "image/") {
				image = item.Enclosure.URL
			}
			listings = append(listings, RawListing{
				Title:       item.Title,
				Description: item.Description,
				Date:        item.PubDate,
				Published:   item.PubDate,
				URL:         link,
				Image:       image,
				Tags:        item.Categories,
			})
		}
		return listings, nil
	}

	var atom AtomFeed
	atomErr := xml.Unmarshal(body, &atom)
	if atomErr == nil && len(atom.Entries) > 0 {
		listings := make([]RawListing, 0, len(atom.Entries))
		for _, entry := range atom.Entries {
			description := entry.Summary
			if description == "" {
				description = entry.Content.Value
			}
			published := entry.Published
			if published == "" {
				published = entry.Updated
			}
			listings = append(listings, RawListing{
				Title:       entry.Title,
				Description: description,
				Date:        published,
				Published:   published,
				URL:         entry.Link.Href,
				Organizer:   entry.Author.Name,
			})
		}
		return listings, nil
	}

	if rssErr != nil && atomErr != nil {
		return nil, fmt.Errorf("failed to parse as RSS (error: %v) or Atom (error: %v)", rssErr, atomErr)
	}
	return nil, errors.New("feed parsed successfully but contains no items")
}
