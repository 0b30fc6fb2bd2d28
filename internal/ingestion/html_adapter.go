package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/STRATINT/eventfeed/internal/config"
	"github.com/STRATINT/eventfeed/internal/models"
)

// DefaultMaxItems bounds how many listings are taken from one page.
const DefaultMaxItems = 20

// HTMLAdapter scrapes event listing pages with CSS selectors. A selector may
// end in "@attr" to read an attribute instead of the element text.
type HTMLAdapter struct {
	name    string
	source  models.SourceTag
	pages   []config.PageConfig
	client  *http.Client
	limiter *OriginLimiter
	logger  *slog.Logger
	now     func() time.Time
}

// NewHTMLAdapter creates a scraping adapter over the configured pages.
func NewHTMLAdapter(cfg config.AdapterConfig, client *http.Client, limiter *OriginLimiter, logger *slog.Logger) *HTMLAdapter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if limiter == nil {
		limiter = NewOriginLimiter(0, 1)
	}
	return &HTMLAdapter{
		name:    cfg.Name,
		source:  models.SourceTag(cfg.Source),
		pages:   cfg.Pages,
		client:  client,
		limiter: limiter,
		logger:  logger.With("adapter", cfg.Name),
		now:     time.Now,
	}
}

// Name implements Adapter.
func (a *HTMLAdapter) Name() string {
	return a.name
}

// Collect scrapes every configured page. A page that fails is logged and
// skipped; an error is returned only when every page failed.
func (a *HTMLAdapter) Collect(ctx context.Context) ([]models.CandidateEvent, error) {
	var (
		candidates []models.CandidateEvent
		errs       []error
	)

	for _, page := range a.pages {
		doc, err := a.fetchDocument(ctx, page.URL)
		if err != nil {
			a.logger.Warn("failed to scrape page", "url", page.URL, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", page.URL, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		listings := extractListings(doc, page)
		now := a.now()
		for _, l := range listings {
			candidates = append(candidates, Normalize(l, a.source, now))
		}
		a.logger.Debug("scraped page", "url", page.URL, "count", len(listings))
	}

	if len(errs) > 0 && len(errs) == len(a.pages) {
		return nil, errors.Join(errs...)
	}
	if len(errs) > 0 && ctx.Err() != nil {
		return candidates, ctx.Err()
	}
	return candidates, nil
}

func (a *HTMLAdapter) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := a.limiter.Wait(ctx, pageURL); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func extractListings(doc *goquery.Document, page config.PageConfig) []RawListing {
	limit := page.MaxItems
	if limit <= 0 {
		limit = DefaultMaxItems
	}

	var listings []RawListing
	doc.Find(page.Item).EachWithBreak(func(i int, item *goquery.Selection) bool {
		title := selectValue(item, page.Title)
		if title == "" {
			return true
		}

		linkSel := page.Link
		if linkSel == "" {
			linkSel = "a@href"
		}
		link := resolveURL(page.URL, selectValue(item, linkSel))
		if link == "" {
			link = page.URL
		}

		image := ""
		if page.Image != "" {
			image = resolveURL(page.URL, selectValue(item, page.Image))
		}

		listings = append(listings, RawListing{
			Title:       title,
			Description: selectValue(item, page.Description),
			Date:        selectValue(item, page.Date),
			Location:    selectValue(item, page.Location),
			URL:         link,
			Organizer:   page.Organizer,
			Price:       selectValue(item, page.Price),
			Image:       image,
			Tags:        append([]string(nil), page.Tags...),
		})
		return len(listings) < limit
	})
	return listings
}

// selectValue applies a "selector" or "selector@attr" expression to item. An
// empty selector yields an empty string; "@attr" alone reads item itself.
func selectValue(item *goquery.Selection, expr string) string {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return ""
	}

	selector, attr, hasAttr := strings.Cut(expr, "@")
	target := item
	if selector = strings.TrimSpace(selector); selector != "" {
		target = item.Find(selector).First()
	}
	if target.Length() == 0 {
		return ""
	}

	if hasAttr {
		v, _ := target.Attr(strings.TrimSpace(attr))
		return strings.TrimSpace(v)
	}
	return collapseSpace(target.Text())
}
