package ingestion

import (
	"net/url"
	"strings"
	"time"

	"github.com/STRATINT/eventfeed/internal/models"
	"github.com/araddon/dateparse"
	"github.com/google/uuid"
)

// RawListing is what an adapter extracts from its origin before
// normalization. All fields are free text.
type RawListing struct {
	Title       string
	Description string
	Date        string
	Published   string
	Location    string
	URL         string
	Organizer   string
	Price       string
	Image       string
	Tags        []string
}

// Normalize turns a raw listing into a candidate. Missing optional fields get
// the placeholder values, dates are parsed best effort and a fresh id is
// assigned. The status is left pending for the router to decide.
func Normalize(raw RawListing, source models.SourceTag, now time.Time) models.CandidateEvent {
	c := models.CandidateEvent{
		ID:            uuid.NewString(),
		Title:         collapseSpace(cleanText(raw.Title)),
		Description:   strings.TrimSpace(cleanText(raw.Description)),
		EventDate:     ParseDate(raw.Date),
		PublishedAt:   ParseDate(raw.Published),
		Location:      collapseSpace(raw.Location),
		Source:        source,
		SourceURL:     strings.TrimSpace(raw.URL),
		OrganizerName: collapseSpace(raw.Organizer),
		Tags:          models.NormalizeTags(raw.Tags),
		Price:         collapseSpace(raw.Price),
		ImageURL:      strings.TrimSpace(raw.Image),
		ScrapedDate:   now.UTC(),
		Status:        models.StatusPending,
		UpdatedAt:     now.UTC(),
	}

	if models.IsPlaceholder(c.Description) {
		c.Description = models.PlaceholderDescription
	}
	if models.IsPlaceholder(c.Location) {
		c.Location = models.PlaceholderLocation
	}
	if models.IsPlaceholder(c.Price) {
		c.Price = models.PlaceholderPrice
	}
	if !isHTTPURL(c.ImageURL) {
		c.ImageURL = ""
	}
	return c
}

// ParseDate parses free-form date text in UTC. It returns nil when the text
// is empty or unparseable.
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil || t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

// resolveURL makes ref absolute against base. Unparseable input is returned
// unchanged.
func resolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cleanText removes HTML tags and extra whitespace.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "<p>", "\n")
	text = strings.ReplaceAll(text, "</p>", "\n")
	text = strings.ReplaceAll(text, "<br>", "\n")
	text = strings.ReplaceAll(text, "<br/>", "\n")
	text = strings.ReplaceAll(text, "<br />", "\n")

	for {
		start := strings.Index(text, "<")
		if start == -1 {
			break
		}
		end := strings.Index(text[start:], ">")
		if end == -1 {
			break
		}
		text = text[:start] + text[start+end+1:]
	}

	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(text)
}
