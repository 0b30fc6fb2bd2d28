package models

import (
	"strings"
	"time"
)

// CandidateEvent is a single event listing collected from an external source,
// scored and routed before it reaches the moderation queue.
type CandidateEvent struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	EventDate       *time.Time `json:"event_date"`
	Location        string     `json:"location"`
	Source          SourceTag  `json:"source"`
	SourceURL       string     `json:"source_url"`
	OrganizerName   string     `json:"organizer_name"`
	Tags            []string   `json:"tags"`
	Price           string     `json:"price"`
	ImageURL        string     `json:"image_url"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	ScrapedDate     time.Time  `json:"scraped_date"`
	RelevanceScore  float64    `json:"relevance_score"`
	QualityScore    float64    `json:"quality_score"`
	Status          Status     `json:"status"`
	EventLikely     bool       `json:"is_event_likely"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Status is the moderation state of a candidate.
type Status string

const (
	StatusPending  Status = "pending"  // Awaiting a moderator
	StatusApproved Status = "approved" // Visible in the public feed
	StatusArchived Status = "archived" // Rejected or retired
)

// Valid reports whether s is one of the known moderation states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusArchived:
		return true
	default:
		return false
	}
}

// Placeholder values adapters write when a source has no real value.
const (
	PlaceholderPrice       = "See event page"
	PlaceholderDescription = "No description available"
	PlaceholderLocation    = "Location TBD"
)

var placeholders = map[string]struct{}{
	"see event page":           {},
	"no description available": {},
	"location tbd":             {},
	"location tba":             {},
	"tbd":                      {},
	"tba":                      {},
}

// IsPlaceholder reports whether value is empty or one of the known filler strings.
func IsPlaceholder(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return true
	}
	_, ok := placeholders[v]
	return ok
}

// Text returns the free text used for relevance scoring.
func (e CandidateEvent) Text() string {
	parts := make([]string, 0, 3+len(e.Tags))
	if e.Title != "" {
		parts = append(parts, e.Title)
	}
	if !IsPlaceholder(e.Description) {
		parts = append(parts, e.Description)
	}
	if e.OrganizerName != "" {
		parts = append(parts, e.OrganizerName)
	}
	parts = append(parts, e.Tags...)
	return strings.Join(parts, " ")
}

// Clone returns a deep copy so callers can mutate the result freely.
func (e CandidateEvent) Clone() CandidateEvent {
	out := e
	if e.EventDate != nil {
		d := *e.EventDate
		out.EventDate = &d
	}
	if e.PublishedAt != nil {
		p := *e.PublishedAt
		out.PublishedAt = &p
	}
	if e.Tags != nil {
		out.Tags = append([]string(nil), e.Tags...)
	}
	return out
}

// NormalizeTags trims tags and removes empty and case-insensitive duplicates,
// keeping the first spelling seen.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		t := strings.TrimSpace(tag)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

// UnionTags merges b into a with set semantics.
func UnionTags(a, b []string) []string {
	merged := make([]string, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	return NormalizeTags(merged)
}
