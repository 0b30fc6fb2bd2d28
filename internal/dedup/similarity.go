package dedup

import (
	"math"
	"strings"
	"time"

	"github.com/STRATINT/eventfeed/internal/models"
	"github.com/xrash/smetrics"
)

// Weights of each field in the pairwise similarity. They sum to 1.
const (
	TitleWeight       = 0.35
	DescriptionWeight = 0.20
	DateWeight        = 0.25
	LocationWeight    = 0.15
	OrganizerWeight   = 0.05
)

// knownLocalities are place names that make two otherwise different venue
// strings count as the same area.
var knownLocalities = []string{
	"london", "manchester", "birmingham", "bristol", "leeds",
	"brighton", "glasgow", "edinburgh", "liverpool",
}

// Similarity returns the weighted similarity of two candidates in [0, 1].
func Similarity(a, b models.CandidateEvent) float64 {
	score := TitleWeight*StringSimilarity(a.Title, b.Title) +
		DescriptionWeight*StringSimilarity(realValue(a.Description), realValue(b.Description)) +
		DateWeight*DateSimilarity(a.EventDate, b.EventDate) +
		LocationWeight*LocationSimilarity(a.Location, b.Location) +
		OrganizerWeight*StringSimilarity(a.OrganizerName, b.OrganizerName)
	return math.Min(1, score)
}

// StringSimilarity is the normalized edit distance similarity of a and b after
// lowercasing and trimming. Empty input on either side scores 0.
func StringSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	distance := smetrics.WagnerFischer(a, b, 1, 1, 1)
	return float64(maxLen-distance) / float64(maxLen)
}

// DateSimilarity compares two event dates by calendar day in UTC.
func DateSimilarity(a, b *time.Time) float64 {
	if a == nil || b == nil || a.IsZero() || b.IsZero() {
		return 0
	}

	dayA := truncateDay(*a)
	dayB := truncateDay(*b)
	if dayA.Equal(dayB) {
		return 1
	}

	diff := a.Sub(*b)
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff <= 24*time.Hour:
		return 0.8
	case diff <= 7*24*time.Hour:
		return 0.3
	default:
		return 0
	}
}

// LocationSimilarity compares two venue strings. Placeholders count as empty.
func LocationSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(realValue(a)))
	b = strings.ToLower(strings.TrimSpace(realValue(b)))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8
	}
	for _, locality := range knownLocalities {
		if strings.Contains(a, locality) && strings.Contains(b, locality) {
			return 0.6
		}
	}
	return StringSimilarity(a, b)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func realValue(v string) string {
	if models.IsPlaceholder(v) {
		return ""
	}
	return v
}
