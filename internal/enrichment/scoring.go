package enrichment

import (
	"fmt"
	"math"
	"strings"

	"github.com/STRATINT/eventfeed/internal/models"
)

// MaxQualityScore is the upper bound of the quality scale.
const MaxQualityScore = 100.0

// QualityScorer rates how complete and trustworthy a candidate record is. It
// is used to pick the canonical member of a duplicate group.
type QualityScorer struct {
	sourceCredibility  map[models.SourceTag]float64
	defaultCredibility float64
}

// NewQualityScorer creates a quality scorer with default source credibility.
func NewQualityScorer() *QualityScorer {
	return &QualityScorer{
		sourceCredibility: map[models.SourceTag]float64{
			models.SourceEventbrite:  15,
			models.SourceOutsavvy:    15,
			models.SourceRSSFeed:     12,
			models.SourceWebScraping: 8,
		},
		defaultCredibility: 5,
	}
}

type scoreFactor struct {
	name  string
	score float64
}

// Score returns the quality of e in [0, 100].
func (s *QualityScorer) Score(e models.CandidateEvent) float64 {
	total := 0.0
	for _, f := range s.factors(e) {
		total += f.score
	}
	return math.Max(0, math.Min(MaxQualityScore, total))
}

// Explain returns a short human readable breakdown of the score.
func (s *QualityScorer) Explain(e models.CandidateEvent) string {
	parts := make([]string, 0, 11)
	for _, f := range s.factors(e) {
		if f.score > 0 {
			parts = append(parts, fmt.Sprintf("%s=%.1f", f.name, f.score))
		}
	}
	return fmt.Sprintf("quality %.1f (%s)", s.Score(e), strings.Join(parts, ", "))
}

func (s *QualityScorer) factors(e models.CandidateEvent) []scoreFactor {
	return []scoreFactor{
		{name: "title", score: ifThen(len(strings.TrimSpace(e.Title)) > 10, 20)},
		{name: "description", score: ifThen(!models.IsPlaceholder(e.Description) && len(strings.TrimSpace(e.Description)) > 50, 15)},
		{name: "date", score: ifThen(e.EventDate != nil && !e.EventDate.IsZero(), 15)},
		{name: "location", score: ifThen(!models.IsPlaceholder(e.Location), 10)},
		{name: "organizer", score: ifThen(strings.TrimSpace(e.OrganizerName) != "", 10)},
		{name: "source_url", score: ifThen(strings.HasPrefix(e.SourceURL, "http"), 10)},
		{name: "price", score: ifThen(!models.IsPlaceholder(e.Price), 5)},
		{name: "image", score: ifThen(strings.TrimSpace(e.ImageURL) != "", 5)},
		{name: "tags", score: ifThen(len(e.Tags) > 0, 5)},
		{name: "source_credibility", score: s.credibility(e.Source)},
		{name: "relevance", score: math.Min(math.Max(e.RelevanceScore, 0)/2, 15)},
	}
}

func (s *QualityScorer) credibility(source models.SourceTag) float64 {
	if c, ok := s.sourceCredibility[source]; ok {
		return c
	}
	return s.defaultCredibility
}

func ifThen(cond bool, points float64) float64 {
	if cond {
		return points
	}
	return 0
}
