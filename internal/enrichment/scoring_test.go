package enrichment

import (
	"strings"
	"testing"
	"time"

	"github.com/STRATINT/eventfeed/internal/models"
)

func TestQualityScorer_Score(t *testing.T) {
	scorer := NewQualityScorer()
	date := time.Date(2025, 7, 12, 19, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		event    models.CandidateEvent
		expected float64
	}{
		{
			name: "complete record is capped",
			event: models.CandidateEvent{
				Title:          "Black Queer Poetry Night at the Library",
				Description:    "An evening of spoken word and open mic from QTIPOC poets across South London.",
				EventDate:      &date,
				Location:       "Brixton Library, London",
				Source:         models.SourceEventbrite,
				SourceURL:      "https://www.eventbrite.co.uk/e/123",
				OrganizerName:  "Poetry Collective",
				Tags:           []string{"poetry"},
				Price:          "£5",
				ImageURL:       "https://img.example.org/1.jpg",
				RelevanceScore: 40,
			},
			expected: 100,
		},
		{
			name: "placeholders earn nothing",
			event: models.CandidateEvent{
				Title:          "Community Healing Circle",
				Description:    models.PlaceholderDescription,
				Location:       models.PlaceholderLocation,
				Source:         models.SourceRSSFeed,
				SourceURL:      "https://feeds.example.org/item/1",
				Price:          models.PlaceholderPrice,
				RelevanceScore: 12,
			},
			expected: 20 + 10 + 12 + 6,
		},
		{
			name:     "unknown source gets default credibility",
			event:    models.CandidateEvent{Title: "Short", Source: "Web Search"},
			expected: 5,
		},
		{
			name:     "title of exactly ten characters does not count",
			event:    models.CandidateEvent{Title: "0123456789", Source: models.SourceWebScraping},
			expected: 8,
		},
		{
			name:     "relevance contribution is capped at 15",
			event:    models.CandidateEvent{Source: models.SourceOutsavvy, RelevanceScore: 100},
			expected: 15 + 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scorer.Score(tt.event); got != tt.expected {
				t.Errorf("Score() = %v, want %v (%s)", got, tt.expected, scorer.Explain(tt.event))
			}
		})
	}
}

func TestQualityScorer_ScoreIsBounded(t *testing.T) {
	scorer := NewQualityScorer()
	for _, rel := range []float64{-50, 0, 7, 30, 1e6} {
		score := scorer.Score(models.CandidateEvent{RelevanceScore: rel})
		if score < 0 || score > MaxQualityScore {
			t.Errorf("score out of range for relevance %v: %v", rel, score)
		}
	}
}

func TestQualityScorer_Explain(t *testing.T) {
	scorer := NewQualityScorer()
	explanation := scorer.Explain(models.CandidateEvent{Title: "A long enough title", Source: models.SourceEventbrite})
	if !strings.Contains(explanation, "title=20.0") || !strings.Contains(explanation, "source_credibility=15.0") {
		t.Errorf("unexpected explanation: %s", explanation)
	}
}
