package enrichment

import (
	"testing"
	"time"
)

func TestRelevanceScorer_Score(t *testing.T) {
	scorer := NewRelevanceScorer(DefaultTaxonomy())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		text     string
		expected float64
	}{
		{"empty text", "", 0},
		{"whitespace only", "   \n\t", 0},
		{"no keywords", "Quarterly budget review", 0},
		{"single identity keyword", "Black history walk", 10},
		{"single event keyword", "Pottery workshop", 2},
		{"four identity keywords get small breadth bonus", "Black Queer Trans Nonbinary brunch", 40 + 5},
		{"five identity keywords get both breadth bonuses", "Black Queer Trans Nonbinary Lesbian brunch", 50 + 5 + 10},
		{"keyword in two tiers weighs twice but counts once", "Wellness", 5 + 2},
		{"plural is tolerated", "Two workshops this week", 2},
		{"substring inside a word does not match", "Transport strategy and startup budgets", 0},
		{"town name containing a keyword", "Blackpool seafront walk", 0},
		{"mixed tiers", "Queer community poetry", 10 + 7 + 2 + 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score(tt.text, nil, now)
			if got.Score != tt.expected {
				t.Errorf("Score(%q) = %v, want %v (matched %v)", tt.text, got.Score, tt.expected, got.Matched)
			}
		})
	}
}

func TestRelevanceScorer_RecencyBonus(t *testing.T) {
	scorer := NewRelevanceScorer(DefaultTaxonomy())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	at := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	tests := []struct {
		name      string
		published *time.Time
		bonus     float64
	}{
		{"no date", nil, 0},
		{"yesterday", at(24 * time.Hour), 8},
		{"three days", at(72 * time.Hour), 8},
		{"exactly a week", at(7 * 24 * time.Hour), 8},
		{"two weeks", at(14 * 24 * time.Hour), 3},
		{"exactly thirty days", at(30 * 24 * time.Hour), 3},
		{"two months", at(60 * 24 * time.Hour), 0},
		{"future", at(-48 * time.Hour), 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score("Queer", tt.published, now)
			if got.RecencyBonus != tt.bonus {
				t.Errorf("RecencyBonus = %v, want %v", got.RecencyBonus, tt.bonus)
			}
			if got.Score != 10+tt.bonus {
				t.Errorf("Score = %v, want %v", got.Score, 10+tt.bonus)
			}
		})
	}
}

func TestRelevanceScorer_IsDeterministic(t *testing.T) {
	scorer := NewRelevanceScorer(DefaultTaxonomy())
	now := time.Now()
	text := "Black trans healing circle and mutual aid social"

	first := scorer.Score(text, nil, now)
	for i := 0; i < 10; i++ {
		if got := scorer.Score(text, nil, now); got.Score != first.Score {
			t.Fatalf("run %d: score %v differs from %v", i, got.Score, first.Score)
		}
	}
}

func TestRelevanceScorer_CustomTaxonomyIsNormalized(t *testing.T) {
	scorer := NewRelevanceScorer(Taxonomy{Tiers: []Tier{
		{Name: "custom", Weight: 4, Keywords: []string{"  Salsa ", ""}},
	}})

	got := scorer.Score("SALSA night", nil, time.Now())
	if got.Score != 4 {
		t.Errorf("Score = %v, want 4", got.Score)
	}
	if got.TierHits["custom"] != 1 {
		t.Errorf("TierHits = %v", got.TierHits)
	}
}
