package enrichment

import (
	"strings"
	"time"
	"unicode"
)

// Tier is one weighted band of the keyword taxonomy.
type Tier struct {
	Name     string
	Weight   float64
	Keywords []string
}

// Taxonomy is the ordered set of keyword tiers used for relevance scoring.
type Taxonomy struct {
	Tiers []Tier
}

// DefaultTaxonomy returns the community-event keyword taxonomy.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{Tiers: []Tier{
		{
			Name:   "identity",
			Weight: 10,
			Keywords: []string{
				"black", "african american", "afro", "afrocaribbean", "african diaspora",
				"qtipoc", "queer", "trans", "transgender", "nonbinary", "non-binary",
				"lgbtq", "lgbtqia", "lgbtqia+", "gay", "lesbian", "bisexual", "pansexual",
				"two spirit", "gender fluid", "genderqueer",
			},
		},
		{
			Name:   "community",
			Weight: 7,
			Keywords: []string{
				"poc", "bipoc", "people of color", "melanin", "intersectional",
				"community", "collective", "coalition", "alliance", "network",
			},
		},
		{
			Name:   "values",
			Weight: 5,
			Keywords: []string{
				"liberation", "justice", "social justice", "racial justice", "healing",
				"wellness", "mental health", "therapy", "support group", "safe space",
				"brave space", "inclusive", "diversity", "equity", "belonging",
				"empowerment", "activism", "organizing", "mutual aid",
			},
		},
		{
			Name:   "event_type",
			Weight: 2,
			Keywords: []string{
				"workshop", "training", "seminar", "conference", "summit", "celebration",
				"festival", "party", "social", "mixer", "art", "creative", "performance",
				"music", "poetry", "spoken word", "book club", "reading", "discussion",
				"panel", "talk", "support group", "therapy", "counseling", "wellness",
				"protest", "march", "rally", "demonstration", "action",
			},
		},
	}}
}

const (
	breadthSmallMin   = 3
	breadthSmallBonus = 5
	breadthLargeMin   = 5
	breadthLargeBonus = 10

	recentWindow       = 7 * 24 * time.Hour
	recentBonus        = 5
	fairlyRecentWindow = 30 * 24 * time.Hour
	fairlyRecentBonus  = 3
)

// RelevanceResult explains a relevance score.
type RelevanceResult struct {
	Score        float64
	Matched      []string
	TierHits     map[string]int
	BreadthBonus float64
	RecencyBonus float64
}

// RelevanceScorer scores free text against a keyword taxonomy. It holds no
// mutable state and is safe for concurrent use.
type RelevanceScorer struct {
	taxonomy Taxonomy
}

// NewRelevanceScorer creates a scorer over the given taxonomy. Keywords are
// lowercased once here.
func NewRelevanceScorer(taxonomy Taxonomy) *RelevanceScorer {
	tiers := make([]Tier, len(taxonomy.Tiers))
	for i, tier := range taxonomy.Tiers {
		keywords := make([]string, 0, len(tier.Keywords))
		for _, kw := range tier.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		tiers[i] = Tier{Name: tier.Name, Weight: tier.Weight, Keywords: keywords}
	}
	return &RelevanceScorer{taxonomy: Taxonomy{Tiers: tiers}}
}

// Score computes the relevance of text. publishedAt is optional; when set the
// recency bonus is applied relative to now. Empty text scores zero.
func (s *RelevanceScorer) Score(text string, publishedAt *time.Time, now time.Time) RelevanceResult {
	result := RelevanceResult{TierHits: make(map[string]int)}

	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return result
	}

	distinct := make(map[string]struct{})
	for _, tier := range s.taxonomy.Tiers {
		for _, kw := range tier.Keywords {
			if !containsTerm(lower, kw) {
				continue
			}
			result.Score += tier.Weight
			result.TierHits[tier.Name]++
			if _, seen := distinct[kw]; !seen {
				distinct[kw] = struct{}{}
				result.Matched = append(result.Matched, kw)
			}
		}
	}

	if n := len(distinct); n >= breadthSmallMin {
		result.BreadthBonus += breadthSmallBonus
		if n >= breadthLargeMin {
			result.BreadthBonus += breadthLargeBonus
		}
	}

	// The bands stack: a week-old item earns both. Future dates count as recent.
	if publishedAt != nil && !publishedAt.IsZero() {
		age := now.Sub(*publishedAt)
		if age <= recentWindow {
			result.RecencyBonus += recentBonus
		}
		if age <= fairlyRecentWindow {
			result.RecencyBonus += fairlyRecentBonus
		}
	}

	result.Score += result.BreadthBonus + result.RecencyBonus
	return result
}

// containsTerm reports whether term occurs in text on word boundaries. A
// trailing plural "s" or "es" is tolerated.
func containsTerm(text, term string) bool {
	for offset := 0; offset < len(text); {
		idx := strings.Index(text[offset:], term)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(term)

		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		offset = start + 1
	}
	return false
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	return !isWordByte(text[i-1])
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) || !isWordByte(text[i]) {
		return true
	}
	if strings.HasPrefix(text[i:], "es") {
		return i+2 >= len(text) || !isWordByte(text[i+2])
	}
	if text[i] == 's' {
		return i+1 >= len(text) || !isWordByte(text[i+1])
	}
	return false
}

func isWordByte(b byte) bool {
	if b >= 0x80 {
		// part of a multi-byte rune; treat letters outside ASCII as word characters
		return true
	}
	return unicode.IsLetter(rune(b)) || unicode.IsDigit(rune(b))
}
