package moderation

import (
	"testing"

	"github.com/STRATINT/eventfeed/internal/config"
	"github.com/STRATINT/eventfeed/internal/models"
)

func TestTrustRegistry_Route(t *testing.T) {
	registry := NewTrustRegistry(config.DefaultTrust())

	tests := []struct {
		name   string
		source models.SourceTag
		want   models.Status
		tier   TrustTier
	}{
		{"trusted source approves", "ukblackpride.org.uk", models.StatusApproved, TierTrusted},
		{"case insensitive", "  QX Magazine Events ", models.StatusApproved, TierTrusted},
		{"community submission", models.SourceCommunitySubmission, models.StatusApproved, TierTrusted},
		{"manual review stays pending", "research_agent", models.StatusPending, TierManualReview},
		{"auto reject stays pending", "chrome-extension", models.StatusPending, TierAutoReject},
		{"unknown stays pending", "some-random-blog.example", models.StatusPending, TierUnknown},
		{"empty source", "", models.StatusPending, TierUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := registry.Tier(tt.source); got != tt.tier {
				t.Errorf("Tier(%q) = %v, want %v", tt.source, got, tt.tier)
			}
			if got := registry.Route(tt.source); got != tt.want {
				t.Errorf("Route(%q) = %q, want %q", tt.source, got, tt.want)
			}
		})
	}
}

func TestTrustRegistry_RouteIgnoresRelevance(t *testing.T) {
	registry := NewTrustRegistry(config.DefaultTrust())

	highlyRelevant := models.CandidateEvent{Source: "unlisted-source", RelevanceScore: 95}
	if got := registry.Route(highlyRelevant.Source); got != models.StatusPending {
		t.Errorf("Route() = %q, want pending regardless of relevance", got)
	}
}

func TestTrustRegistry_MostRestrictiveWins(t *testing.T) {
	registry := NewTrustRegistry(config.TrustConfig{
		Trusted:    []string{"shared"},
		AutoReject: []string{"Shared"},
	})

	if got := registry.Tier("shared"); got != TierAutoReject {
		t.Errorf("Tier() = %v, want %v", got, TierAutoReject)
	}
	if got := registry.Route("shared"); got != models.StatusPending {
		t.Errorf("Route() = %q, want pending", got)
	}
}

func TestRecommendation(t *testing.T) {
	registry := NewTrustRegistry(config.DefaultTrust())

	tests := []struct {
		source models.SourceTag
		want   Recommendation
	}{
		{"stonewall.org.uk", RecommendApprove},
		{"n8n_automation", RecommendReview},
		{"Web Search", RecommendReject},
		{"elsewhere", RecommendReview},
	}
	for _, tt := range tests {
		if got := registry.Recommendation(tt.source); got != tt.want {
			t.Errorf("Recommendation(%q) = %q, want %q", tt.source, got, tt.want)
		}
	}
}

func TestTrustTierString(t *testing.T) {
	if TierManualReview.String() != "manual_review" {
		t.Errorf("String() = %q", TierManualReview.String())
	}
	if TrustTier(42).String() != "TrustTier(42)" {
		t.Errorf("String() = %q", TrustTier(42).String())
	}
}
