package moderation

import (
	"fmt"
	"strings"

	"github.com/STRATINT/eventfeed/internal/config"
	"github.com/STRATINT/eventfeed/internal/models"
)

// TrustTier classifies a source for moderation purposes.
type TrustTier int

const (
	TierUnknown TrustTier = iota
	TierTrusted
	TierManualReview
	TierAutoReject
)

func (t TrustTier) String() string {
	switch t {
	case TierTrusted:
		return "trusted"
	case TierManualReview:
		return "manual_review"
	case TierAutoReject:
		return "auto_reject"
	case TierUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("TrustTier(%d)", int(t))
	}
}

// StatusFor maps a trust tier to the status a new candidate receives. Only
// trusted sources skip review.
func StatusFor(t TrustTier) models.Status {
	switch t {
	case TierTrusted:
		return models.StatusApproved
	case TierManualReview, TierAutoReject, TierUnknown:
		return models.StatusPending
	default:
		return models.StatusPending
	}
}

// Recommendation is an operator hint shown next to a pending candidate. It
// never changes the routed status.
type Recommendation string

const (
	RecommendApprove Recommendation = "approve"
	RecommendReview  Recommendation = "review"
	RecommendReject  Recommendation = "reject"
)

// RecommendationFor maps a trust tier to an operator hint.
func RecommendationFor(t TrustTier) Recommendation {
	switch t {
	case TierTrusted:
		return RecommendApprove
	case TierAutoReject:
		return RecommendReject
	case TierManualReview, TierUnknown:
		return RecommendReview
	default:
		return RecommendReview
	}
}

// TrustRegistry resolves source names to trust tiers. Lookups are case
// insensitive. It is read-only after construction.
type TrustRegistry struct {
	tiers map[string]TrustTier
}

// NewTrustRegistry builds a registry from configured lists. A source listed
// in several lists gets the most restrictive tier.
func NewTrustRegistry(cfg config.TrustConfig) *TrustRegistry {
	r := &TrustRegistry{tiers: make(map[string]TrustTier)}
	r.add(cfg.Trusted, TierTrusted)
	r.add(cfg.ManualReview, TierManualReview)
	r.add(cfg.AutoReject, TierAutoReject)
	return r
}

func (r *TrustRegistry) add(sources []string, tier TrustTier) {
	for _, s := range sources {
		key := normalizeSource(s)
		if key == "" {
			continue
		}
		if tier > r.tiers[key] {
			r.tiers[key] = tier
		}
	}
}

// Tier returns the trust tier of source, TierUnknown when unlisted.
func (r *TrustRegistry) Tier(source models.SourceTag) TrustTier {
	return r.tiers[normalizeSource(string(source))]
}

// Route returns the initial moderation status for a candidate from source.
func (r *TrustRegistry) Route(source models.SourceTag) models.Status {
	return StatusFor(r.Tier(source))
}

// Recommendation returns the operator hint for source.
func (r *TrustRegistry) Recommendation(source models.SourceTag) Recommendation {
	return RecommendationFor(r.Tier(source))
}

func normalizeSource(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
