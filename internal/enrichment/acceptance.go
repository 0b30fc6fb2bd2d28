package enrichment

import (
	"context"
	"time"

	"github.com/STRATINT/eventfeed/internal/models"
)

// AcceptancePolicy is the source-specific gate a candidate must pass to enter
// the pool.
type AcceptancePolicy struct {
	MinRelevance       float64
	RequireEventSignal bool
}

// Default acceptance thresholds per source family. Curated ticketing sources
// are looser than feeds and broad scraping.
var (
	TicketingPolicy   = AcceptancePolicy{MinRelevance: 10}
	FeedPolicy        = AcceptancePolicy{MinRelevance: 15, RequireEventSignal: true}
	WebScrapingPolicy = AcceptancePolicy{MinRelevance: 12}
)

// DefaultPolicy picks the built-in policy for a source tag.
func DefaultPolicy(source models.SourceTag) AcceptancePolicy {
	switch source {
	case models.SourceEventbrite, models.SourceOutsavvy:
		return TicketingPolicy
	case models.SourceRSSFeed:
		return FeedPolicy
	case models.SourceWebScraping:
		return WebScrapingPolicy
	default:
		return TicketingPolicy
	}
}

// Verdict is the combined scoring decision for a candidate.
type Verdict struct {
	Relevance   RelevanceResult
	Likelihood  Likelihood
	EventLikely bool
	Accepted    bool
	Classified  bool
}

// Evaluator combines topical relevance with event-likelihood under a policy,
// optionally asking a Classifier about borderline candidates.
type Evaluator struct {
	relevance  *RelevanceScorer
	classifier Classifier
	now        func() time.Time
}

// NewEvaluator wires the scorers. classifier may be nil.
func NewEvaluator(relevance *RelevanceScorer, classifier Classifier) *Evaluator {
	return &Evaluator{relevance: relevance, classifier: classifier, now: time.Now}
}

// Evaluate scores a candidate and decides acceptance. publishedAt feeds the
// recency bonus and may be nil.
func (e *Evaluator) Evaluate(ctx context.Context, c models.CandidateEvent, publishedAt *time.Time, policy AcceptancePolicy) Verdict {
	text := c.Text()
	v := Verdict{
		Relevance:  e.relevance.Score(text, publishedAt, e.now()),
		Likelihood: EventLikelihood(text),
	}
	v.EventLikely = v.Likelihood.Likely()

	relevant := v.Relevance.Score >= policy.MinRelevance
	if relevant && !v.EventLikely && e.classifier != nil {
		if likely, err := e.classifier.IsEvent(ctx, c); err == nil {
			v.EventLikely = likely
			v.Classified = true
		}
	}

	v.Accepted = relevant && (!policy.RequireEventSignal || v.EventLikely)
	return v
}
