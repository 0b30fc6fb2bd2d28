package dedup

import (
	"fmt"
	"strings"

	"github.com/STRATINT/eventfeed/internal/enrichment"
	"github.com/STRATINT/eventfeed/internal/models"
)

// DefaultThreshold is the pairwise similarity at which two candidates are
// treated as the same event.
const DefaultThreshold = 0.7

// HighQualityScore is the quality at or above which a candidate counts as
// high quality in the stage statistics.
const HighQualityScore = 70

// Router assigns a moderation status to a source. It is consulted only when a
// merged record has no valid status of its own.
type Router interface {
	Route(source models.SourceTag) models.Status
}

// Options configures an Engine.
type Options struct {
	Threshold float64
	Strategy  ClusterStrategy
}

// Group records which candidates were folded into a canonical record.
type Group = models.DuplicateGroup

// Result is the outcome of one deduplication pass over a pool.
type Result struct {
	Unique        []models.CandidateEvent
	Groups        []Group
	QualityScores map[string]float64 // pre-merge score of every input candidate
	Stats         models.DedupStats
}

// Engine clusters near-duplicate candidates and merges each cluster into one
// canonical record.
type Engine struct {
	threshold  float64
	strategy   ClusterStrategy
	quality    *enrichment.QualityScorer
	router     Router
	similarity similarityFunc
}

// NewEngine creates an engine. router may be nil.
func NewEngine(opts Options, quality *enrichment.QualityScorer, router Router) *Engine {
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategySeed
	}
	if quality == nil {
		quality = enrichment.NewQualityScorer()
	}
	return &Engine{
		threshold:  opts.Threshold,
		strategy:   opts.Strategy,
		quality:    quality,
		router:     router,
		similarity: Similarity,
	}
}

// Strategy returns the configured clustering strategy.
func (e *Engine) Strategy() ClusterStrategy {
	return e.strategy
}

type record struct {
	event   models.CandidateEvent
	members []string
	quality float64
}

// Deduplicate partitions pool into clusters and returns one merged record per
// cluster. The input slice is never modified. Clustering is repeated over the
// merged output until a pass finds nothing to merge, so feeding the result
// back in is a no-op.
func (e *Engine) Deduplicate(pool []models.CandidateEvent) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{}
			err = fmt.Errorf("deduplicate: recovered panic: %v", r)
		}
	}()

	scores := make(map[string]float64, len(pool))
	records := make([]record, len(pool))
	for i, c := range pool {
		ev := c.Clone()
		q := e.quality.Score(ev)
		ev.QualityScore = q
		scores[ev.ID] = q
		records[i] = record{event: ev, members: []string{ev.ID}, quality: q}
	}

	for {
		merged, changed := e.pass(records)
		records = merged
		if !changed {
			break
		}
	}

	result = Result{
		Unique:        make([]models.CandidateEvent, 0, len(records)),
		QualityScores: scores,
	}
	for _, r := range records {
		result.Unique = append(result.Unique, r.event)
		if len(r.members) > 1 {
			result.Groups = append(result.Groups, Group{
				PrimaryID:    r.event.ID,
				DuplicateIDs: duplicatesOf(r),
				Confidence:   groupConfidence(len(r.members)),
			})
		}
	}
	result.Stats = buildStats(pool, scores, result)
	return result, nil
}

func (e *Engine) pass(records []record) ([]record, bool) {
	events := make([]models.CandidateEvent, len(records))
	for i, r := range records {
		events[i] = r.event
	}

	groups := cluster(e.strategy, events, e.threshold, e.similarity)
	if len(groups) == len(records) {
		return records, false
	}

	out := make([]record, 0, len(groups))
	for _, group := range groups {
		if len(group) == 1 {
			out = append(out, records[group[0]])
			continue
		}
		out = append(out, e.mergeGroup(records, group))
	}
	return out, true
}

// mergeGroup picks the highest quality member as primary, earliest on ties,
// and fills its gaps from the other members in order.
func (e *Engine) mergeGroup(records []record, group []int) record {
	primaryIdx := group[0]
	for _, idx := range group[1:] {
		if records[idx].quality > records[primaryIdx].quality {
			primaryIdx = idx
		}
	}

	primary := records[primaryIdx]
	merged := primary.event.Clone()
	members := append([]string(nil), primary.members...)

	for _, idx := range group {
		if idx == primaryIdx {
			continue
		}
		other := records[idx]
		fillFrom(&merged, other.event)
		members = append(members, other.members...)
	}

	if !merged.Status.Valid() && e.router != nil {
		merged.Status = e.router.Route(merged.Source)
	}
	merged.QualityScore = e.quality.Score(merged)
	return record{event: merged, members: members, quality: merged.QualityScore}
}

func fillFrom(dst *models.CandidateEvent, src models.CandidateEvent) {
	fillString(&dst.Title, src.Title)
	fillString(&dst.Description, src.Description)
	fillString(&dst.Location, src.Location)
	fillString(&dst.OrganizerName, src.OrganizerName)
	fillString(&dst.SourceURL, src.SourceURL)
	fillString(&dst.Price, src.Price)
	fillString(&dst.ImageURL, src.ImageURL)

	if (dst.EventDate == nil || dst.EventDate.IsZero()) && src.EventDate != nil && !src.EventDate.IsZero() {
		d := *src.EventDate
		dst.EventDate = &d
	}

	dst.Tags = models.UnionTags(dst.Tags, src.Tags)
	if src.RelevanceScore > dst.RelevanceScore {
		dst.RelevanceScore = src.RelevanceScore
	}
	dst.EventLikely = dst.EventLikely || src.EventLikely
}

func fillString(dst *string, src string) {
	if models.IsPlaceholder(*dst) && !models.IsPlaceholder(src) {
		*dst = strings.TrimSpace(src)
	}
}

func duplicatesOf(r record) []string {
	dups := make([]string, 0, len(r.members)-1)
	for _, id := range r.members {
		if id != r.event.ID {
			dups = append(dups, id)
		}
	}
	return dups
}

func groupConfidence(size int) float64 {
	if size > 2 {
		return 0.9
	}
	return 0.8
}

func buildStats(pool []models.CandidateEvent, scores map[string]float64, result Result) models.DedupStats {
	stats := models.DedupStats{
		Success:               true,
		EventsProcessed:       len(pool),
		DuplicateGroupsFound:  len(result.Groups),
		UniqueEventsRemaining: len(result.Unique),
		AvgQualityScore:       "0.0",
		DeduplicationRate:     "0%",
		DuplicateGroups:       result.Groups,
		QualityScores:         scores,
	}
	for _, g := range result.Groups {
		stats.TotalDuplicatesRemoved += len(g.DuplicateIDs)
	}
	if len(pool) == 0 {
		return stats
	}

	total := 0.0
	for _, c := range pool {
		q := scores[c.ID]
		total += q
		if q >= HighQualityScore {
			stats.HighQualityEvents++
		}
	}
	stats.AvgQualityScore = fmt.Sprintf("%.1f", total/float64(len(pool)))
	stats.DeduplicationRate = fmt.Sprintf("%.1f%%", float64(stats.TotalDuplicatesRemoved)/float64(len(pool))*100)
	return stats
}
