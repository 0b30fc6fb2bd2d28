package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/STRATINT/eventfeed/internal/enrichment"
	"github.com/STRATINT/eventfeed/internal/models"
	"github.com/google/uuid"
)

// Strategy selects which priority tiers a run collects from.
type Strategy string

const (
	StrategyComprehensive Strategy = "comprehensive"
	StrategyPriorityOnly  Strategy = "priority-only"
	StrategyFast          Strategy = "fast"
)

// ParseStrategy resolves a strategy name. The second value is false for
// unknown names, in which case comprehensive is returned.
func ParseStrategy(s string) (Strategy, bool) {
	switch s {
	case "", string(StrategyComprehensive):
		return StrategyComprehensive, true
	case string(StrategyPriorityOnly), "priority_only":
		return StrategyPriorityOnly, true
	case string(StrategyFast):
		return StrategyFast, true
	default:
		return StrategyComprehensive, false
	}
}

// includes reports whether tier runs under s.
func (s Strategy) includes(tier int) bool {
	switch s {
	case StrategyPriorityOnly:
		return tier <= 1
	case StrategyFast:
		return tier <= 2
	default:
		return true
	}
}

// Phase is a step of the run state machine.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseCollecting    Phase = "collecting"
	PhaseDeduplicating Phase = "deduplicating"
	PhaseSummarized    Phase = "summarized"
)

// RunState is a snapshot of the orchestrator for observability.
type RunState struct {
	RunID     string    `json:"run_id,omitempty"`
	Phase     Phase     `json:"phase"`
	Tier      int       `json:"tier,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// DefaultTierCooldown is the pause between consecutive tiers.
const DefaultTierCooldown = 2 * time.Second

// Thresholds used when deriving operator recommendations.
const (
	slowRunThreshold  = 3 * time.Minute
	lowRelevanceRate  = 20.0
	highRelevanceRate = 80.0
)

// Deduplicator runs the dedup stage over the persisted pool.
type Deduplicator interface {
	Run(ctx context.Context) (models.DedupStats, error)
}

// Router assigns the initial moderation status of a candidate.
type Router interface {
	Route(source models.SourceTag) models.Status
}

// RunNotifier receives run outcomes and auto-approved candidates.
type RunNotifier interface {
	PublishRunCompleted(ctx context.Context, summary models.Summary) error
	PublishEventApproved(ctx context.Context, event models.CandidateEvent) error
}

// Recorder receives per-adapter and per-run measurements.
type Recorder interface {
	ObserveAdapter(source, result string, duration time.Duration, found, added int)
	ObserveRun(duration time.Duration, duplicatesRemoved int)
}

// OrchestratorDeps wires the collaborators of an Orchestrator. Notifier and
// Metrics are optional.
type OrchestratorDeps struct {
	Adapters  []AdapterSpec
	Store     CandidateStore
	Evaluator *enrichment.Evaluator
	Quality   *enrichment.QualityScorer
	Router    Router
	Dedup     Deduplicator
	Notifier  RunNotifier
	Metrics   Recorder
}

// OrchestratorConfig holds run-level settings.
type OrchestratorConfig struct {
	DefaultStrategy Strategy
	TierCooldown    time.Duration
}

// RunOptions customises a single run.
type RunOptions struct {
	Strategy   string
	ForceDedup bool
}

// Orchestrator runs source adapters tier by tier, scores and routes what
// they collect, then deduplicates the pool and summarises the run.
type Orchestrator struct {
	deps   OrchestratorDeps
	config OrchestratorConfig
	logger *slog.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	runMu sync.Mutex

	mu    sync.RWMutex
	state RunState
	last  *models.Summary
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(deps OrchestratorDeps, cfg OrchestratorConfig, logger *slog.Logger) *Orchestrator {
	if cfg.DefaultStrategy == "" {
		cfg.DefaultStrategy = StrategyComprehensive
	}
	if cfg.TierCooldown < 0 {
		cfg.TierCooldown = 0
	}
	if deps.Quality == nil {
		deps.Quality = enrichment.NewQualityScorer()
	}
	return &Orchestrator{
		deps:   deps,
		config: cfg,
		logger: logger.With("component", "orchestrator"),
		now:    time.Now,
		sleep:  sleepContext,
		state:  RunState{Phase: PhaseIdle},
	}
}

// State returns the current run state.
func (o *Orchestrator) State() RunState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// LastSummary returns the summary of the most recent completed run.
func (o *Orchestrator) LastSummary() (models.Summary, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return models.Summary{}, false
	}
	return copySummary(*o.last), true
}

// Adapters returns the registered adapter names in tier order.
func (o *Orchestrator) Adapters() []string {
	names := make([]string, 0, len(o.deps.Adapters))
	for _, tier := range groupTiers(o.deps.Adapters, StrategyComprehensive) {
		for _, spec := range tier.specs {
			names = append(names, spec.Name())
		}
	}
	return names
}

type tierGroup struct {
	tier  int
	specs []AdapterSpec
}

// groupTiers buckets the specs selected by strategy, lowest tier first.
func groupTiers(specs []AdapterSpec, strategy Strategy) []tierGroup {
	byTier := make(map[int][]AdapterSpec)
	for _, spec := range specs {
		tier := spec.Tier
		if tier < 1 {
			tier = 1
		}
		if strategy.includes(tier) {
			byTier[tier] = append(byTier[tier], spec)
		}
	}

	groups := make([]tierGroup, 0, len(byTier))
	for tier, s := range byTier {
		groups = append(groups, tierGroup{tier: tier, specs: s})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].tier < groups[j].tier })
	return groups
}

// adapterOutcome is the private accumulator of one adapter invocation.
type adapterOutcome struct {
	spec       AdapterSpec
	candidates []models.CandidateEvent
	err        error
	duration   time.Duration
}

// Run performs one orchestrated collection. The summary is always returned,
// even together with an error.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (models.Summary, error) {
	if !o.runMu.TryLock() {
		return models.Summary{}, ErrRunInProgress
	}
	defer o.runMu.Unlock()

	start := o.now()
	runID := uuid.NewString()
	logger := o.logger.With("run_id", runID)

	strategyName := opts.Strategy
	if strategyName == "" {
		strategyName = string(o.config.DefaultStrategy)
	}
	strategy, known := ParseStrategy(strategyName)
	if !known {
		logger.Warn("unknown strategy, using comprehensive", "strategy", strategyName)
	}

	summary := models.Summary{
		RunID:     runID,
		Strategy:  string(strategy),
		StartedAt: start.UTC(),
	}

	tiers := groupTiers(o.deps.Adapters, strategy)
	if len(tiers) == 0 {
		err := &OrchestrationFatalError{Err: fmt.Errorf("no adapters configured for strategy %s", strategy)}
		summary.Errors = []string{err.Error()}
		summary.AvgQualityScore = "N/A"
		summary.OverallRelevanceRate = "0%"
		summary.TotalRuntimeMS = o.now().Sub(start).Milliseconds()
		o.finish(ctx, logger, &summary)
		return copySummary(summary), err
	}

	logger.Info("starting orchestrated collection", "strategy", strategy, "tiers", len(tiers))

	for i, tier := range tiers {
		o.setState(RunState{RunID: runID, Phase: PhaseCollecting, Tier: tier.tier, StartedAt: start})

		outcomes := o.runTier(ctx, tier.specs)
		for _, out := range outcomes {
			result := o.absorb(ctx, logger, runID, out)
			summary.CollectionResults = append(summary.CollectionResults, result)
			if result.Error != "" {
				summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %s", result.Source, result.Error))
			}
		}

		if i < len(tiers)-1 && o.config.TierCooldown > 0 {
			if err := o.sleep(ctx, o.config.TierCooldown); err != nil {
				logger.Warn("run interrupted between tiers", "error", err)
				summary.Errors = append(summary.Errors, fmt.Sprintf("orchestrator: %v", err))
				break
			}
		}
	}

	for _, r := range summary.CollectionResults {
		summary.SourcesProcessed++
		if r.Success {
			summary.SourcesSuccessful++
		}
		summary.TotalEventsFound += r.EventsFound
		summary.TotalEventsAdded += r.EventsAdded
	}
	summary.OverallRelevanceRate = "0%"
	if summary.TotalEventsFound > 0 {
		summary.OverallRelevanceRate = percent(summary.TotalEventsAdded, summary.TotalEventsFound)
	}

	summary.AvgQualityScore = "N/A"
	summary.FinalUniqueEvents = summary.TotalEventsAdded
	if summary.TotalEventsAdded > 0 || opts.ForceDedup {
		o.setState(RunState{RunID: runID, Phase: PhaseDeduplicating, StartedAt: start})

		stats, err := o.dedupStage(ctx, logger, runID)
		summary.Dedup = &stats
		if err != nil {
			dedupErr := &DeduplicationError{Err: err}
			logger.Error("deduplication stage failed", "error", err)
			summary.Errors = append(summary.Errors, dedupErr.Error())
		}
		if err == nil && stats.Success {
			summary.DeduplicationPerformed = true
			summary.DuplicatesRemoved = stats.TotalDuplicatesRemoved
			summary.FinalUniqueEvents = stats.UniqueEventsRemaining
			summary.AvgQualityScore = stats.AvgQualityScore
		}
	}

	summary.Success = summary.SourcesProcessed > 0
	summary.TotalRuntimeMS = o.now().Sub(start).Milliseconds()
	summary.Recommendations = Recommendations(summary)

	o.finish(ctx, logger, &summary)

	logger.Info("orchestrated collection complete",
		"sources", summary.SourcesProcessed,
		"successful", summary.SourcesSuccessful,
		"found", summary.TotalEventsFound,
		"added", summary.TotalEventsAdded,
		"unique", summary.FinalUniqueEvents,
		"runtime_ms", summary.TotalRuntimeMS,
	)
	return copySummary(summary), nil
}

// runTier starts every adapter of a tier and waits for all of them. Each
// goroutine writes only to its own slot.
func (o *Orchestrator) runTier(ctx context.Context, specs []AdapterSpec) []adapterOutcome {
	outcomes := make([]adapterOutcome, len(specs))

	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec AdapterSpec) {
			defer wg.Done()
			outcomes[i] = o.collect(ctx, spec)
		}(i, spec)
	}
	wg.Wait()

	return outcomes
}

// collect invokes one adapter under its own deadline. A panic or a missed
// deadline becomes an AdapterError.
func (o *Orchestrator) collect(ctx context.Context, spec AdapterSpec) (out adapterOutcome) {
	out.spec = spec
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, spec.timeout())
	defer cancel()

	type collected struct {
		candidates []models.CandidateEvent
		err        error
	}
	done := make(chan collected, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- collected{err: fmt.Errorf("adapter panic: %v", r)}
			}
		}()
		candidates, err := spec.Adapter.Collect(ctx)
		done <- collected{candidates: candidates, err: err}
	}()

	select {
	case res := <-done:
		out.candidates = res.candidates
		out.err = res.err
		if res.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			out.err = ErrAdapterTimeout
		}
	case <-ctx.Done():
		out.err = ErrAdapterTimeout
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			out.err = ctx.Err()
		}
	}

	if out.err != nil {
		out.candidates = nil
		out.err = &AdapterError{Source: spec.Name(), Err: out.err}
	}
	out.duration = time.Since(start)
	return out
}

// absorb scores, routes and persists one adapter's candidates and turns the
// outcome into a CollectionResult. Only the orchestrator goroutine calls it.
func (o *Orchestrator) absorb(ctx context.Context, logger *slog.Logger, runID string, out adapterOutcome) models.CollectionResult {
	name := out.spec.Name()
	result := models.CollectionResult{
		Source:     name,
		DurationMS: out.duration.Milliseconds(),
	}

	if out.err != nil {
		var adapterErr *AdapterError
		msg := out.err.Error()
		if errors.As(out.err, &adapterErr) {
			msg = adapterErr.Err.Error()
		}
		result.Status = models.RunStatusFailed
		result.Error = msg
		logger.Warn("adapter failed", "adapter", name, "error", msg, "duration", out.duration)
		o.record(ctx, logger, runID, result)
		return result
	}

	result.EventsFound = len(out.candidates)
	accepted := make([]models.CandidateEvent, 0, len(out.candidates))
	relevanceTotal := 0.0

	for _, c := range out.candidates {
		verdict := o.deps.Evaluator.Evaluate(ctx, c, c.PublishedAt, out.spec.Policy)
		relevanceTotal += verdict.Relevance.Score
		if !verdict.Accepted {
			continue
		}
		c.RelevanceScore = verdict.Relevance.Score
		c.EventLikely = verdict.EventLikely
		c.Status = o.deps.Router.Route(c.Source)
		c.QualityScore = o.deps.Quality.Score(c)
		accepted = append(accepted, c)
	}

	result.Success = true
	result.Status = models.RunStatusSuccess
	if result.EventsFound > 0 {
		result.AvgRelevanceScore = relevanceTotal / float64(result.EventsFound)
	}

	if len(accepted) > 0 {
		if err := o.deps.Store.AppendCandidates(ctx, accepted); err != nil {
			persistErr := &PersistenceError{Op: "append candidates", Err: err}
			logger.Error("failed to store candidates", "adapter", name, "count", len(accepted), "error", err)
			result.Status = models.RunStatusPartial
			result.Error = persistErr.Error()
			accepted = nil
		}
	}
	result.EventsAdded = len(accepted)
	result.RelevanceRate = "0.0%"
	if result.EventsFound > 0 {
		result.RelevanceRate = percent(result.EventsAdded, result.EventsFound)
	}

	if o.deps.Notifier != nil {
		for _, c := range accepted {
			if c.Status != models.StatusApproved {
				continue
			}
			if err := o.deps.Notifier.PublishEventApproved(ctx, c); err != nil {
				logger.Warn("failed to publish approved candidate", "id", c.ID, "error", err)
			}
		}
	}

	logger.Info("adapter complete",
		"adapter", name,
		"found", result.EventsFound,
		"added", result.EventsAdded,
		"duration", out.duration,
	)
	o.record(ctx, logger, runID, result)
	return result
}

func (o *Orchestrator) record(ctx context.Context, logger *slog.Logger, runID string, result models.CollectionResult) {
	if o.deps.Metrics != nil {
		o.deps.Metrics.ObserveAdapter(result.Source, string(result.Status),
			time.Duration(result.DurationMS)*time.Millisecond, result.EventsFound, result.EventsAdded)
	}

	row := models.RunLog{
		ID:           uuid.NewString(),
		RunID:        runID,
		Source:       result.Source,
		EventsFound:  result.EventsFound,
		EventsAdded:  result.EventsAdded,
		Status:       result.Status,
		Timestamp:    o.now().UTC(),
		ErrorMessage: result.Error,
	}
	if err := o.deps.Store.AppendRunLog(ctx, row); err != nil {
		logger.Error("failed to append run log", "source", result.Source, "error", err)
	}
}

// Deduplicate runs the dedup stage outside a collection run. It takes the
// same lock as Run, so the pool rewrite never overlaps a run's writes.
func (o *Orchestrator) Deduplicate(ctx context.Context) (models.DedupStats, error) {
	if !o.runMu.TryLock() {
		return models.DedupStats{}, ErrRunInProgress
	}
	defer o.runMu.Unlock()

	runID := uuid.NewString()
	logger := o.logger.With("run_id", runID)

	previous := o.State()
	o.setState(RunState{RunID: runID, Phase: PhaseDeduplicating, StartedAt: o.now()})
	defer o.setState(previous)

	stats, err := o.dedupStage(ctx, logger, runID)
	if err != nil {
		logger.Error("deduplication failed", "error", err)
		return stats, &DeduplicationError{Err: err}
	}
	return stats, nil
}

// dedupStage runs the deduplicator and records its stats, duplicate groups
// included, as a run log row.
func (o *Orchestrator) dedupStage(ctx context.Context, logger *slog.Logger, runID string) (models.DedupStats, error) {
	stats, err := o.runDedup(ctx)

	details, encErr := json.Marshal(stats)
	if encErr != nil {
		logger.Error("failed to encode dedup stats", "error", encErr)
	}
	row := models.RunLog{
		ID:          uuid.NewString(),
		RunID:       runID,
		Source:      models.DedupSource,
		EventsFound: stats.EventsProcessed,
		EventsAdded: stats.UniqueEventsRemaining,
		Status:      models.RunStatusSuccess,
		Timestamp:   o.now().UTC(),
		Details:     details,
	}
	if err != nil {
		row.Status = models.RunStatusFailed
		row.ErrorMessage = err.Error()
	}
	if err := o.deps.Store.AppendRunLog(ctx, row); err != nil {
		logger.Error("failed to append run log", "source", row.Source, "error", err)
	}
	return stats, err
}

func (o *Orchestrator) runDedup(ctx context.Context) (stats models.DedupStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dedup panic: %v", r)
			stats = models.DedupStats{AvgQualityScore: "0.0", DeduplicationRate: "0%", Error: err.Error()}
		}
	}()
	if o.deps.Dedup == nil {
		return models.DedupStats{}, errors.New("no deduplicator configured")
	}
	return o.deps.Dedup.Run(ctx)
}

// finish records the run-level log row, notifies and stores the summary.
func (o *Orchestrator) finish(ctx context.Context, logger *slog.Logger, summary *models.Summary) {
	status := models.RunStatusFailed
	switch {
	case summary.SourcesProcessed > 0 && summary.SourcesSuccessful == summary.SourcesProcessed && len(summary.Errors) == 0:
		status = models.RunStatusSuccess
	case summary.SourcesSuccessful > 0:
		status = models.RunStatusPartial
	}

	details, err := json.Marshal(summary)
	if err != nil {
		logger.Error("failed to encode summary", "error", err)
	}
	row := models.RunLog{
		ID:          uuid.NewString(),
		RunID:       summary.RunID,
		Source:      models.OrchestratedSource,
		EventsFound: summary.TotalEventsFound,
		EventsAdded: summary.TotalEventsAdded,
		Status:      status,
		Timestamp:   o.now().UTC(),
		Details:     details,
	}
	if len(summary.Errors) > 0 {
		row.ErrorMessage = summary.Errors[0]
	}
	if err := o.deps.Store.AppendRunLog(ctx, row); err != nil {
		logger.Error("failed to append run log", "source", row.Source, "error", err)
	}

	if o.deps.Metrics != nil {
		o.deps.Metrics.ObserveRun(time.Duration(summary.TotalRuntimeMS)*time.Millisecond, summary.DuplicatesRemoved)
	}
	if o.deps.Notifier != nil {
		if err := o.deps.Notifier.PublishRunCompleted(ctx, copySummary(*summary)); err != nil {
			logger.Warn("failed to publish run summary", "error", err)
		}
	}

	stored := copySummary(*summary)
	o.mu.Lock()
	o.last = &stored
	o.state = RunState{RunID: summary.RunID, Phase: PhaseSummarized, StartedAt: summary.StartedAt}
	o.mu.Unlock()
}

func (o *Orchestrator) setState(s RunState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Recommendations derives operator hints from a finished summary.
func Recommendations(s models.Summary) []string {
	recs := []string{}

	if time.Duration(s.TotalRuntimeMS)*time.Millisecond > slowRunThreshold {
		recs = append(recs, `Consider using "fast" strategy for quicker results`)
	}

	failed := 0
	for _, r := range s.CollectionResults {
		if !r.Success {
			failed++
		}
	}
	if failed > 0 {
		recs = append(recs, fmt.Sprintf("%d sources failed - check API credentials and network connectivity", failed))
	}

	if s.FinalUniqueEvents == 0 {
		recs = append(recs, "No events collected - verify API keys and search strategies")
	} else if s.DuplicatesRemoved > s.FinalUniqueEvents {
		recs = append(recs, "High duplication rate - consider refining source selection")
	}

	rate := 0.0
	if s.TotalEventsFound > 0 {
		rate = roundTenth(float64(s.TotalEventsAdded) / float64(s.TotalEventsFound) * 100)
	}
	if rate < lowRelevanceRate {
		recs = append(recs, "Low relevance rate - consider updating keyword strategies")
	} else if rate > highRelevanceRate {
		recs = append(recs, "High relevance rate - consider expanding search terms for broader coverage")
	}

	if s.SourcesSuccessful == s.SourcesProcessed && s.FinalUniqueEvents > 0 {
		recs = append(recs, "Collection successful - consider scheduling regular runs")
	}
	return recs
}

func percent(part, whole int) string {
	return fmt.Sprintf("%.1f%%", float64(part)/float64(whole)*100)
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func copySummary(s models.Summary) models.Summary {
	out := s
	out.CollectionResults = append([]models.CollectionResult{}, s.CollectionResults...)
	out.Errors = append([]string{}, s.Errors...)
	out.Recommendations = append([]string{}, s.Recommendations...)
	if s.Dedup != nil {
		d := *s.Dedup
		out.Dedup = &d
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
