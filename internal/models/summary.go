package models

import (
	"time"
)

// CollectionResult is the outcome of invoking one source adapter during a run.
type CollectionResult struct {
	Source            string    `json:"source"`
	Success           bool      `json:"success"`
	Status            RunStatus `json:"status"`
	EventsFound       int       `json:"events_found"`
	EventsAdded       int       `json:"events_added"`
	RelevanceRate     string    `json:"relevance_rate,omitempty"`
	AvgRelevanceScore float64   `json:"avg_relevance_score,omitempty"`
	DurationMS        int64     `json:"duration_ms"`
	Error             string    `json:"error,omitempty"`
}

// DuplicateGroup records which candidates were folded into a canonical record.
type DuplicateGroup struct {
	PrimaryID    string   `json:"primary_id"`
	DuplicateIDs []string `json:"duplicate_ids"`
	Confidence   float64  `json:"confidence"`
}

// DedupStats is the contract returned by the deduplication stage. The groups
// and the pre-merge quality scores are kept so removed ids stay auditable
// after the pool has been rewritten.
type DedupStats struct {
	Success                bool               `json:"success"`
	EventsProcessed        int                `json:"events_processed"`
	DuplicateGroupsFound   int                `json:"duplicate_groups_found"`
	TotalDuplicatesRemoved int                `json:"total_duplicates_removed"`
	UniqueEventsRemaining  int                `json:"unique_events_remaining"`
	AvgQualityScore        string             `json:"avg_quality_score"`
	DeduplicationRate      string             `json:"deduplication_rate"`
	HighQualityEvents      int                `json:"high_quality_events"`
	DuplicateGroups        []DuplicateGroup   `json:"duplicate_groups,omitempty"`
	QualityScores          map[string]float64 `json:"quality_scores,omitempty"`
	Error                  string             `json:"error,omitempty"`
}

// Summary describes one orchestrated collection run. It is built once at the
// end of the run and never mutated afterwards.
type Summary struct {
	RunID                  string             `json:"run_id"`
	Strategy               string             `json:"strategy"`
	Success                bool               `json:"success"`
	StartedAt              time.Time          `json:"started_at"`
	TotalRuntimeMS         int64              `json:"total_runtime_ms"`
	SourcesProcessed       int                `json:"sources_processed"`
	SourcesSuccessful      int                `json:"sources_successful"`
	TotalEventsFound       int                `json:"total_events_found"`
	TotalEventsAdded       int                `json:"total_events_added"`
	OverallRelevanceRate   string             `json:"overall_relevance_rate"`
	AvgQualityScore        string             `json:"avg_quality_score"`
	DeduplicationPerformed bool               `json:"deduplication_performed"`
	DuplicatesRemoved      int                `json:"duplicates_removed"`
	FinalUniqueEvents      int                `json:"final_unique_events"`
	CollectionResults      []CollectionResult `json:"collection_results"`
	Errors                 []string           `json:"errors"`
	Recommendations        []string           `json:"recommendations"`
	Dedup                  *DedupStats        `json:"deduplication,omitempty"`
}
