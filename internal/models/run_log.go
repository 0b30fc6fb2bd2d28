package models

import (
	"encoding/json"
	"time"
)

// RunStatus is the outcome recorded for an adapter or a whole run.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial"
	RunStatusFailed  RunStatus = "failed"
)

// OrchestratedSource is the source name used for the per-run log row.
const OrchestratedSource = "orchestrated_collection"

// DedupSource is the source name used for the log row of every dedup pass,
// whether it ran inside a collection run or on its own.
const DedupSource = "deduplication"

// RunLog is one persisted row describing an adapter invocation or a full run.
type RunLog struct {
	ID           string          `json:"id"`
	RunID        string          `json:"run_id"`
	Source       string          `json:"source"`
	EventsFound  int             `json:"events_found"`
	EventsAdded  int             `json:"events_added"`
	Status       RunStatus       `json:"status"`
	Timestamp    time.Time       `json:"timestamp"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
}
