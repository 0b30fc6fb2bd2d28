package ingestion

import (
	"errors"
	"fmt"
)

// ErrAdapterTimeout is reported when an adapter exceeds its deadline.
var ErrAdapterTimeout = errors.New("timeout")

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("orchestration run already in progress")

// AdapterError is a transport, parse or timeout failure inside one adapter.
// It never aborts a run.
type AdapterError struct {
	Source string
	Err    error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// DeduplicationError is a failure of the dedup stage. Candidates collected
// earlier in the run stay valid.
type DeduplicationError struct {
	Err error
}

func (e *DeduplicationError) Error() string {
	return fmt.Sprintf("deduplication: %v", e.Err)
}

func (e *DeduplicationError) Unwrap() error { return e.Err }

// PersistenceError is a store write failure. In-memory results are kept and
// the run reports partial success.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// OrchestrationFatalError is an unexpected failure unrelated to any adapter
// or to dedup. It is returned together with the partial summary.
type OrchestrationFatalError struct {
	Err error
}

func (e *OrchestrationFatalError) Error() string {
	return fmt.Sprintf("orchestration failed: %v", e.Err)
}

func (e *OrchestrationFatalError) Unwrap() error { return e.Err }
