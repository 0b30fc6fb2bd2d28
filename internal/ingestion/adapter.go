package ingestion

import (
	"context"
	"time"

	"github.com/STRATINT/eventfeed/internal/enrichment"
	"github.com/STRATINT/eventfeed/internal/models"
)

// Adapter converts one external origin into normalized candidates.
type Adapter interface {
	// Name returns the unique identifier for this adapter.
	Name() string

	// Collect fetches the origin once. Transport and parse failures are
	// returned as an error rather than a panic; the result is not restartable.
	Collect(ctx context.Context) ([]models.CandidateEvent, error)
}

// DefaultAdapterTimeout bounds a single Collect call when a spec sets none.
const DefaultAdapterTimeout = 60 * time.Second

// AdapterSpec registers an adapter with the orchestrator.
type AdapterSpec struct {
	Adapter Adapter
	Tier    int
	Timeout time.Duration
	Policy  enrichment.AcceptancePolicy
}

// Name returns the adapter name.
func (s AdapterSpec) Name() string {
	return s.Adapter.Name()
}

func (s AdapterSpec) timeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultAdapterTimeout
	}
	return s.Timeout
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc struct {
	AdapterName string
	Fn          func(ctx context.Context) ([]models.CandidateEvent, error)
}

// Name implements Adapter.
func (f AdapterFunc) Name() string { return f.AdapterName }

// Collect implements Adapter.
func (f AdapterFunc) Collect(ctx context.Context) ([]models.CandidateEvent, error) {
	return f.Fn(ctx)
}
