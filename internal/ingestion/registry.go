package ingestion

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/STRATINT/eventfeed/internal/config"
	"github.com/STRATINT/eventfeed/internal/enrichment"
	"github.com/STRATINT/eventfeed/internal/models"
)

// BuildAdapters constructs adapter specs from the sources file. All adapters
// share client and limiter so per-origin spacing holds across adapters.
func BuildAdapters(file config.SourcesFile, client *http.Client, limiter *OriginLimiter, logger *slog.Logger) ([]AdapterSpec, error) {
	specs := make([]AdapterSpec, 0, len(file.Adapters))
	for _, cfg := range file.Adapters {
		var adapter Adapter
		switch cfg.Kind {
		case "rss":
			adapter = NewRSSAdapter(cfg, client, limiter, logger)
		case "html":
			adapter = NewHTMLAdapter(cfg, client, limiter, logger)
		default:
			return nil, fmt.Errorf("adapter %s: unsupported kind %q", cfg.Name, cfg.Kind)
		}

		specs = append(specs, AdapterSpec{
			Adapter: adapter,
			Tier:    cfg.Tier,
			Timeout: cfg.Timeout,
			Policy:  policyFor(cfg),
		})
	}
	return specs, nil
}

// policyFor picks the built-in policy for well-known source tags, falls back
// to the adapter kind otherwise, then applies overrides from the file.
func policyFor(cfg config.AdapterConfig) enrichment.AcceptancePolicy {
	var policy enrichment.AcceptancePolicy
	switch tag := models.SourceTag(cfg.Source); tag {
	case models.SourceEventbrite, models.SourceOutsavvy, models.SourceRSSFeed, models.SourceWebScraping:
		policy = enrichment.DefaultPolicy(tag)
	default:
		if cfg.Kind == "rss" {
			policy = enrichment.FeedPolicy
		} else {
			policy = enrichment.WebScrapingPolicy
		}
	}

	if cfg.MinRelevance > 0 {
		policy.MinRelevance = cfg.MinRelevance
	}
	if cfg.RequireEventSignal {
		policy.RequireEventSignal = true
	}
	return policy
}
