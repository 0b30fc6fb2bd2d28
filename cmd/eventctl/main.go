package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/STRATINT/eventfeed/internal/app"
	"github.com/STRATINT/eventfeed/internal/config"
	"github.com/STRATINT/eventfeed/internal/enrichment"
	"github.com/STRATINT/eventfeed/internal/ingestion"
	"github.com/STRATINT/eventfeed/internal/logging"
	"github.com/STRATINT/eventfeed/internal/models"
	"github.com/STRATINT/eventfeed/internal/moderation"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load()

	ctl := cli.App{
		Name:  "eventctl",
		Usage: "operator tool for the community event pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "sources",
				Usage:   "path to the sources YAML file",
				EnvVars: []string{"SOURCES_FILE"},
			},
		},
	}
	ctl.Commands = []*cli.Command{
		{
			Name:  "run",
			Usage: "run one orchestrated collection and print the summary",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "strategy", Usage: "comprehensive, priority-only or fast"},
				&cli.BoolFlag{Name: "force-dedup", Usage: "deduplicate even when nothing was added"},
			},
			Action: runCollection,
		},
		{
			Name:   "dedup",
			Usage:  "deduplicate the stored candidate pool",
			Action: runDedup,
		},
		{
			Name:      "route",
			Usage:     "show the trust tier and initial status for a source",
			ArgsUsage: "<source>",
			Action:    runRoute,
		},
		{
			Name:      "score",
			Usage:     "score a listing without storing it",
			ArgsUsage: "<title>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "description"},
				&cli.StringFlag{Name: "location"},
				&cli.StringFlag{Name: "organizer"},
				&cli.StringFlag{Name: "date", Usage: "event date in any common format"},
				&cli.StringFlag{Name: "source", Value: string(models.SourceEventbrite)},
			},
			Action: runScore,
		},
	}
	ctl.RunAndExitOnError()
}

func loadConfig(cctx *cli.Context) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	if path := cctx.String("sources"); path != "" {
		cfg.Pipeline.SourcesFile = path
	}
	// Logs go to stderr so stdout stays machine readable.
	logger, err := logging.NewWithWriter(cfg.Logging, os.Stderr)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func build(cctx *cli.Context) (*app.App, error) {
	cfg, logger, err := loadConfig(cctx)
	if err != nil {
		return nil, err
	}
	return app.Build(cctx.Context, cfg, nil, logger)
}

func runCollection(cctx *cli.Context) error {
	pipeline, err := build(cctx)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := pipeline.Orchestrator.Run(ctx, ingestion.RunOptions{
		Strategy:   cctx.String("strategy"),
		ForceDedup: cctx.Bool("force-dedup"),
	})
	if printErr := printJSON(summary); printErr != nil {
		return printErr
	}
	return err
}

func runDedup(cctx *cli.Context) error {
	pipeline, err := build(cctx)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	stats, err := pipeline.Orchestrator.Deduplicate(cctx.Context)
	if printErr := printJSON(stats); printErr != nil {
		return printErr
	}
	return err
}

func runRoute(cctx *cli.Context) error {
	source := cctx.Args().First()
	if source == "" {
		return cli.Exit("need to provide a source as an argument", 1)
	}

	cfg, _, err := loadConfig(cctx)
	if err != nil {
		return err
	}
	sources, err := config.LoadSources(cfg.Pipeline.SourcesFile)
	if err != nil {
		return err
	}

	registry := moderation.NewTrustRegistry(sources.Trust)
	tag := models.SourceTag(source)
	return printJSON(map[string]string{
		"source":         source,
		"tier":           registry.Tier(tag).String(),
		"status":         string(registry.Route(tag)),
		"recommendation": string(registry.Recommendation(tag)),
	})
}

type scoreReport struct {
	Relevance   enrichment.RelevanceResult `json:"relevance"`
	Likelihood  enrichment.Likelihood      `json:"likelihood"`
	EventLikely bool                       `json:"event_likely"`
	Accepted    bool                       `json:"accepted"`
	Quality     float64                    `json:"quality"`
	Explanation string                     `json:"explanation"`
}

func runScore(cctx *cli.Context) error {
	title := cctx.Args().First()
	if title == "" {
		return cli.Exit("need to provide a title as an argument", 1)
	}

	source := models.SourceTag(cctx.String("source"))
	candidate := ingestion.Normalize(ingestion.RawListing{
		Title:       title,
		Description: cctx.String("description"),
		Location:    cctx.String("location"),
		Organizer:   cctx.String("organizer"),
		Date:        cctx.String("date"),
	}, source, time.Now())

	evaluator := enrichment.NewEvaluator(enrichment.NewRelevanceScorer(enrichment.DefaultTaxonomy()), nil)
	verdict := evaluator.Evaluate(context.Background(), candidate, nil, enrichment.DefaultPolicy(source))
	candidate.RelevanceScore = verdict.Relevance.Score
	candidate.EventLikely = verdict.EventLikely

	quality := enrichment.NewQualityScorer()
	return printJSON(scoreReport{
		Relevance:   verdict.Relevance,
		Likelihood:  verdict.Likelihood,
		EventLikely: verdict.EventLikely,
		Accepted:    verdict.Accepted,
		Quality:     quality.Score(candidate),
		Explanation: quality.Explain(candidate),
	})
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
