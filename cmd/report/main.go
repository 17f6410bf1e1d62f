// Package main regenerates reports for runs already persisted in SQLite or
// PostgreSQL/ClickHouse.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"capital-stack-lab/internal/config"
	"capital-stack-lab/internal/domain"
	"capital-stack-lab/internal/observability"
	"capital-stack-lab/internal/pipeline"
	"capital-stack-lab/internal/reporting"
	"capital-stack-lab/internal/rules"
	"capital-stack-lab/internal/storage"
	"capital-stack-lab/internal/storage/backend"
	"capital-stack-lab/internal/verification"
)

func main() {
	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	runID := flag.String("run-id", "", "run to report on")
	listProject := flag.String("list", "", "list stored runs of this project instead of reporting")
	verify := flag.Bool("verify", false, "replay --project/--rules/--seed and compare with the stored run")

	if err := config.LoadDotEnv(".env"); err != nil {
		logger.Fatalf("Error: %v", err)
	}
	cfg, err := config.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		logger.Fatalf("Error: %v", err)
	}
	if cfg.Store != config.StoreSqlite && cfg.Store != config.StoreDatabase {
		logger.Fatalf("Error: --store must be sqlite or database, got %q", cfg.Store)
	}
	if *runID == "" && *listProject == "" {
		logger.Fatal("Error: --run-id or --list is required")
	}

	ctx := context.Background()
	stores, err := backend.Open(ctx, cfg)
	if err != nil {
		logger.Fatalf("Error connecting to storage: %v", err)
	}
	defer stores.Close()

	switch {
	case *listProject != "":
		err = listRuns(ctx, stores.Records, *listProject)
	case *verify:
		err = verifyRun(ctx, cfg, stores, *runID, logger)
	default:
		err = generate(ctx, stores, *runID, cfg.OutputDir)
	}
	if err != nil {
		logger.Printf("Error: %v", err)
		stores.Close()
		os.Exit(1)
	}
}

func generate(ctx context.Context, stores *backend.Backend, runID, outputDir string) error {
	gen := reporting.NewGenerator(stores.Records, stores.Payouts)
	report, err := gen.Generate(ctx, runID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics("", nil)
	paths, err := reporting.WriteFiles(outputDir, report, metrics)
	if err != nil {
		return err
	}

	fmt.Printf("Report for run %s (%s) generated:\n", runID, report.ProjectName)
	for _, path := range paths {
		fmt.Printf("  - %s\n", path)
	}
	return nil
}

// listRuns prints one line per stored scenario of project, oldest run first.
func listRuns(ctx context.Context, records storage.ScenarioRecordStore, project string) error {
	rows, err := records.GetByProject(ctx, project)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Printf("No stored runs for %s\n", project)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tRUN\tRANK\tTEMPLATE\tSTRATEGIC\tUNRECOUPED")
	for _, r := range rows {
		created := time.UnixMilli(r.CreatedAt).UTC().Format(time.RFC3339)
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%.2f\t%d\n",
			created, r.RunID, r.Rank, r.TemplateName, r.StrategicScore, r.UnrecoupedCount)
	}
	return w.Flush()
}

// verifyRun replays the configured project without persistence and compares
// the result with the stored run.
func verifyRun(ctx context.Context, cfg config.Config, stores *backend.Backend, runID string, logger *log.Logger) error {
	if runID == "" {
		return errors.New("--verify needs --run-id")
	}

	businessRules := rules.Default()
	if cfg.RulesFile != "" {
		r, err := rules.Load(cfg.RulesFile)
		if err != nil {
			return err
		}
		businessRules = r
	}
	var project domain.Project
	if cfg.ProjectFile == "" {
		project = pipeline.SampleProject()
	} else {
		p, err := pipeline.LoadProject(cfg.ProjectFile)
		if err != nil {
			return err
		}
		project = p
	}

	replay, err := pipeline.New(pipeline.Options{
		Rules:         businessRules,
		Logger:        logger,
		ScenarioCount: cfg.ScenarioCount,
		Seed:          cfg.Seed,
		Simulate:      cfg.Simulate,
		Verbose:       cfg.Verbose,
	}).Run(ctx, project)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	report, err := verification.NewRunVerifier(stores.Records, stores.Payouts).VerifyRun(ctx, runID, replay)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s: %d scenarios, %d matched, %d divergent\n",
		runID, report.TotalScenarios, report.MatchedScenarios, report.DivergentScenarios)
	for _, r := range report.Results {
		if r.Match {
			continue
		}
		fmt.Printf("  %s (%s)\n", r.TemplateName, r.ScenarioID)
		for _, div := range r.Divergences {
			fmt.Printf("    %s: stored %v, replayed %v\n", div.Field, div.Expected, div.Actual)
		}
	}
	if !report.OK() {
		return fmt.Errorf("run %s does not reproduce", runID)
	}
	return nil
}
