// Package main runs one project through the full pipeline:
// incentive → drawdown → scenarios → scoring → persistence → reporting
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"capital-stack-lab/internal/config"
	"capital-stack-lab/internal/domain"
	"capital-stack-lab/internal/observability"
	"capital-stack-lab/internal/pipeline"
	"capital-stack-lab/internal/reporting"
	"capital-stack-lab/internal/rules"
	"capital-stack-lab/internal/storage/backend"
)

func main() {
	logger := log.New(os.Stderr, "[pipeline] ", log.LstdFlags)

	if err := config.LoadDotEnv(".env"); err != nil {
		logger.Fatalf("Error: %v", err)
	}
	cfg, err := config.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		logger.Fatalf("Error: %v", err)
	}

	// Cancel on SIGINT/SIGTERM; a running simulation stops with a warning.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Printf("Error: %v", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	businessRules, err := loadRules(cfg.RulesFile)
	if err != nil {
		return err
	}
	project, err := loadProject(cfg.ProjectFile)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics("", nil)
	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr, logger)
		defer shutdown(srv)
	}

	stores, err := backend.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	p := pipeline.New(pipeline.Options{
		Rules:          businessRules,
		RecordStore:    stores.Records,
		PayoutStore:    stores.Payouts,
		RecordDatabase: stores.RecordDatabase,
		PayoutDatabase: stores.PayoutDatabase,
		Metrics:        metrics,
		Logger:         logger,
		ScenarioCount:  cfg.ScenarioCount,
		Seed:           cfg.Seed,
		Simulate:       cfg.Simulate,
		Verbose:        cfg.Verbose,
	})

	fmt.Printf("=== Capital Stack Pipeline: %s ===\n", project.Name)
	result, err := p.Run(ctx, project)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	paths, err := reporting.WriteFiles(cfg.OutputDir, reporting.FromRun(result, result.CreatedAt), metrics)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	printSummary(result, stores)
	fmt.Println("\nGenerated:")
	for _, path := range paths {
		fmt.Printf("  - %s\n", path)
	}
	return nil
}

func loadRules(path string) (*domain.BusinessRules, error) {
	if path == "" {
		return rules.Default(), nil
	}
	return rules.Load(path)
}

func loadProject(path string) (domain.Project, error) {
	if path == "" {
		return pipeline.SampleProject(), nil
	}
	return pipeline.LoadProject(path)
}

func printSummary(result *pipeline.RunResult, stores *backend.Backend) {
	fmt.Printf("Run %s\n", result.RunID)
	if c := result.Claim; c != nil {
		fmt.Printf("  Tax credit: %s at %s%% (capped=%t)\n", c.GrossCredit, c.EffectiveRatePct, c.Capped)
	}
	fmt.Printf("  Scenarios: %d\n", len(result.Scenarios))
	for _, s := range result.Scenarios {
		line := fmt.Sprintf("    %d. %-18s strategic %6.2f", s.Rank, s.Template.Name, s.Scores.Strategic.Value)
		if est := s.Recoupment; est != nil {
			line += fmt.Sprintf("  P(recoup) %.3f", est.Probability)
		}
		fmt.Println(line)
	}
	if len(result.Warnings) > 0 {
		fmt.Printf("  Warnings: %d\n", len(result.Warnings))
		for _, w := range result.Warnings {
			fmt.Printf("    - %s\n", w)
		}
	}
	if stores.Persistent() {
		fmt.Printf("  Stored %d records in %s, %d payouts in %s\n",
			result.RecordsStored, stores.RecordDatabase, result.PayoutsStored, stores.PayoutDatabase)
	}
}

// startMetricsServer serves /metrics and /health in the background.
func startMetricsServer(addr string, logger *log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", observability.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Printf("Metrics server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("Metrics server error: %v", err)
		}
	}()
	return srv
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
