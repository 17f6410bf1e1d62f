// Package pipeline runs a project end to end.
// It coordinates: incentive → drawdown → scenarios → scoring → ranking → persistence
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"capital-stack-lab/internal/domain"
	"capital-stack-lab/internal/drawdown"
	"capital-stack-lab/internal/incentive"
	"capital-stack-lab/internal/observability"
	"capital-stack-lab/internal/scenario"
	"capital-stack-lab/internal/scoring"
	"capital-stack-lab/internal/storage"
)

// Pipeline coordinates one project evaluation.
type Pipeline struct {
	rules *domain.BusinessRules

	// Stores, both optional
	recordStore    storage.ScenarioRecordStore
	payoutStore    storage.PayoutStore
	recordDatabase string
	payoutDatabase string

	metrics *observability.Metrics
	logger  *log.Logger

	scenarioCount int
	seed          uint64
	simulate      bool
	verbose       bool

	clock func() time.Time
	newID func() string
}

// Options for creating a Pipeline.
type Options struct {
	Rules *domain.BusinessRules

	// Optional persistence. Nil stores skip the persist phase.
	RecordStore    storage.ScenarioRecordStore
	PayoutStore    storage.PayoutStore
	RecordDatabase string // metrics label, default "memory"
	PayoutDatabase string // metrics label, default "memory"

	Metrics *observability.Metrics // optional
	Logger  *log.Logger            // default: stderr with [pipeline] prefix

	ScenarioCount int    // 0 = every configured template
	Seed          uint64 // 0 = rules.Simulation.Seed
	Simulate      bool   // run the recoupment estimator
	Verbose       bool
}

// New creates a new Pipeline.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[pipeline] ", log.LstdFlags)
	}
	recordDB, payoutDB := opts.RecordDatabase, opts.PayoutDatabase
	if recordDB == "" {
		recordDB = "memory"
	}
	if payoutDB == "" {
		payoutDB = "memory"
	}

	return &Pipeline{
		rules:          opts.Rules,
		recordStore:    opts.RecordStore,
		payoutStore:    opts.PayoutStore,
		recordDatabase: recordDB,
		payoutDatabase: payoutDB,
		metrics:        opts.Metrics,
		logger:         logger,
		scenarioCount:  opts.ScenarioCount,
		seed:           opts.Seed,
		simulate:       opts.Simulate,
		verbose:        opts.Verbose,
		clock:          func() time.Time { return time.Now().UTC() },
		newID:          uuid.NewString,
	}
}

// WithClock sets a custom clock function for deterministic output.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	return p
}

// WithRunID fixes the run id generator for deterministic output.
func (p *Pipeline) WithRunID(newID func() string) *Pipeline {
	p.newID = newID
	return p
}

// RunResult contains results from one pipeline execution.
type RunResult struct {
	RunID     string
	Project   domain.Project
	Claim     *domain.TaxCreditClaim
	Drawdown  *domain.InvestmentDrawdown
	Scenarios []domain.ScenarioResult // ranked, best first
	CreatedAt time.Time

	RecordsStored int
	PayoutsStored int
	Warnings      []string
}

// Best returns the top-ranked scenario.
func (r *RunResult) Best() (domain.ScenarioResult, bool) {
	if len(r.Scenarios) == 0 {
		return domain.ScenarioResult{}, false
	}
	return r.Scenarios[0], true
}

// Run executes the full pipeline for project.
// Phases:
//  1. Validate rules and project
//  2. Compute the tax credit claim
//  3. Schedule the drawdown over the production periods
//  4. Generate and evaluate scenarios
//  5. Score and rank
//  6. Persist records and payouts (when stores are configured)
func (p *Pipeline) Run(ctx context.Context, project domain.Project) (*RunResult, error) {
	start := time.Now()
	result, err := p.run(ctx, project)

	status := "success"
	if err != nil {
		status = "failed"
	}
	if p.metrics != nil {
		p.metrics.RecordPipelineRun(status, time.Since(start).Seconds())
		if err == nil {
			p.metrics.LastSuccessfulPipeline.Set(float64(p.clock().Unix()))
		}
	}
	return result, err
}

func (p *Pipeline) run(ctx context.Context, project domain.Project) (*RunResult, error) {
	// Phase 1: Validation
	if p.rules == nil {
		return nil, domain.NewValidationError("rules", "business rules are required")
	}
	if err := p.rules.Validate(); err != nil {
		return nil, fmt.Errorf("phase 1 (rules) failed: %w", err)
	}
	if err := project.Validate(); err != nil {
		return nil, fmt.Errorf("phase 1 (project) failed: %w", err)
	}

	result := &RunResult{
		RunID:     p.newID(),
		Project:   project,
		CreatedAt: p.clock(),
	}
	p.log("Run %s: project %s, budget %s", result.RunID, project.Name, project.Budget)

	// Phase 2: Incentive
	p.log("Phase 2: Computing tax credit...")
	phaseStart := time.Now()
	claim, err := incentive.Calculate(p.rules, domain.IncentiveRequest{
		Budget:          project.Budget,
		QualifyingSpend: project.QualifyingSpend,
		Jurisdictions:   project.Jurisdictions,
		StackingCapPct:  project.StackingCapPct,
	})
	if err != nil {
		return nil, fmt.Errorf("phase 2 (incentive) failed: %w", err)
	}
	p.observePhase("incentive", phaseStart)
	result.Claim = claim
	p.log("  Gross credit %s at %s%% (capped=%t)", claim.GrossCredit, claim.EffectiveRatePct, claim.Capped)

	// Phase 3: Drawdown
	p.log("Phase 3: Scheduling drawdown...")
	phaseStart = time.Now()
	dd, err := drawdown.Schedule(p.rules, drawdownRequest(p.rules, project))
	if err != nil {
		return nil, fmt.Errorf("phase 3 (drawdown) failed: %w", err)
	}
	p.observePhase("drawdown", phaseStart)
	result.Drawdown = dd
	p.log("  %d periods, k=%.2f m=%.2f", dd.Periods(), dd.Steepness, dd.Midpoint)

	// Phase 4: Scenarios
	p.log("Phase 4: Evaluating scenarios...")
	phaseStart = time.Now()
	genOpts := scenario.GeneratorOptions{}
	if p.simulate {
		genOpts.Estimator = scenario.NewRecoupmentEstimator(p.seed)
	}
	n := p.scenarioCount
	if n == 0 {
		n = len(p.rules.Templates)
	}
	results, err := scenario.NewGenerator(genOpts).Generate(ctx, p.rules, domain.ScenarioInput{
		Project:  project,
		Claim:    claim,
		Drawdown: dd,
	}, n)
	if err != nil {
		return nil, fmt.Errorf("phase 4 (scenarios) failed: %w", err)
	}
	p.observePhase("scenarios", phaseStart)
	p.log("  Evaluated %d scenarios", len(results))

	// Phase 5: Scoring and ranking
	p.log("Phase 5: Scoring...")
	phaseStart = time.Now()
	for i := range results {
		scores, err := scoring.Score(p.rules, &results[i])
		if err != nil {
			return nil, fmt.Errorf("phase 5 (score %s) failed: %w", results[i].Template.Name, err)
		}
		results[i].Scores = scores
	}
	ranked, err := scoring.Rank(results)
	if err != nil {
		return nil, fmt.Errorf("phase 5 (rank) failed: %w", err)
	}
	p.observePhase("scoring", phaseStart)
	result.Scenarios = ranked

	for _, res := range ranked {
		p.recordScenario(res)
		if w := warningOf(res); w != nil {
			msg := fmt.Sprintf("%s: %v", res.Template.Name, w)
			result.Warnings = append(result.Warnings, msg)
			p.logger.Printf("WARN: %s", msg)
		}
	}
	if best, ok := result.Best(); ok {
		p.log("  Top scenario %s (strategic %.2f)", best.Template.Name, best.Scores.Strategic.Value)
	}

	// Phase 6: Persistence
	if p.recordStore != nil || p.payoutStore != nil {
		p.log("Phase 6: Persisting...")
		phaseStart = time.Now()
		if err := p.persist(ctx, result); err != nil {
			return nil, fmt.Errorf("phase 6 (persist) failed: %w", err)
		}
		p.observePhase("persist", phaseStart)
		p.log("  Stored %d records, %d payouts", result.RecordsStored, result.PayoutsStored)
	}

	p.log("Pipeline completed: run %s, %d scenarios", result.RunID, len(result.Scenarios))
	return result, nil
}

// persist writes scenario records and per-period payouts.
func (p *Pipeline) persist(ctx context.Context, result *RunResult) error {
	createdAt := result.CreatedAt.UnixMilli()

	if p.recordStore != nil {
		records := make([]*domain.ScenarioRecord, len(result.Scenarios))
		for i := range result.Scenarios {
			records[i] = BuildRecord(result.RunID, result.Project.Name, &result.Scenarios[i], createdAt)
		}
		start := time.Now()
		err := p.recordStore.InsertBulk(ctx, records)
		p.observeDB(p.recordDatabase, "insert_records", start, err)
		if err != nil {
			return fmt.Errorf("insert records: %w", err)
		}
		result.RecordsStored = len(records)
	}

	if p.payoutStore != nil {
		var points []*domain.PayoutPoint
		for i := range result.Scenarios {
			points = append(points, BuildPayouts(result.RunID, &result.Scenarios[i])...)
		}
		start := time.Now()
		err := p.payoutStore.InsertBulk(ctx, points)
		p.observeDB(p.payoutDatabase, "insert_payouts", start, err)
		if err != nil {
			return fmt.Errorf("insert payouts: %w", err)
		}
		result.PayoutsStored = len(points)
	}
	return nil
}

func (p *Pipeline) recordScenario(res domain.ScenarioResult) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordScenario(res.Template.Name, len(res.Waterfall.Periods), len(res.Waterfall.Unrecouped()), res.Scores.Strategic.Value)
	if est := res.Recoupment; est != nil {
		cancelled := est.Warning != nil && est.Warning.Cancelled
		p.metrics.RecordSimulation(est.Iterations, est.Converged, cancelled)
	}
}

func (p *Pipeline) observePhase(phase string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordPhase(phase, time.Since(start).Seconds())
	}
}

func (p *Pipeline) observeDB(database, operation string, start time.Time, err error) {
	if p.metrics != nil {
		p.metrics.RecordDBQuery(database, operation, time.Since(start).Seconds(), err)
	}
}

// drawdownRequest fills the project's omitted schedule fields from rules.
func drawdownRequest(rules *domain.BusinessRules, project domain.Project) domain.DrawdownRequest {
	req := domain.DrawdownRequest{
		Total:     project.Budget,
		Periods:   project.ProductionPeriods,
		Steepness: project.Steepness,
		Midpoint:  project.Midpoint,
	}
	if req.Periods == 0 {
		req.Periods = rules.Drawdown.Periods
	}
	if req.Steepness == 0 {
		req.Steepness = rules.Drawdown.Steepness
	}
	if req.Midpoint == 0 {
		req.Midpoint = rules.Drawdown.Midpoint
	}
	return req
}

// warningOf returns the scenario's convergence warning, if any.
func warningOf(res domain.ScenarioResult) error {
	if res.Recoupment == nil || res.Recoupment.Warning == nil {
		return nil
	}
	return res.Recoupment.Warning
}

func (p *Pipeline) log(format string, args ...interface{}) {
	if p.verbose {
		p.logger.Printf(format, args...)
	}
}
