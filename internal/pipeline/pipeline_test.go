package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"capital-stack-lab/internal/domain"
	"capital-stack-lab/internal/observability"
	"capital-stack-lab/internal/rules"
	"capital-stack-lab/internal/storage/memory"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func newTestPipeline(opts Options) *Pipeline {
	if opts.Rules == nil {
		opts.Rules = rules.Default()
	}
	opts.Logger = quietLogger()
	return New(opts).
		WithClock(func() time.Time { return fixedTime }).
		WithRunID(func() string { return "run-1" })
}

func TestPipeline_Run(t *testing.T) {
	ctx := context.Background()
	records := memory.NewScenarioRecordStore()
	payouts := memory.NewPayoutStore()

	p := newTestPipeline(Options{RecordStore: records, PayoutStore: payouts})
	result, err := p.Run(ctx, SampleProject())
	require.NoError(t, err)

	require.Equal(t, "run-1", result.RunID)
	require.Equal(t, fixedTime, result.CreatedAt)
	require.Len(t, result.Scenarios, len(rules.Default().Templates))
	require.Empty(t, result.Warnings)

	// ca-fed 25 + ca-on 21.5 hits the 40% stacking cap on 16M qualifying spend.
	require.True(t, result.Claim.Capped)
	require.True(t, result.Claim.GrossCredit.Equal(decimal.NewFromInt(6400000)), "gross %s", result.Claim.GrossCredit)

	require.Equal(t, 12, result.Drawdown.Periods())
	require.True(t, result.Drawdown.Sum().Equal(SampleProject().Budget))

	for i, res := range result.Scenarios {
		require.Equal(t, i+1, res.Rank)
		require.NotNil(t, res.Scores)
		require.NotEmpty(t, res.ScenarioID)
		if i > 0 {
			require.LessOrEqual(t, res.Scores.Strategic.Value, result.Scenarios[i-1].Scores.Strategic.Value)
		}
	}

	best, ok := result.Best()
	require.True(t, ok)
	require.Equal(t, result.Scenarios[0].Template.Name, best.Template.Name)

	stored, err := records.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, stored, len(result.Scenarios))
	require.Equal(t, len(stored), result.RecordsStored)
	for i, r := range stored {
		require.Equal(t, i+1, r.Rank)
		require.Equal(t, "northern-lights", r.ProjectName)
		require.Equal(t, fixedTime.UnixMilli(), r.CreatedAt)
		require.Nil(t, r.RecoupmentProbability)
	}

	wantPayouts := 0
	for _, res := range result.Scenarios {
		wantPayouts += len(res.Waterfall.Periods) * len(res.Waterfall.Tranches)
	}
	require.Equal(t, wantPayouts, result.PayoutsStored)

	rows, err := payouts.GetByScenario(ctx, "run-1", best.ScenarioID)
	require.NoError(t, err)
	require.Len(t, rows, len(best.Waterfall.Periods)*len(best.Waterfall.Tranches))
}

func TestPipeline_PayoutsMatchWaterfall(t *testing.T) {
	ctx := context.Background()
	payouts := memory.NewPayoutStore()

	result, err := newTestPipeline(Options{PayoutStore: payouts}).Run(ctx, SampleProject())
	require.NoError(t, err)
	require.Zero(t, result.RecordsStored)

	for _, res := range result.Scenarios {
		rows, err := payouts.GetByScenario(ctx, result.RunID, res.ScenarioID)
		require.NoError(t, err)

		paid := decimal.Zero
		for _, row := range rows {
			paid = paid.Add(row.Paid)
		}
		if !paid.Equal(res.Waterfall.TotalDistributed()) {
			t.Errorf("%s: stored payouts %s, waterfall distributed %s",
				res.Template.Name, paid, res.Waterfall.TotalDistributed())
		}
	}
}

func TestPipeline_Deterministic(t *testing.T) {
	r := rules.Default()
	r.Simulation.MinIterations = 50
	r.Simulation.MaxIterations = 100

	run := func() *RunResult {
		result, err := newTestPipeline(Options{Rules: r, Simulate: true, Seed: 7}).
			Run(context.Background(), SampleProject())
		require.NoError(t, err)
		return result
	}

	a, b := run(), run()
	require.Equal(t, len(a.Scenarios), len(b.Scenarios))
	for i := range a.Scenarios {
		require.Equal(t, a.Scenarios[i].ScenarioID, b.Scenarios[i].ScenarioID)
		require.Equal(t, a.Scenarios[i].Template.Name, b.Scenarios[i].Template.Name)
		require.NotNil(t, a.Scenarios[i].Recoupment)
		require.Equal(t, a.Scenarios[i].Recoupment.Probability, b.Scenarios[i].Recoupment.Probability)
		require.Equal(t, a.Scenarios[i].Recoupment.Iterations, b.Scenarios[i].Recoupment.Iterations)
	}
	require.Equal(t, a.Warnings, b.Warnings)
}

func TestPipeline_ScenarioCount(t *testing.T) {
	result, err := newTestPipeline(Options{ScenarioCount: 3}).Run(context.Background(), SampleProject())
	require.NoError(t, err)
	require.Len(t, result.Scenarios, 3)
}

func TestPipeline_DrawdownCurve(t *testing.T) {
	r := rules.Default()

	result, err := newTestPipeline(Options{ScenarioCount: 1}).Run(context.Background(), SampleProject())
	require.NoError(t, err)
	require.Equal(t, r.Drawdown.Steepness, result.Drawdown.Steepness)
	require.Equal(t, r.Drawdown.Midpoint, result.Drawdown.Midpoint)

	project := SampleProject()
	project.Steepness = 6
	project.Midpoint = 0.3
	result, err = newTestPipeline(Options{ScenarioCount: 1}).Run(context.Background(), project)
	require.NoError(t, err)
	require.Equal(t, 6.0, result.Drawdown.Steepness)
	require.Equal(t, 0.3, result.Drawdown.Midpoint)

	project.Steepness = -2
	_, err = newTestPipeline(Options{ScenarioCount: 1}).Run(context.Background(), project)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestPipeline_ValidationFailures(t *testing.T) {
	zeroBudget := SampleProject()
	zeroBudget.Budget = decimal.Zero

	unnamed := SampleProject()
	unnamed.Name = ""

	badRules := rules.Default()
	badRules.MonetaryPlaces = -1

	tests := []struct {
		name    string
		rules   *domain.BusinessRules
		project domain.Project
	}{
		{"zero budget", nil, zeroBudget},
		{"unnamed project", nil, unnamed},
		{"invalid rules", badRules, SampleProject()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestPipeline(Options{Rules: tt.rules}).Run(context.Background(), tt.project)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if !strings.Contains(err.Error(), "phase 1") {
				t.Errorf("expected a phase 1 failure, got %v", err)
			}
		})
	}
}

func TestPipeline_DuplicateRunFailsPersist(t *testing.T) {
	ctx := context.Background()
	records := memory.NewScenarioRecordStore()
	p := newTestPipeline(Options{RecordStore: records})

	_, err := p.Run(ctx, SampleProject())
	require.NoError(t, err)

	// Same run id and project produce the same keys.
	_, err = p.Run(ctx, SampleProject())
	require.Error(t, err)
	require.Contains(t, err.Error(), "phase 6")
}

func TestPipeline_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics("test", reg)

	p := newTestPipeline(Options{Metrics: m, RecordStore: memory.NewScenarioRecordStore()})
	_, err := p.Run(context.Background(), SampleProject())
	require.NoError(t, err)

	bad := SampleProject()
	bad.Budget = decimal.Zero
	_, err = p.Run(context.Background(), bad)
	require.Error(t, err)

	rec := httptest.NewRecorder()
	observability.HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, sample := range []string{
		`test_pipeline_runs_total{status="success"} 1`,
		`test_pipeline_runs_total{status="failed"} 1`,
		`test_scenario_evaluated_total{template="balanced"} 1`,
		`test_pipeline_duration_seconds_count{phase="persist"} 1`,
		`test_database_query_duration_seconds_count{database="memory",operation="insert_records"} 1`,
	} {
		if !strings.Contains(body, sample) {
			t.Errorf("metrics output missing %q", sample)
		}
	}
}
