package reporting

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"capital-stack-lab/internal/pipeline"
	"capital-stack-lab/internal/rules"
	"capital-stack-lab/internal/storage"
	"capital-stack-lab/internal/storage/memory"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// runSample runs the sample project through a pipeline backed by memory stores.
func runSample(t *testing.T) (*pipeline.RunResult, *memory.ScenarioRecordStore, *memory.PayoutStore) {
	t.Helper()
	records := memory.NewScenarioRecordStore()
	payouts := memory.NewPayoutStore()

	p := pipeline.New(pipeline.Options{
		Rules:       rules.Default(),
		RecordStore: records,
		PayoutStore: payouts,
		Logger:      log.New(io.Discard, "", 0),
	}).
		WithClock(func() time.Time { return fixedTime }).
		WithRunID(func() string { return "run-1" })

	run, err := p.Run(context.Background(), pipeline.SampleProject())
	require.NoError(t, err)
	return run, records, payouts
}

func TestFromRun(t *testing.T) {
	run, _, _ := runSample(t)
	r := FromRun(run, fixedTime)

	require.Equal(t, "run-1", r.RunID)
	require.Equal(t, "northern-lights", r.ProjectName)
	require.NotNil(t, r.Claim)
	require.Len(t, r.Drawdown, 12)
	require.Len(t, r.Scenarios, len(run.Scenarios))

	for i, s := range r.Scenarios {
		require.Equal(t, i+1, s.Rank)
		require.Equal(t, run.Scenarios[i].Template.Name, s.Template)
		require.NotEmpty(t, s.StrategicClass)
	}

	wantTranches, wantPayouts := 0, 0
	for _, res := range run.Scenarios {
		wantTranches += len(res.Waterfall.Tranches)
		wantPayouts += len(res.Waterfall.Tranches) * len(res.Waterfall.Periods)
	}
	require.Len(t, r.Tranches, wantTranches)
	require.Len(t, r.Payouts, wantPayouts)
}

func TestGenerator_MatchesLiveRun(t *testing.T) {
	run, records, payouts := runSample(t)
	live := FromRun(run, fixedTime)

	stored, err := NewGenerator(records, payouts).
		WithClock(func() time.Time { return fixedTime }).
		Generate(context.Background(), "run-1")
	require.NoError(t, err)

	require.Nil(t, stored.Claim)
	require.Nil(t, stored.Drawdown)
	require.Equal(t, live.ProjectName, stored.ProjectName)
	require.True(t, live.Budget.Equal(stored.Budget))

	require.Len(t, stored.Scenarios, len(live.Scenarios))
	for i := range live.Scenarios {
		a, b := live.Scenarios[i], stored.Scenarios[i]
		require.Equal(t, a.Rank, b.Rank)
		require.Equal(t, a.ScenarioID, b.ScenarioID)
		require.Equal(t, a.Strategic, b.Strategic)
		require.True(t, a.FixedPaid.Equal(b.FixedPaid))
		require.Equal(t, a.Unrecouped, b.Unrecouped)
	}

	require.Len(t, stored.Tranches, len(live.Tranches))
	for i := range live.Tranches {
		a, b := live.Tranches[i], stored.Tranches[i]
		require.Equal(t, a.Template, b.Template)
		require.Equal(t, a.Tranche, b.Tranche)
		if !a.Paid.Equal(b.Paid) || !a.Entitlement.Equal(b.Entitlement) || !a.Unrecouped.Equal(b.Unrecouped) {
			t.Errorf("%s/%s: live (%s, %s, %s) stored (%s, %s, %s)", a.Template, a.Tranche,
				a.Entitlement, a.Paid, a.Unrecouped, b.Entitlement, b.Paid, b.Unrecouped)
		}
	}

	require.Equal(t, mustPayoutsCSV(t, live.Payouts), mustPayoutsCSV(t, stored.Payouts))
}

func mustPayoutsCSV(t *testing.T, rows []PayoutRow) string {
	t.Helper()
	out, err := RenderPayoutsCSV(rows)
	require.NoError(t, err)
	return out
}

func TestGenerator_UnknownRun(t *testing.T) {
	_, err := NewGenerator(memory.NewScenarioRecordStore(), memory.NewPayoutStore()).
		Generate(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRenderMarkdown(t *testing.T) {
	run, _, _ := runSample(t)
	r := FromRun(run, fixedTime)
	r.Warnings = []string{"balanced: estimate did not converge"}

	md := RenderMarkdown(r)
	for _, want := range []string{
		"# Capital Stack Report: northern-lights",
		"Generated: 2026-03-01T12:00:00Z",
		"## Tax Credit",
		"| Gross Credit | 6400000 |",
		"## Drawdown",
		"## Ranked Scenarios",
		"### " + run.Scenarios[0].Template.Name,
		"## Warnings",
		"- balanced: estimate did not converge",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderMarkdown_Deterministic(t *testing.T) {
	run, _, _ := runSample(t)
	require.Equal(t, RenderMarkdown(FromRun(run, fixedTime)), RenderMarkdown(FromRun(run, fixedTime)))
}

func TestRenderScenariosCSV(t *testing.T) {
	run, _, _ := runSample(t)
	out, err := RenderScenariosCSV(FromRun(run, fixedTime).Scenarios)
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(run.Scenarios)+1)
	require.Equal(t, "rank", rows[0][0])
	require.Equal(t, "1", rows[1][0])
	require.Equal(t, run.Scenarios[0].Template.Name, rows[1][1])
	require.Equal(t, "", rows[1][11], "no simulation, no probability")
}

func TestWriteFiles(t *testing.T) {
	run, _, _ := runSample(t)
	dir := t.TempDir()

	paths, err := WriteFiles(filepath.Join(dir, "out"), FromRun(run, fixedTime), nil)
	require.NoError(t, err)
	require.Len(t, paths, 4)

	for _, name := range []string{ReportFile, HTMLFile, ScenariosFile, PayoutsFile} {
		info, err := os.Stat(filepath.Join(dir, "out", name))
		require.NoError(t, err, name)
		require.Positive(t, info.Size(), name)
	}
}

func TestRenderHTML(t *testing.T) {
	run, _, _ := runSample(t)

	html, err := RenderHTML("Capital Stack Report: northern-lights", RenderMarkdown(FromRun(run, fixedTime)))
	require.NoError(t, err)
	require.Contains(t, html, "<title>Capital Stack Report: northern-lights</title>")
	require.Contains(t, html, "<h1>Capital Stack Report: northern-lights</h1>")
	require.Contains(t, html, "<table>")
	require.Contains(t, html, "<td>6400000</td>")
}
