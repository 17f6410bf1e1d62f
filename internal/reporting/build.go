package reporting

import (
	"time"

	"capital-stack-lab/internal/pipeline"
)

// FromRun builds a report from a finished pipeline run.
func FromRun(run *pipeline.RunResult, generatedAt time.Time) *Report {
	r := &Report{
		GeneratedAt: generatedAt,
		RunID:       run.RunID,
		ProjectName: run.Project.Name,
		Budget:      run.Project.Budget,
		Claim:       run.Claim,
		Warnings:    append([]string(nil), run.Warnings...),
	}
	if run.Drawdown != nil {
		r.Drawdown = run.Drawdown.Draws
	}

	createdAt := run.CreatedAt.UnixMilli()
	for i := range run.Scenarios {
		res := &run.Scenarios[i]
		row := scenarioRow(pipeline.BuildRecord(run.RunID, run.Project.Name, res, createdAt))
		if res.Scores != nil {
			row.StrategicClass = res.Scores.Strategic.Class
		}
		r.Scenarios = append(r.Scenarios, row)

		if res.Waterfall == nil {
			continue
		}
		for _, tr := range res.Waterfall.Tranches {
			r.Tranches = append(r.Tranches, TrancheRow{
				Template:    res.Template.Name,
				Tranche:     tr.Name,
				Backend:     tr.Backend,
				Entitlement: tr.Entitlement,
				Paid:        tr.Total,
				Unrecouped:  tr.Unrecouped,
			})
		}
		for _, p := range pipeline.BuildPayouts(run.RunID, res) {
			r.Payouts = append(r.Payouts, payoutRow(res.Template.Name, p))
		}
	}
	return r
}
