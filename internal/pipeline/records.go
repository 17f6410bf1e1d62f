package pipeline

import (
	"capital-stack-lab/internal/domain"
)

// BuildRecord summarizes one ranked scenario for the scenario_runs table.
func BuildRecord(runID, project string, res *domain.ScenarioResult, createdAt int64) *domain.ScenarioRecord {
	r := &domain.ScenarioRecord{
		ScenarioID:       res.ScenarioID,
		RunID:            runID,
		ProjectName:      project,
		TemplateName:     res.Template.Name,
		Rank:             res.Rank,
		Budget:           res.Budget,
		IncentiveFunding: res.IncentiveFunding,
		Deals:            append([]domain.DealBlock(nil), res.Deals...),
		TotalAvailable:   res.Cash.Total(),
		CreatedAt:        createdAt,
	}

	if wf := res.Waterfall; wf != nil {
		r.TotalDistributed = wf.TotalDistributed()
		r.FixedPaid, r.FixedEntitlement = wf.FixedTotals()
		r.UnrecoupedCount = len(wf.Unrecouped())
	}

	if s := res.Scores; s != nil {
		r.OwnershipScore = s.Ownership.Value
		r.ControlScore = s.Control.Value
		r.FinancialScore = s.Financial.Value
		r.StrategicScore = s.Strategic.Value
	}

	if est := res.Recoupment; est != nil {
		p := est.Probability
		r.RecoupmentProbability = &p
		r.SimulationIterations = est.Iterations
	}

	return r
}

// BuildPayouts flattens a scenario's waterfall into one row per (period, tranche).
func BuildPayouts(runID string, res *domain.ScenarioResult) []*domain.PayoutPoint {
	wf := res.Waterfall
	if wf == nil {
		return nil
	}

	points := make([]*domain.PayoutPoint, 0, len(wf.Periods)*len(wf.Tranches))
	for p, period := range wf.Periods {
		for order, tr := range wf.Tranches {
			points = append(points, &domain.PayoutPoint{
				RunID:            runID,
				ScenarioID:       res.ScenarioID,
				PeriodIndex:      period.Index,
				TrancheName:      tr.Name,
				TrancheOrder:     order,
				Backend:          tr.Backend,
				Paid:             tr.Payments[p],
				OutstandingAfter: tr.OutstandingAfter[p],
			})
		}
	}
	return points
}
