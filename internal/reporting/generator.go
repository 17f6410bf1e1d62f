package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"capital-stack-lab/internal/domain"
	"capital-stack-lab/internal/storage"
)

// Generator rebuilds reports for stored runs.
type Generator struct {
	recordStore storage.ScenarioRecordStore
	payoutStore storage.PayoutStore
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(records storage.ScenarioRecordStore, payouts storage.PayoutStore) *Generator {
	return &Generator{
		recordStore: records,
		payoutStore: payouts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate loads every scenario of runID and its payouts.
// Returns storage.ErrNotFound when the run has no records.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	records, err := g.recordStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load scenario records: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, storage.ErrNotFound)
	}

	r := &Report{
		GeneratedAt: g.now(),
		RunID:       runID,
		ProjectName: records[0].ProjectName,
		Budget:      records[0].Budget,
	}

	for _, rec := range records {
		r.Scenarios = append(r.Scenarios, scenarioRow(rec))

		points, err := g.payoutStore.GetByScenario(ctx, runID, rec.ScenarioID)
		if err != nil {
			return nil, fmt.Errorf("load payouts for %s: %w", rec.ScenarioID, err)
		}
		for _, p := range points {
			r.Payouts = append(r.Payouts, payoutRow(rec.TemplateName, p))
		}
		r.Tranches = append(r.Tranches, trancheTotals(rec.TemplateName, points)...)
	}
	return r, nil
}

// trancheTotals folds ordered payout rows back into per-tranche totals.
// A fixed tranche's entitlement is what it was paid plus what it is still owed.
func trancheTotals(template string, points []*domain.PayoutPoint) []TrancheRow {
	byOrder := make(map[int]*TrancheRow)
	var order []int
	for _, p := range points {
		row, ok := byOrder[p.TrancheOrder]
		if !ok {
			row = &TrancheRow{Template: template, Tranche: p.TrancheName, Backend: p.Backend}
			byOrder[p.TrancheOrder] = row
			order = append(order, p.TrancheOrder)
		}
		row.Paid = row.Paid.Add(p.Paid)
		// Rows arrive by period, so the last one seen is the final balance.
		row.Unrecouped = p.OutstandingAfter
	}

	out := make([]TrancheRow, 0, len(order))
	for _, o := range order {
		row := byOrder[o]
		if row.Backend {
			row.Entitlement = decimal.Zero
			row.Unrecouped = decimal.Zero
		} else {
			row.Entitlement = row.Paid.Add(row.Unrecouped)
		}
		out = append(out, *row)
	}
	return out
}

func scenarioRow(rec *domain.ScenarioRecord) ScenarioRow {
	return ScenarioRow{
		Rank:                  rec.Rank,
		Template:              rec.TemplateName,
		ScenarioID:            rec.ScenarioID,
		Ownership:             rec.OwnershipScore,
		Control:               rec.ControlScore,
		Financial:             rec.FinancialScore,
		Strategic:             rec.StrategicScore,
		TotalDistributed:      rec.TotalDistributed,
		FixedPaid:             rec.FixedPaid,
		FixedEntitlement:      rec.FixedEntitlement,
		Unrecouped:            rec.UnrecoupedCount,
		RecoupmentProbability: rec.RecoupmentProbability,
	}
}

func payoutRow(template string, p *domain.PayoutPoint) PayoutRow {
	return PayoutRow{
		Template:         template,
		ScenarioID:       p.ScenarioID,
		Period:           p.PeriodIndex,
		Tranche:          p.TrancheName,
		Backend:          p.Backend,
		Paid:             p.Paid,
		OutstandingAfter: p.OutstandingAfter,
	}
}
