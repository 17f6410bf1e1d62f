package domain

import (
	"github.com/shopspring/decimal"
)

// ScenarioRecord is the persisted summary of one ranked scenario.
// Corresponds to the scenario_runs table, keyed by (run_id, scenario_id).
type ScenarioRecord struct {
	ScenarioID   string // deterministic hash
	RunID        string // pipeline run
	ProjectName  string
	TemplateName string
	Rank         int

	Budget           decimal.Decimal
	IncentiveFunding decimal.Decimal
	Deals            []DealBlock

	// Waterfall totals
	TotalAvailable   decimal.Decimal
	TotalDistributed decimal.Decimal
	FixedPaid        decimal.Decimal
	FixedEntitlement decimal.Decimal
	UnrecoupedCount  int

	// Scores
	OwnershipScore float64
	ControlScore   float64
	FinancialScore float64
	StrategicScore float64

	RecoupmentProbability *float64 // nil when not simulated
	SimulationIterations  int

	CreatedAt int64 // unix ms
}

// PayoutPoint is what one tranche received in one period.
// Corresponds to the tranche_payouts table, keyed by
// (run_id, scenario_id, period_index, tranche_name).
type PayoutPoint struct {
	RunID            string
	ScenarioID       string
	PeriodIndex      int
	TrancheName      string
	TrancheOrder     int // position in the input tranche list
	Backend          bool
	Paid             decimal.Decimal
	OutstandingAfter decimal.Decimal
}
