// Package verification checks that stored scenario runs match a replay of
// the same project, rules and seed.
package verification

import (
	"math"

	"github.com/shopspring/decimal"

	"capital-stack-lab/internal/domain"
)

// FloatTolerance is the tolerance for score and probability comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationResult contains the result of verifying a single scenario.
type VerificationResult struct {
	ScenarioID        string
	TemplateName      string
	Match             bool              // true if record and payouts match
	Divergences       []FieldDivergence // list of divergent fields
	StoredStrategic   float64
	ReplayedStrategic float64
}

// VerificationReport contains results for one run.
type VerificationReport struct {
	RunID              string
	TotalScenarios     int
	MatchedScenarios   int
	DivergentScenarios int
	Results            []VerificationResult // stored rank order
}

// OK reports whether every scenario matched.
func (r *VerificationReport) OK() bool {
	return r.DivergentScenarios == 0
}

// divergences collects field mismatches.
type divergences []FieldDivergence

func (d *divergences) text(field, stored, replayed string) {
	if stored != replayed {
		*d = append(*d, FieldDivergence{Field: field, Expected: stored, Actual: replayed})
	}
}

func (d *divergences) count(field string, stored, replayed int) {
	if stored != replayed {
		*d = append(*d, FieldDivergence{Field: field, Expected: stored, Actual: replayed})
	}
}

func (d *divergences) money(field string, stored, replayed decimal.Decimal) {
	if !stored.Equal(replayed) {
		*d = append(*d, FieldDivergence{Field: field, Expected: stored.String(), Actual: replayed.String()})
	}
}

func (d *divergences) score(field string, stored, replayed float64) {
	if !floatEquals(stored, replayed) {
		*d = append(*d, FieldDivergence{Field: field, Expected: stored, Actual: replayed})
	}
}

// CompareScenarioRecords compares two records and returns divergences.
// RunID and CreatedAt identify the run, not its outcome, and are skipped.
// Money compares exactly; scores use FloatTolerance.
func CompareScenarioRecords(stored, replayed *domain.ScenarioRecord) []FieldDivergence {
	var d divergences

	d.text("ScenarioID", stored.ScenarioID, replayed.ScenarioID)
	d.text("ProjectName", stored.ProjectName, replayed.ProjectName)
	d.text("TemplateName", stored.TemplateName, replayed.TemplateName)
	d.count("Rank", stored.Rank, replayed.Rank)

	d.money("Budget", stored.Budget, replayed.Budget)
	d.money("IncentiveFunding", stored.IncentiveFunding, replayed.IncentiveFunding)
	d.count("Deals", len(stored.Deals), len(replayed.Deals))
	if len(stored.Deals) == len(replayed.Deals) {
		for i := range stored.Deals {
			d.text("Deals.Kind", string(stored.Deals[i].Kind()), string(replayed.Deals[i].Kind()))
			d.money("Deals.Amount", stored.Deals[i].Amount(), replayed.Deals[i].Amount())
		}
	}

	// Waterfall totals
	d.money("TotalAvailable", stored.TotalAvailable, replayed.TotalAvailable)
	d.money("TotalDistributed", stored.TotalDistributed, replayed.TotalDistributed)
	d.money("FixedPaid", stored.FixedPaid, replayed.FixedPaid)
	d.money("FixedEntitlement", stored.FixedEntitlement, replayed.FixedEntitlement)
	d.count("UnrecoupedCount", stored.UnrecoupedCount, replayed.UnrecoupedCount)

	// Scores
	d.score("OwnershipScore", stored.OwnershipScore, replayed.OwnershipScore)
	d.score("ControlScore", stored.ControlScore, replayed.ControlScore)
	d.score("FinancialScore", stored.FinancialScore, replayed.FinancialScore)
	d.score("StrategicScore", stored.StrategicScore, replayed.StrategicScore)

	if !floatPtrEquals(stored.RecoupmentProbability, replayed.RecoupmentProbability) {
		d = append(d, FieldDivergence{
			Field:    "RecoupmentProbability",
			Expected: stored.RecoupmentProbability,
			Actual:   replayed.RecoupmentProbability,
		})
	}
	d.count("SimulationIterations", stored.SimulationIterations, replayed.SimulationIterations)

	return d
}

// ComparePayouts compares two payout series of one scenario point by point.
// Both must be ordered by period then tranche order.
func ComparePayouts(stored, replayed []*domain.PayoutPoint) []FieldDivergence {
	var d divergences
	d.count("Payouts", len(stored), len(replayed))
	if len(stored) != len(replayed) {
		return d
	}

	for i := range stored {
		s, r := stored[i], replayed[i]
		d.count("Payouts.PeriodIndex", s.PeriodIndex, r.PeriodIndex)
		d.text("Payouts.TrancheName", s.TrancheName, r.TrancheName)
		d.money("Payouts["+s.TrancheName+"].Paid", s.Paid, r.Paid)
		d.money("Payouts["+s.TrancheName+"].OutstandingAfter", s.OutstandingAfter, r.OutstandingAfter)
	}
	return d
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}

// floatPtrEquals compares two *float64 values within FloatTolerance.
// Returns true if both are nil, or both are non-nil and equal.
func floatPtrEquals(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return floatEquals(*a, *b)
}
