package domain

import (
	"github.com/shopspring/decimal"
)

// Project is the caller-supplied description of a production to finance.
type Project struct {
	Name            string           `json:"name"`
	Budget          decimal.Decimal  `json:"budget"`
	QualifyingSpend decimal.Decimal  `json:"qualifying_spend"`
	Jurisdictions   []string         `json:"jurisdictions"`
	StackingCapPct  *decimal.Decimal `json:"stacking_cap_pct,omitempty"`
	Revenue         CashFlowTimeline `json:"revenue"`

	// Production schedule; zero values select rule defaults.
	ProductionPeriods int     `json:"production_periods"`
	Steepness         float64 `json:"steepness"`
	Midpoint          float64 `json:"midpoint"`
}

// Validate checks the fields the pipeline relies on before any engine runs.
func (p Project) Validate() error {
	if p.Name == "" {
		return NewValidationError("project.name", "name is empty")
	}
	if !p.Budget.IsPositive() {
		return NewValidationError("project.budget", "must be positive, got %s", p.Budget)
	}
	if p.ProductionPeriods < 0 {
		return NewValidationError("project.production_periods", "negative period count %d", p.ProductionPeriods)
	}
	return p.Revenue.Validate()
}

// ScenarioInput bundles a project with its incentive and drawdown outputs.
type ScenarioInput struct {
	Project  Project
	Claim    *TaxCreditClaim
	Drawdown *InvestmentDrawdown
}

// BlockDeployment is the share of the drawdown schedule funded by one deal block.
type BlockDeployment struct {
	Deal  string            `json:"deal"`
	Draws []decimal.Decimal `json:"draws"`
}

// ScenarioResult is one evaluated capital stack.
type ScenarioResult struct {
	ScenarioID string           `json:"scenario_id"`
	Template   ScenarioTemplate `json:"template"`
	Budget     decimal.Decimal  `json:"budget"`
	Deals      []DealBlock      `json:"deals"`

	// IncentiveFunding is budget covered by selling the credit; it is not recoupable.
	IncentiveFunding decimal.Decimal `json:"incentive_funding"`
	// IncentiveInflow is credit cash added to the waterfall at InflowPeriod.
	IncentiveInflow decimal.Decimal `json:"incentive_inflow"`
	InflowPeriod    int             `json:"inflow_period"`

	Cash       CashFlowTimeline    `json:"cash"`
	Deployment []BlockDeployment   `json:"deployment"`
	Tranches   []Tranche           `json:"tranches"`
	Waterfall  *WaterfallResult    `json:"waterfall"`
	Scores     *DealScores         `json:"scores,omitempty"`
	Recoupment *RecoupmentEstimate `json:"recoupment,omitempty"`
	Rank       int                 `json:"rank"`
}

// Deal returns the block named name.
func (s *ScenarioResult) Deal(name string) (DealBlock, bool) {
	for _, d := range s.Deals {
		if d.Name() == name {
			return d, true
		}
	}
	return DealBlock{}, false
}

// ScoreClass classifies a component score.
type ScoreClass string

// Score classes
const (
	ScoreStrong   ScoreClass = "strong"
	ScoreModerate ScoreClass = "moderate"
	ScoreWeak     ScoreClass = "weak"
)

// ComponentScore is one 0-100 score and its classification.
type ComponentScore struct {
	Value float64    `json:"value"`
	Class ScoreClass `json:"class"`
}

// DealScores are the scoring engine's outputs for one scenario.
type DealScores struct {
	Ownership ComponentScore `json:"ownership"`
	Control   ComponentScore `json:"control"`
	Financial ComponentScore `json:"financial"`
	Strategic ComponentScore `json:"strategic"`

	RetainedOwnershipPct decimal.Decimal `json:"retained_ownership_pct"`
	CededRights          []ApprovalRight `json:"ceded_rights,omitempty"`
}

// RecoupmentEstimate is a seeded Monte Carlo probability that every fixed tranche recoups.
type RecoupmentEstimate struct {
	Probability float64             `json:"probability"`
	StdErr      float64             `json:"std_err"`
	Iterations  int                 `json:"iterations"`
	Seed        uint64              `json:"seed"`
	Converged   bool                `json:"converged"`
	Warning     *ConvergenceWarning `json:"-"`
}
