package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// BusinessRules holds every tunable constant used by the engines.
// It is loaded once, validated once, and passed by pointer into every call.
// Engines treat it as read-only.
type BusinessRules struct {
	Version        string
	MonetaryPlaces int32 // decimal places of the monetary unit

	Jurisdictions []Jurisdiction
	Incentives    IncentiveRules
	Drawdown      DrawdownRules
	DealTerms     map[DealKind]DealTerms
	Templates     []ScenarioTemplate
	Scoring       ScoringRules
	Simulation    SimulationRules

	// MaxParallelScenarios bounds concurrent waterfall runs (0 = one per template).
	MaxParallelScenarios int
}

// Jurisdiction is a tax-incentive program and its capture rate.
type Jurisdiction struct {
	ID             string
	Name           string
	Level          string // "federal" | "regional"
	CaptureRatePct decimal.Decimal
}

// MonetizationKind describes how a tax credit is turned into cash.
type MonetizationKind string

// Monetization kinds
const (
	MonetizationDirect  MonetizationKind = "direct"  // full value, received after a delay
	MonetizationAdvance MonetizationKind = "advance" // bank loan against the credit
	MonetizationSale    MonetizationKind = "sale"    // credit sold to a broker
)

// MonetizationOption is one configured way of monetizing a credit.
type MonetizationOption struct {
	Name         string
	Kind         MonetizationKind
	RatePct      decimal.Decimal
	DelayPeriods int
}

// IncentiveRules configures the tax incentive calculator.
type IncentiveRules struct {
	// StackingCapPct caps the combined capture rate when set.
	StackingCapPct *decimal.Decimal
	Options        []MonetizationOption
}

// DrawdownRules holds S-curve defaults.
type DrawdownRules struct {
	Steepness float64
	Midpoint  float64
	Periods   int // default production periods
}

// DealTerms are per-kind defaults applied when a scenario template is turned into DealBlocks.
type DealTerms struct {
	Priority           int
	PreferredReturnPct decimal.Decimal
	// OwnershipFactorPct is the ownership granted for funding 100% of the budget.
	OwnershipFactorPct decimal.Decimal
	// Participates grants a backend share equal to the block's ownership.
	Participates bool
	// BackendCapMultiple caps backend receipts at amount x multiple (0 = uncapped).
	BackendCapMultiple decimal.Decimal
	// OverageSplitPct is the fraction of the backend share kept after the cap is hit.
	OverageSplitPct decimal.Decimal
	ApprovalRights  []ApprovalRight
}

// ScenarioTemplate is a named recipe for proportioning a capital stack.
// Shares are percentages of the budget and sum to 100.
type ScenarioTemplate struct {
	Name            string          `json:"name"`
	EquityPct       decimal.Decimal `json:"equity_pct"`
	GapLoanPct      decimal.Decimal `json:"gap_loan_pct"`
	PresalePct      decimal.Decimal `json:"presale_pct"`
	StreamerPct     decimal.Decimal `json:"streamer_pct"`
	IncentivePct    decimal.Decimal `json:"incentive_pct"`
	IncentiveOption string          `json:"incentive_option"` // monetization option name
}

// ScoringRules configures the deal scoring engine.
type ScoringRules struct {
	StrongThreshold float64
	WeakThreshold   float64

	OwnershipWeight float64
	ControlWeight   float64
	FinancialWeight float64

	ApprovalWeights        map[ApprovalRight]float64
	ApprovalMaterialityPct float64 // min budget share for a block's approval rights to count
}

// SimulationRules configures the seeded recoupment estimator.
type SimulationRules struct {
	Seed              uint64
	MaxIterations     int
	MinIterations     int
	Tolerance         float64 // target standard error of the probability estimate
	RevenueVolatility float64 // lognormal sigma per period
}

// Places returns the monetary places; zero selects DefaultMonetaryPlaces.
func (r *BusinessRules) Places() int32 {
	if r.MonetaryPlaces <= 0 {
		return DefaultMonetaryPlaces
	}
	return r.MonetaryPlaces
}

// Jurisdiction looks up a jurisdiction by id.
func (r *BusinessRules) Jurisdiction(id string) (Jurisdiction, bool) {
	for _, j := range r.Jurisdictions {
		if j.ID == id {
			return j, true
		}
	}
	return Jurisdiction{}, false
}

// Option looks up a monetization option by name.
func (r *BusinessRules) Option(name string) (MonetizationOption, bool) {
	for _, o := range r.Incentives.Options {
		if o.Name == name {
			return o, true
		}
	}
	return MonetizationOption{}, false
}

// Terms returns the deal terms configured for kind.
func (r *BusinessRules) Terms(kind DealKind) (DealTerms, bool) {
	t, ok := r.DealTerms[kind]
	return t, ok
}

// Validate checks every configured constant. Rules must validate before use.
func (r *BusinessRules) Validate() error {
	if r.MonetaryPlaces < 0 || r.MonetaryPlaces > 8 {
		return NewValidationError("rules.monetary_places", "must be in [0, 8], got %d", r.MonetaryPlaces)
	}

	seenJ := make(map[string]struct{}, len(r.Jurisdictions))
	for _, j := range r.Jurisdictions {
		if j.ID == "" {
			return NewValidationError("rules.jurisdictions", "jurisdiction id is empty")
		}
		if _, dup := seenJ[j.ID]; dup {
			return NewValidationError("rules.jurisdictions", "duplicate jurisdiction %q", j.ID)
		}
		seenJ[j.ID] = struct{}{}
		if !isPct(j.CaptureRatePct) {
			return NewValidationError("rules.jurisdictions."+j.ID, "capture rate %s%% outside [0, 100]", j.CaptureRatePct)
		}
	}

	if capPct := r.Incentives.StackingCapPct; capPct != nil && !isPct(*capPct) {
		return NewValidationError("rules.incentives.stacking_cap", "%s%% outside [0, 100]", *capPct)
	}
	seenO := make(map[string]struct{}, len(r.Incentives.Options))
	for _, o := range r.Incentives.Options {
		if o.Name == "" {
			return NewValidationError("rules.incentives.options", "option name is empty")
		}
		if _, dup := seenO[o.Name]; dup {
			return NewValidationError("rules.incentives.options", "duplicate option %q", o.Name)
		}
		seenO[o.Name] = struct{}{}
		switch o.Kind {
		case MonetizationDirect, MonetizationAdvance, MonetizationSale:
		default:
			return NewValidationError("rules.incentives.options."+o.Name, "unknown kind %q", o.Kind)
		}
		if !isPct(o.RatePct) {
			return NewValidationError("rules.incentives.options."+o.Name, "rate %s%% outside [0, 100]", o.RatePct)
		}
		if o.DelayPeriods < 0 {
			return NewValidationError("rules.incentives.options."+o.Name, "negative delay %d", o.DelayPeriods)
		}
	}

	if err := ValidateCurve(r.Drawdown.Steepness, r.Drawdown.Midpoint); err != nil {
		return err
	}
	if r.Drawdown.Periods <= 0 {
		return NewValidationError("rules.drawdown.periods", "must be positive, got %d", r.Drawdown.Periods)
	}

	for _, kind := range DealKinds {
		t, ok := r.DealTerms[kind]
		if !ok {
			return NewValidationError("rules.deal_terms", "missing terms for %s", kind)
		}
		if t.Priority < 0 {
			return NewValidationError("rules.deal_terms."+string(kind), "negative priority %d", t.Priority)
		}
		if t.PreferredReturnPct.IsNegative() {
			return NewValidationError("rules.deal_terms."+string(kind), "negative preferred return")
		}
		if !isPct(t.OwnershipFactorPct) || !isPct(t.OverageSplitPct) {
			return NewValidationError("rules.deal_terms."+string(kind), "ownership factor and overage split must be in [0, 100]")
		}
		if t.BackendCapMultiple.IsNegative() {
			return NewValidationError("rules.deal_terms."+string(kind), "negative backend cap multiple")
		}
		if !kind.AllowsOwnership() && t.OwnershipFactorPct.IsPositive() {
			return NewValidationError("rules.deal_terms."+string(kind), "%s cannot take ownership", kind)
		}
		if !kind.AllowsBackend() && t.Participates {
			return NewValidationError("rules.deal_terms."+string(kind), "%s cannot participate in the backend", kind)
		}
		for _, right := range t.ApprovalRights {
			if !right.Valid() {
				return NewValidationError("rules.deal_terms."+string(kind), "unknown approval right %q", right)
			}
		}
	}

	if len(r.Templates) == 0 {
		return NewValidationError("rules.templates", "at least one template is required")
	}
	seenT := make(map[string]struct{}, len(r.Templates))
	for _, t := range r.Templates {
		if err := t.validate(r); err != nil {
			return err
		}
		if _, dup := seenT[t.Name]; dup {
			return NewValidationError("rules.templates", "duplicate template %q", t.Name)
		}
		seenT[t.Name] = struct{}{}
	}

	s := r.Scoring
	if s.WeakThreshold > s.StrongThreshold {
		return NewValidationError("rules.scoring", "weak threshold %.2f above strong threshold %.2f", s.WeakThreshold, s.StrongThreshold)
	}
	if s.OwnershipWeight < 0 || s.ControlWeight < 0 || s.FinancialWeight < 0 {
		return NewValidationError("rules.scoring", "negative component weight")
	}
	for right, w := range s.ApprovalWeights {
		if !right.Valid() {
			return NewValidationError("rules.scoring.approval_weights", "unknown approval right %q", right)
		}
		if w < 0 {
			return NewValidationError("rules.scoring.approval_weights", "negative weight for %s", right)
		}
	}

	sim := r.Simulation
	if sim.MaxIterations <= 0 || sim.MinIterations <= 0 || sim.MinIterations > sim.MaxIterations {
		return NewValidationError("rules.simulation", "iterations need 0 < min <= max, got min=%d max=%d", sim.MinIterations, sim.MaxIterations)
	}
	if sim.Tolerance <= 0 || sim.RevenueVolatility < 0 {
		return NewValidationError("rules.simulation", "tolerance must be positive and volatility non-negative")
	}
	if r.MaxParallelScenarios < 0 {
		return NewValidationError("rules.max_parallel_scenarios", "negative limit %d", r.MaxParallelScenarios)
	}

	return nil
}

func (t ScenarioTemplate) validate(r *BusinessRules) error {
	field := "rules.templates." + t.Name
	if t.Name == "" {
		return NewValidationError("rules.templates", "template name is empty")
	}
	shares := []decimal.Decimal{t.EquityPct, t.GapLoanPct, t.PresalePct, t.StreamerPct, t.IncentivePct}
	for _, s := range shares {
		if !isPct(s) {
			return NewValidationError(field, "share %s%% outside [0, 100]", s)
		}
	}
	if total := SumAmounts(shares); !total.Equal(hundred) {
		return NewValidationError(field, "shares sum to %s%%, want 100%%", total)
	}
	if _, ok := r.Option(t.IncentiveOption); !ok {
		return NewValidationError(field, "unknown monetization option %q", t.IncentiveOption)
	}
	return nil
}

// ValidateCurve checks S-curve parameters.
func ValidateCurve(steepness, midpoint float64) error {
	if math.IsNaN(steepness) || math.IsInf(steepness, 0) || steepness <= 0 {
		return NewValidationError("steepness", "must be positive and finite, got %v", steepness)
	}
	if math.IsNaN(midpoint) || midpoint <= 0 || midpoint >= 1 {
		return NewValidationError("midpoint", "must be in (0, 1), got %v", midpoint)
	}
	return nil
}
