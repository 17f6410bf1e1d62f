package domain

import (
	"github.com/shopspring/decimal"
)

// Tranche is one claim level in the waterfall.
// A fixed tranche carries an Entitlement; a backend tranche carries a share of residual.
type Tranche struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Source   string `json:"source,omitempty"` // deal block name

	Entitlement decimal.Decimal `json:"entitlement"`

	Backend          bool            `json:"backend"`
	ParticipationPct decimal.Decimal `json:"participation_pct"`
	ParticipationCap decimal.Decimal `json:"participation_cap"` // zero = uncapped
	OveragePct       decimal.Decimal `json:"overage_pct"`       // share after the cap is reached

	// Remainder marks the backend tranche that takes whatever residual the
	// other backend tranches leave, after rounding. At most one per stack.
	Remainder bool `json:"remainder,omitempty"`
}

// FixedTranche builds a recoupment tranche.
func FixedTranche(name string, priority int, entitlement decimal.Decimal) Tranche {
	return Tranche{Name: name, Priority: priority, Entitlement: entitlement}
}

// BackendTranche builds an uncapped participation tranche.
func BackendTranche(name string, priority int, pct decimal.Decimal) Tranche {
	return Tranche{Name: name, Priority: priority, Backend: true, ParticipationPct: pct}
}

// RemainderTranche builds the backend tranche that absorbs leftover residual.
func RemainderTranche(name string, priority int) Tranche {
	return Tranche{Name: name, Priority: priority, Backend: true, Remainder: true}
}

// TrancheResult is what one tranche received across the run.
type TrancheResult struct {
	Name        string          `json:"name"`
	Priority    int             `json:"priority"`
	Source      string          `json:"source,omitempty"`
	Backend     bool            `json:"backend"`
	Entitlement decimal.Decimal `json:"entitlement"`

	Payments         []decimal.Decimal `json:"payments"`          // per period
	OutstandingAfter []decimal.Decimal `json:"outstanding_after"` // unmet entitlement after each period

	Total      decimal.Decimal `json:"total"`
	Unrecouped decimal.Decimal `json:"unrecouped"`
	Recouped   bool            `json:"recouped"`
}

// PeriodSummary records conservation data for one period.
type PeriodSummary struct {
	Index         int             `json:"index"`
	Available     decimal.Decimal `json:"available"`
	Distributed   decimal.Decimal `json:"distributed"`
	Undistributed decimal.Decimal `json:"undistributed"`
}

// WaterfallResult is the full outcome of one waterfall run.
type WaterfallResult struct {
	Periods  []PeriodSummary `json:"periods"`
	Tranches []TrancheResult `json:"tranches"` // input order
}

// Tranche returns the result for name.
func (r *WaterfallResult) Tranche(name string) (TrancheResult, bool) {
	for _, t := range r.Tranches {
		if t.Name == name {
			return t, true
		}
	}
	return TrancheResult{}, false
}

// TotalDistributed sums everything paid across all periods.
func (r *WaterfallResult) TotalDistributed() decimal.Decimal {
	total := decimal.Zero
	for _, p := range r.Periods {
		total = total.Add(p.Distributed)
	}
	return total
}

// FixedTotals returns (paid, entitlement) summed over fixed tranches.
func (r *WaterfallResult) FixedTotals() (decimal.Decimal, decimal.Decimal) {
	paid, owed := decimal.Zero, decimal.Zero
	for _, t := range r.Tranches {
		if t.Backend {
			continue
		}
		paid = paid.Add(t.Total)
		owed = owed.Add(t.Entitlement)
	}
	return paid, owed
}

// Unrecouped lists fixed tranches still owed money at termination.
func (r *WaterfallResult) Unrecouped() []TrancheResult {
	var out []TrancheResult
	for _, t := range r.Tranches {
		if !t.Backend && !t.Recouped {
			out = append(out, t)
		}
	}
	return out
}

// AllRecouped reports whether every fixed tranche was fully repaid.
func (r *WaterfallResult) AllRecouped() bool {
	return len(r.Unrecouped()) == 0
}
