package domain

import (
	"github.com/shopspring/decimal"
)

// CashFlowPeriod is one (period index, gross revenue) pair.
type CashFlowPeriod struct {
	Index   int             `json:"index"`
	Revenue decimal.Decimal `json:"revenue"`
}

// CashFlowTimeline is an ordered per-period revenue sequence.
// Indices start at 0 and strictly increase; revenue is never negative.
type CashFlowTimeline struct {
	Periods []CashFlowPeriod `json:"periods"`
}

// NewCashFlowTimeline builds a contiguous timeline (indices 0..n-1) from amounts.
func NewCashFlowTimeline(amounts ...decimal.Decimal) CashFlowTimeline {
	periods := make([]CashFlowPeriod, len(amounts))
	for i, a := range amounts {
		periods[i] = CashFlowPeriod{Index: i, Revenue: a}
	}
	return CashFlowTimeline{Periods: periods}
}

// Len returns the number of periods.
func (t CashFlowTimeline) Len() int { return len(t.Periods) }

// Amounts returns the revenue column.
func (t CashFlowTimeline) Amounts() []decimal.Decimal {
	out := make([]decimal.Decimal, len(t.Periods))
	for i, p := range t.Periods {
		out[i] = p.Revenue
	}
	return out
}

// Total returns the sum of revenue across periods.
func (t CashFlowTimeline) Total() decimal.Decimal {
	return SumAmounts(t.Amounts())
}

// PositionOf returns the slice position of the first period whose index is >= index,
// clamped to the final period.
func (t CashFlowTimeline) PositionOf(index int) int {
	for i, p := range t.Periods {
		if p.Index >= index {
			return i
		}
	}
	return len(t.Periods) - 1
}

// WithAmounts returns a copy keeping the indices but replacing revenue.
func (t CashFlowTimeline) WithAmounts(amounts []decimal.Decimal) CashFlowTimeline {
	periods := make([]CashFlowPeriod, len(t.Periods))
	for i, p := range t.Periods {
		periods[i] = CashFlowPeriod{Index: p.Index, Revenue: amounts[i]}
	}
	return CashFlowTimeline{Periods: periods}
}

// Validate checks ordering and sign.
func (t CashFlowTimeline) Validate() error {
	if len(t.Periods) == 0 {
		return NewValidationError("timeline", "no periods")
	}
	for i, p := range t.Periods {
		if i == 0 && p.Index != 0 {
			return NewValidationError("timeline", "first period index must be 0, got %d", p.Index)
		}
		if i > 0 && p.Index <= t.Periods[i-1].Index {
			return NewValidationError("timeline", "period indices must strictly increase (%d after %d)", p.Index, t.Periods[i-1].Index)
		}
		if p.Revenue.IsNegative() {
			return NewValidationError("timeline", "negative revenue %s in period %d", p.Revenue, p.Index)
		}
	}
	return nil
}

// InvestmentDrawdown is a per-period capital deployment schedule.
// Draws sum exactly to Total.
type InvestmentDrawdown struct {
	Total      decimal.Decimal   `json:"total"`
	Draws      []decimal.Decimal `json:"draws"`
	Cumulative []decimal.Decimal `json:"cumulative"`
	Steepness  float64           `json:"steepness"`
	Midpoint   float64           `json:"midpoint"`
}

// Periods returns the number of periods in the schedule.
func (d *InvestmentDrawdown) Periods() int { return len(d.Draws) }

// Sum returns the sum of draws.
func (d *InvestmentDrawdown) Sum() decimal.Decimal { return SumAmounts(d.Draws) }

// DrawdownRequest asks for an S-curve schedule. Zero curve parameters select rule defaults.
type DrawdownRequest struct {
	Total     decimal.Decimal
	Periods   int
	Steepness float64
	Midpoint  float64
}
