// Package drawdown builds S-curve capital deployment schedules.
package drawdown

import (
	"math"

	"github.com/shopspring/decimal"

	"capital-stack-lab/internal/domain"
)

// minSpan is the smallest f(1)-f(0) the logistic may span before the curve is
// treated as linear.
const minSpan = 1e-12

// Schedule spreads req.Total over req.Periods following a logistic S-curve.
//
// The cumulative fraction at period t is
//
//	F(t) = (f((t+1)/n) - f(0)) / (f(1) - f(0)),  f(x) = 1 / (1 + exp(-k(x-m)))
//
// so F rises from ~0 and is exactly 1 at the final period. Each draw is the
// fraction delta times Total, rounded down to the monetary unit; the final
// period takes whatever remains so the draws sum to Total exactly.
// Steepness and Midpoint are used as given; callers resolve any defaults.
func Schedule(rules *domain.BusinessRules, req domain.DrawdownRequest) (*domain.InvestmentDrawdown, error) {
	if rules == nil {
		return nil, domain.NewValidationError("rules", "business rules are required")
	}

	k, m := req.Steepness, req.Midpoint
	if err := domain.ValidateCurve(k, m); err != nil {
		return nil, err
	}
	if req.Periods <= 0 {
		return nil, domain.NewValidationError("periods", "must be positive, got %d", req.Periods)
	}
	if req.Total.IsNegative() {
		return nil, domain.NewValidationError("total", "negative investment %s", req.Total)
	}

	places := rules.Places()
	n := req.Periods
	fractions := cumulativeFractions(n, k, m)

	draws := make([]decimal.Decimal, n)
	cumulative := make([]decimal.Decimal, n)
	allocated := decimal.Zero
	prev := 0.0

	for t := 0; t < n-1; t++ {
		delta := fractions[t] - prev
		prev = fractions[t]
		if delta < 0 {
			delta = 0
		}

		draw := req.Total.Mul(decimal.NewFromFloat(delta)).RoundFloor(places)
		if rest := req.Total.Sub(allocated); draw.GreaterThan(rest) {
			draw = rest
		}
		draws[t] = draw
		allocated = allocated.Add(draw)
		cumulative[t] = allocated
	}

	// Remainder lands in the final period.
	draws[n-1] = req.Total.Sub(allocated)
	cumulative[n-1] = req.Total

	if draws[n-1].IsNegative() {
		return nil, &domain.ComputationError{Op: "drawdown", Period: n - 1, Detail: "negative final draw"}
	}

	return &domain.InvestmentDrawdown{
		Total:      req.Total,
		Draws:      draws,
		Cumulative: cumulative,
		Steepness:  k,
		Midpoint:   m,
	}, nil
}

// cumulativeFractions returns F(t) for t in [0, n). F(n-1) is exactly 1.
func cumulativeFractions(n int, k, m float64) []float64 {
	out := make([]float64, n)
	f0 := logistic(0, k, m)
	span := logistic(1, k, m) - f0

	for t := 0; t < n; t++ {
		x := float64(t+1) / float64(n)
		if span < minSpan || math.IsNaN(span) {
			out[t] = x
			continue
		}
		out[t] = (logistic(x, k, m) - f0) / span
	}
	out[n-1] = 1
	return out
}

func logistic(x, k, m float64) float64 {
	return 1 / (1 + math.Exp(-k*(x-m)))
}
