package domain

import (
	"github.com/shopspring/decimal"
)

// DefaultMonetaryPlaces is the monetary unit (cents) used when rules do not override it.
const DefaultMonetaryPlaces int32 = 2

var hundred = decimal.NewFromInt(100)

// PctOf returns amount x pct / 100 rounded down to the monetary unit.
func PctOf(amount, pct decimal.Decimal, places int32) decimal.Decimal {
	return amount.Mul(pct).Shift(-2).RoundFloor(places)
}

// SumAmounts adds the given amounts exactly.
func SumAmounts(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// isPct reports whether v lies in [0, 100].
func isPct(v decimal.Decimal) bool {
	return !v.IsNegative() && v.LessThanOrEqual(hundred)
}

// Hundred returns the decimal constant 100.
func Hundred() decimal.Decimal { return hundred }
