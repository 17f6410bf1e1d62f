package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCashFlowTimeline_Validate(t *testing.T) {
	tests := []struct {
		name    string
		periods []CashFlowPeriod
		wantErr bool
	}{
		{"contiguous", []CashFlowPeriod{{Index: 0, Revenue: d("1")}, {Index: 1, Revenue: d("0")}}, false},
		{"gaps allowed", []CashFlowPeriod{{Index: 0}, {Index: 4, Revenue: d("10")}}, false},
		{"empty", nil, true},
		{"first not zero", []CashFlowPeriod{{Index: 1}}, true},
		{"not increasing", []CashFlowPeriod{{Index: 0}, {Index: 2}, {Index: 2}}, true},
		{"negative revenue", []CashFlowPeriod{{Index: 0, Revenue: d("-0.01")}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CashFlowTimeline{Periods: tt.periods}.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("error %v does not unwrap to ErrValidation", err)
			}
		})
	}
}

func TestCashFlowTimeline_Helpers(t *testing.T) {
	tl := CashFlowTimeline{Periods: []CashFlowPeriod{
		{Index: 0, Revenue: d("100")},
		{Index: 3, Revenue: d("250.50")},
		{Index: 5, Revenue: d("0")},
	}}

	require.Equal(t, 3, tl.Len())
	require.True(t, tl.Total().Equal(d("350.5")))
	require.Equal(t, 1, tl.PositionOf(2))
	require.Equal(t, 1, tl.PositionOf(3))
	require.Equal(t, 2, tl.PositionOf(99), "clamped to final period")

	scaled := tl.WithAmounts([]decimal.Decimal{d("1"), d("2"), d("3")})
	require.Equal(t, 3, scaled.Periods[1].Index)
	require.True(t, scaled.Total().Equal(d("6")))
	require.True(t, tl.Total().Equal(d("350.5")), "original untouched")
}

func TestPctOf_FloorsToUnit(t *testing.T) {
	require.True(t, PctOf(d("333.33"), d("33.333"), 2).Equal(d("111.10")))
	require.True(t, PctOf(d("1000"), d("21.5"), 0).Equal(d("215")))
	require.True(t, PctOf(d("0.99"), d("50"), 0).Equal(d("0")))
}

func TestErrors_Unwrap(t *testing.T) {
	require.ErrorIs(t, NewValidationError("budget", "bad"), ErrValidation)
	require.ErrorIs(t, &ComputationError{Op: "waterfall", Period: 3, Detail: "leak"}, ErrComputation)
	require.ErrorIs(t, &ConvergenceWarning{Iterations: 10, Cancelled: true}, ErrNotConverged)

	require.Equal(t, "waterfall: period 3: leak", (&ComputationError{Op: "waterfall", Period: 3, Detail: "leak"}).Error())
	require.Equal(t, "drawdown: bad", (&ComputationError{Op: "drawdown", Period: -1, Detail: "bad"}).Error())
}
