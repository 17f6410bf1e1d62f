package waterfall

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"capital-stack-lab/internal/domain"
	"capital-stack-lab/internal/rules"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func cash(amounts ...string) domain.CashFlowTimeline {
	out := make([]decimal.Decimal, len(amounts))
	for i, a := range amounts {
		out[i] = d(a)
	}
	return domain.NewCashFlowTimeline(out...)
}

func assertPayments(t *testing.T, res *domain.WaterfallResult, name string, want ...string) {
	t.Helper()
	tr, ok := res.Tranche(name)
	if !ok {
		t.Fatalf("tranche %q missing", name)
	}
	if len(tr.Payments) != len(want) {
		t.Fatalf("%s: expected %d payments, got %d", name, len(want), len(tr.Payments))
	}
	for i, w := range want {
		if !tr.Payments[i].Equal(d(w)) {
			t.Errorf("%s period %d: expected %s, got %s", name, i, w, tr.Payments[i])
		}
	}
}

func TestRun_CarryForward(t *testing.T) {
	tranches := []domain.Tranche{
		domain.FixedTranche("senior", 1, d("150")),
		domain.BackendTranche("producer", 2, d("100")),
	}

	res, err := Run(rules.Default(), tranches, cash("100", "100", "100"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	assertPayments(t, res, "senior", "100", "50", "0")
	assertPayments(t, res, "producer", "0", "50", "100")

	senior, _ := res.Tranche("senior")
	if !senior.OutstandingAfter[0].Equal(d("50")) {
		t.Errorf("expected 50 outstanding after period 0, got %s", senior.OutstandingAfter[0])
	}
	if !senior.Recouped || !senior.Unrecouped.IsZero() {
		t.Errorf("senior should be recouped, unrecouped=%s", senior.Unrecouped)
	}
	if !res.TotalDistributed().Equal(d("300")) {
		t.Errorf("expected 300 distributed, got %s", res.TotalDistributed())
	}
}

func TestRun_ZeroRevenue(t *testing.T) {
	tranches := []domain.Tranche{domain.FixedTranche("senior", 1, d("150"))}

	res, err := Run(rules.Default(), tranches, cash("0", "0"))
	if err != nil {
		t.Fatalf("zero revenue must not error: %v", err)
	}

	assertPayments(t, res, "senior", "0", "0")
	senior, _ := res.Tranche("senior")
	if senior.Recouped {
		t.Error("senior should be unrecouped")
	}
	if !senior.Unrecouped.Equal(d("150")) {
		t.Errorf("expected 150 unrecouped, got %s", senior.Unrecouped)
	}
	if res.AllRecouped() {
		t.Error("AllRecouped should be false")
	}
}

func TestRun_PriorityPrecedence(t *testing.T) {
	// Input order is deliberately reversed.
	tranches := []domain.Tranche{
		domain.FixedTranche("junior", 2, d("100")),
		domain.FixedTranche("senior", 1, d("100")),
	}

	res, err := Run(rules.Default(), tranches, cash("120"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	assertPayments(t, res, "senior", "100")
	assertPayments(t, res, "junior", "20")

	if res.Tranches[0].Name != "junior" {
		t.Errorf("results should keep input order, got %s first", res.Tranches[0].Name)
	}
}

func TestRun_EqualPriorityKeepsInputOrder(t *testing.T) {
	tranches := []domain.Tranche{
		domain.FixedTranche("x", 1, d("50")),
		domain.FixedTranche("y", 1, d("50")),
	}

	res, err := Run(rules.Default(), tranches, cash("60"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	assertPayments(t, res, "x", "50")
	assertPayments(t, res, "y", "10")
}

func TestRun_BackendRoundingStaysUndistributed(t *testing.T) {
	tranches := []domain.Tranche{
		domain.BackendTranche("a", 1, d("50")),
		domain.BackendTranche("b", 1, d("50")),
	}

	res, err := Run(rules.Default(), tranches, cash("0.03"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	assertPayments(t, res, "a", "0.01")
	assertPayments(t, res, "b", "0.01")

	p := res.Periods[0]
	if !p.Undistributed.Equal(d("0.01")) {
		t.Errorf("expected 0.01 undistributed, got %s", p.Undistributed)
	}
	if !p.Distributed.Add(p.Undistributed).Equal(p.Available) {
		t.Errorf("conservation broken: %s + %s != %s", p.Distributed, p.Undistributed, p.Available)
	}
}

func TestRun_CapAndOverage(t *testing.T) {
	tranches := []domain.Tranche{
		{
			Name:             "investor backend",
			Priority:         1,
			Backend:          true,
			ParticipationPct: d("50"),
			ParticipationCap: d("30"),
			OveragePct:       d("25"),
		},
		domain.RemainderTranche("producer", 2),
	}

	res, err := Run(rules.Default(), tranches, cash("100", "100"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Period 0: 50 clipped to the 30 cap. Period 1: overage share of 25%.
	assertPayments(t, res, "investor backend", "30", "25")
	assertPayments(t, res, "producer", "70", "75")

	for _, p := range res.Periods {
		if !p.Undistributed.IsZero() {
			t.Errorf("period %d: remainder tranche should leave nothing, got %s", p.Index, p.Undistributed)
		}
	}
}

func TestRun_Conservation(t *testing.T) {
	tranches := []domain.Tranche{
		domain.FixedTranche("tcl", 1, d("333.33")),
		domain.FixedTranche("gap", 3, d("250.10")),
		domain.FixedTranche("equity", 4, d("1200")),
		domain.BackendTranche("equity backend", 4, d("17.5")),
		domain.RemainderTranche("producer", 5),
	}

	res, err := Run(rules.Default(), tranches, cash("100.07", "0", "512.49", "999.99", "777.77"))
	require.NoError(t, err)

	total := decimal.Zero
	for _, p := range res.Periods {
		require.True(t, p.Distributed.Add(p.Undistributed).Equal(p.Available), "period %d", p.Index)
		require.False(t, p.Distributed.GreaterThan(p.Available))
		total = total.Add(p.Available)
	}
	require.True(t, res.TotalDistributed().Equal(total))

	for _, tr := range res.Tranches {
		for i, o := range tr.OutstandingAfter {
			require.False(t, o.IsNegative(), "%s period %d", tr.Name, i)
		}
	}
}

func TestRun_Deterministic(t *testing.T) {
	tranches := []domain.Tranche{
		domain.FixedTranche("senior", 1, d("1000")),
		domain.FixedTranche("mezz", 2, d("500")),
		domain.BackendTranche("investor", 3, d("33.33")),
		domain.RemainderTranche("producer", 4),
	}
	timeline := cash("400", "400", "400", "400", "400")

	first, err := Run(rules.Default(), tranches, timeline)
	require.NoError(t, err)

	for run := 0; run < 5; run++ {
		again, err := Run(rules.Default(), tranches, timeline)
		require.NoError(t, err)
		require.Equal(t, first, again, "run %d", run)
	}
}

func TestRun_Validation(t *testing.T) {
	tests := []struct {
		name     string
		tranches []domain.Tranche
		cash     domain.CashFlowTimeline
	}{
		{
			name:     "no tranches",
			tranches: nil,
			cash:     cash("1"),
		},
		{
			name:     "empty name",
			tranches: []domain.Tranche{domain.FixedTranche("", 1, d("1"))},
			cash:     cash("1"),
		},
		{
			name:     "negative entitlement",
			tranches: []domain.Tranche{domain.FixedTranche("a", 1, d("-1"))},
			cash:     cash("1"),
		},
		{
			name:     "participation above 100",
			tranches: []domain.Tranche{domain.BackendTranche("a", 1, d("100.01"))},
			cash:     cash("1"),
		},
		{
			name: "backend sum above 100",
			tranches: []domain.Tranche{
				domain.BackendTranche("a", 1, d("60")),
				domain.BackendTranche("b", 1, d("41")),
			},
			cash: cash("1"),
		},
		{
			name: "fixed and backend terms",
			tranches: []domain.Tranche{
				{Name: "a", Priority: 1, Entitlement: d("10"), ParticipationPct: d("10")},
			},
			cash: cash("1"),
		},
		{
			name: "two remainder tranches",
			tranches: []domain.Tranche{
				domain.RemainderTranche("a", 1),
				domain.RemainderTranche("b", 1),
			},
			cash: cash("1"),
		},
		{
			name:     "timeline not starting at zero",
			tranches: []domain.Tranche{domain.FixedTranche("a", 1, d("1"))},
			cash: domain.CashFlowTimeline{Periods: []domain.CashFlowPeriod{
				{Index: 1, Revenue: d("1")},
			}},
		},
		{
			name:     "timeline not increasing",
			tranches: []domain.Tranche{domain.FixedTranche("a", 1, d("1"))},
			cash: domain.CashFlowTimeline{Periods: []domain.CashFlowPeriod{
				{Index: 0, Revenue: d("1")},
				{Index: 0, Revenue: d("1")},
			}},
		},
		{
			name:     "negative revenue",
			tranches: []domain.Tranche{domain.FixedTranche("a", 1, d("1"))},
			cash:     cash("-5"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(rules.Default(), tt.tranches, tt.cash)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestTranchesFromDeals(t *testing.T) {
	equity, err := domain.NewDealBuilder(domain.DealKindEquity).
		Name("equity").
		Amount(d("1000")).
		Ownership(d("20")).
		Priority(4).
		PreferredReturn(d("20")).
		Participation(domain.Participation{BackendPct: d("20"), Cap: d("3000"), OverageSplitPct: d("10")}).
		Build()
	require.NoError(t, err)

	gap, err := domain.NewDealBuilder(domain.DealKindGapLoan).
		Name("gap").
		Amount(d("500")).
		Priority(3).
		PreferredReturn(d("12")).
		Build()
	require.NoError(t, err)

	tranches, err := TranchesFromDeals([]domain.DealBlock{equity, gap}, 2, "producer")
	require.NoError(t, err)
	require.Len(t, tranches, 4)

	require.Equal(t, "equity", tranches[0].Name)
	require.True(t, tranches[0].Entitlement.Equal(d("1200")))
	require.Equal(t, "gap", tranches[1].Name)
	require.True(t, tranches[1].Entitlement.Equal(d("560")))

	backend := tranches[2]
	require.Equal(t, "equity"+BackendSuffix, backend.Name)
	require.True(t, backend.Backend)
	require.Equal(t, "equity", backend.Source)
	require.True(t, backend.ParticipationPct.Equal(d("20")))
	require.True(t, backend.ParticipationCap.Equal(d("3000")))

	producer := tranches[3]
	require.True(t, producer.Remainder)
	require.Equal(t, 5, producer.Priority)
}

func TestTranchesFromDeals_Empty(t *testing.T) {
	_, err := TranchesFromDeals(nil, 2, "producer")
	require.ErrorIs(t, err, domain.ErrValidation)
}
