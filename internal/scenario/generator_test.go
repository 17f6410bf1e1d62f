package scenario

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"capital-stack-lab/internal/domain"
	"capital-stack-lab/internal/drawdown"
	"capital-stack-lab/internal/incentive"
	"capital-stack-lab/internal/rules"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func revenue(periods int, amount string) domain.CashFlowTimeline {
	amounts := make([]decimal.Decimal, periods)
	for i := range amounts {
		amounts[i] = d(amount)
	}
	return domain.NewCashFlowTimeline(amounts...)
}

// newInput builds a 20M project in ca-fed: gross credit 5M,
// direct 5M after 6 periods, bank loan 4.25M, broker sale 4M.
func newInput(t *testing.T, r *domain.BusinessRules, rev domain.CashFlowTimeline) domain.ScenarioInput {
	t.Helper()

	project := domain.Project{
		Name:          "northern-lights",
		Budget:        d("20000000"),
		Jurisdictions: []string{"ca-fed"},
		Revenue:       rev,
	}

	claim, err := incentive.Calculate(r, domain.IncentiveRequest{
		Budget:        project.Budget,
		Jurisdictions: project.Jurisdictions,
	})
	require.NoError(t, err)

	dd, err := drawdown.Schedule(r, domain.DrawdownRequest{
		Total:     project.Budget,
		Periods:   12,
		Steepness: r.Drawdown.Steepness,
		Midpoint:  r.Drawdown.Midpoint,
	})
	require.NoError(t, err)

	return domain.ScenarioInput{Project: project, Claim: claim, Drawdown: dd}
}

func findResult(t *testing.T, results []domain.ScenarioResult, template string) domain.ScenarioResult {
	t.Helper()
	for _, r := range results {
		if r.Template.Name == template {
			return r
		}
	}
	t.Fatalf("no result for template %s", template)
	return domain.ScenarioResult{}
}

func dealSum(res domain.ScenarioResult) decimal.Decimal {
	total := decimal.Zero
	for _, deal := range res.Deals {
		total = total.Add(deal.Amount())
	}
	return total
}

func TestGenerate_Cardinality(t *testing.T) {
	r := rules.Default()
	in := newInput(t, r, revenue(10, "4000000"))
	gen := NewGenerator(GeneratorOptions{})

	results, err := gen.Generate(context.Background(), r, in, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, rules.TemplateDebtHeavy, results[0].Template.Name)
	require.Equal(t, rules.TemplateEquityHeavy, results[1].Template.Name)
	require.Equal(t, rules.TemplateBalanced, results[2].Template.Name)

	results, err = gen.Generate(context.Background(), r, in, 50)
	require.NoError(t, err)
	require.Len(t, results, len(r.Templates))
}

func TestGenerate_ZeroCount(t *testing.T) {
	r := rules.Default()
	in := newInput(t, r, revenue(4, "100"))

	results, err := NewGenerator(GeneratorOptions{}).Generate(context.Background(), r, in, 0)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestGenerate_NegativeCount(t *testing.T) {
	r := rules.Default()
	in := newInput(t, r, revenue(4, "100"))

	_, err := NewGenerator(GeneratorOptions{}).Generate(context.Background(), r, in, -1)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestGenerate_DuplicateTemplates(t *testing.T) {
	r := rules.Default()
	in := newInput(t, r, revenue(4, "100"))
	r.Templates = append(r.Templates, r.Templates[0])

	_, err := NewGenerator(GeneratorOptions{}).Generate(context.Background(), r, in, len(r.Templates))
	require.ErrorIs(t, err, domain.ErrValidation)

	// The duplicate sits past the requested prefix.
	results, err := NewGenerator(GeneratorOptions{}).Generate(context.Background(), r, in, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestGenerate_BalancedStack(t *testing.T) {
	r := rules.Default()
	in := newInput(t, r, revenue(10, "4000000"))

	results, err := NewGenerator(GeneratorOptions{}).Generate(context.Background(), r, in, len(r.Templates))
	require.NoError(t, err)

	res := findResult(t, results, rules.TemplateBalanced)

	want := map[string]string{
		string(domain.DealKindTaxCreditLoan): "4250000", // min(25% share, bank loan net)
		string(domain.DealKindPresale):       "4000000",
		string(domain.DealKindGapLoan):       "3000000",
		string(domain.DealKindEquity):        "8750000", // absorbs the incentive shortfall
	}
	require.Len(t, res.Deals, len(want))
	for name, amount := range want {
		deal, ok := res.Deal(name)
		require.True(t, ok, "missing %s", name)
		require.True(t, deal.Amount().Equal(d(amount)), "%s: got %s", name, deal.Amount())
	}
	require.True(t, dealSum(res).Equal(res.Budget))

	equity, _ := res.Deal(string(domain.DealKindEquity))
	require.True(t, equity.OwnershipPct().Equal(d("21.875")), "equity ownership %s", equity.OwnershipPct())
	p, ok := equity.Participation()
	require.True(t, ok)
	require.True(t, p.Cap.Equal(d("26250000")))

	// Direct receipt of 5M lands in period 6.
	require.Equal(t, 6, res.InflowPeriod)
	require.True(t, res.IncentiveInflow.Equal(d("5000000")))
	require.True(t, res.Cash.Periods[6].Revenue.Equal(d("9000000")))
	require.True(t, res.Cash.Periods[5].Revenue.Equal(d("4000000")))

	require.Len(t, res.ScenarioID, 64)
	require.NotNil(t, res.Waterfall)
}

func TestGenerate_CreditSale(t *testing.T) {
	r := rules.Default()
	in := newInput(t, r, revenue(10, "4000000"))

	results, err := NewGenerator(GeneratorOptions{}).Generate(context.Background(), r, in, len(r.Templates))
	require.NoError(t, err)

	res := findResult(t, results, rules.TemplateIncentiveMaximized)

	require.True(t, res.IncentiveFunding.Equal(d("4000000")))
	require.Equal(t, -1, res.InflowPeriod)
	require.True(t, res.IncentiveInflow.IsZero())
	require.True(t, dealSum(res).Add(res.IncentiveFunding).Equal(res.Budget))

	_, hasLoan := res.Deal(string(domain.DealKindTaxCreditLoan))
	require.False(t, hasLoan, "a sold credit must not create a loan")

	streamer, ok := res.Deal(string(domain.DealKindStreamer))
	require.True(t, ok)
	require.True(t, streamer.Amount().Equal(d("2000000")))

	// Cash is revenue only.
	for i, p := range res.Cash.Periods {
		require.True(t, p.Revenue.Equal(in.Project.Revenue.Periods[i].Revenue))
	}
}

func TestGenerate_DeploymentMatchesDrawdown(t *testing.T) {
	r := rules.Default()
	in := newInput(t, r, revenue(6, "1000000"))

	results, err := NewGenerator(GeneratorOptions{}).Generate(context.Background(), r, in, len(r.Templates))
	require.NoError(t, err)

	for _, res := range results {
		for period, draw := range in.Drawdown.Draws {
			total := decimal.Zero
			for _, dep := range res.Deployment {
				require.False(t, dep.Draws[period].IsNegative())
				total = total.Add(dep.Draws[period])
			}
			require.True(t, total.Equal(draw), "%s period %d: %s != %s", res.Template.Name, period, total, draw)
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	r := rules.Default()
	r.Simulation.MinIterations = 50
	r.Simulation.MaxIterations = 300
	r.Simulation.Tolerance = 0.05
	in := newInput(t, r, revenue(10, "3000000"))

	gen := NewGenerator(GeneratorOptions{Estimator: NewRecoupmentEstimator(0)})

	first, err := gen.Generate(context.Background(), r, in, len(r.Templates))
	require.NoError(t, err)

	for run := 0; run < 3; run++ {
		again, err := gen.Generate(context.Background(), r, in, len(r.Templates))
		require.NoError(t, err)
		require.Equal(t, first, again, "run %d", run)
	}

	for _, res := range first {
		require.NotNil(t, res.Recoupment)
		require.GreaterOrEqual(t, res.Recoupment.Probability, 0.0)
		require.LessOrEqual(t, res.Recoupment.Probability, 1.0)
		require.Equal(t, r.Simulation.Seed, res.Recoupment.Seed)
	}
}

func TestGenerate_SerialAndParallelAgree(t *testing.T) {
	serial := rules.Default()
	serial.MaxParallelScenarios = 1
	parallel := rules.Default()
	parallel.MaxParallelScenarios = 0

	in := newInput(t, serial, revenue(8, "2500000"))

	a, err := NewGenerator(GeneratorOptions{}).Generate(context.Background(), serial, in, 5)
	require.NoError(t, err)
	b, err := NewGenerator(GeneratorOptions{}).Generate(context.Background(), parallel, in, 5)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestGenerate_MissingInputs(t *testing.T) {
	r := rules.Default()
	in := newInput(t, r, revenue(4, "100"))
	gen := NewGenerator(GeneratorOptions{})

	noClaim := in
	noClaim.Claim = nil
	_, err := gen.Generate(context.Background(), r, noClaim, 1)
	require.ErrorIs(t, err, domain.ErrValidation)

	noDrawdown := in
	noDrawdown.Drawdown = nil
	_, err = gen.Generate(context.Background(), r, noDrawdown, 1)
	require.ErrorIs(t, err, domain.ErrValidation)

	badRevenue := in
	badRevenue.Project.Revenue = domain.CashFlowTimeline{}
	_, err = gen.Generate(context.Background(), r, badRevenue, 1)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty revenue, got %v", err)
	}
}
