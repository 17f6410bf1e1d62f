// Package scenario builds candidate capital stacks from rule templates and
// evaluates each one through the waterfall.
package scenario

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"capital-stack-lab/internal/domain"
	"capital-stack-lab/internal/idhash"
	"capital-stack-lab/internal/waterfall"
)

// DefaultProducer names the backend tranche the producer keeps.
const DefaultProducer = "producer"

// GeneratorOptions configures a Generator.
type GeneratorOptions struct {
	// Estimator runs the recoupment simulation per scenario. Nil disables it.
	Estimator *RecoupmentEstimator
	// Producer names the retained backend tranche. Empty selects DefaultProducer.
	Producer string
}

// Generator produces and evaluates scenarios.
type Generator struct {
	opts GeneratorOptions
}

// NewGenerator creates a new generator.
func NewGenerator(opts GeneratorOptions) *Generator {
	if opts.Producer == "" {
		opts.Producer = DefaultProducer
	}
	return &Generator{opts: opts}
}

// Generate evaluates the first min(n, len(rules.Templates)) templates in
// configuration order. Scenarios run concurrently, bounded by
// rules.MaxParallelScenarios; results are returned in template order and are
// identical for identical inputs. n == 0 yields no scenarios.
func (g *Generator) Generate(ctx context.Context, rules *domain.BusinessRules, in domain.ScenarioInput, n int) ([]domain.ScenarioResult, error) {
	if rules == nil {
		return nil, domain.NewValidationError("rules", "business rules are required")
	}
	if n < 0 {
		return nil, domain.NewValidationError("scenario_count", "negative count %d", n)
	}
	if in.Claim == nil {
		return nil, domain.NewValidationError("claim", "tax credit claim is required")
	}
	if in.Drawdown == nil {
		return nil, domain.NewValidationError("drawdown", "drawdown schedule is required")
	}
	if err := in.Project.Validate(); err != nil {
		return nil, err
	}

	templates := rules.Templates
	if n < len(templates) {
		templates = templates[:n]
	}
	seen := make(map[string]struct{}, len(templates))
	for _, tpl := range templates {
		if _, dup := seen[tpl.Name]; dup {
			return nil, domain.NewValidationError("rules.templates", "duplicate template %q", tpl.Name)
		}
		seen[tpl.Name] = struct{}{}
	}
	if len(templates) == 0 {
		return []domain.ScenarioResult{}, nil
	}

	limit := rules.MaxParallelScenarios
	if limit <= 0 {
		limit = len(templates)
	}

	results := make([]domain.ScenarioResult, len(templates))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)

	for i, tpl := range templates {
		eg.Go(func() error {
			res, err := g.evaluate(egCtx, rules, in, tpl)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", tpl.Name, err)
			}
			results[i] = *res
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// evaluate builds one stack and runs its waterfall.
func (g *Generator) evaluate(ctx context.Context, rules *domain.BusinessRules, in domain.ScenarioInput, tpl domain.ScenarioTemplate) (*domain.ScenarioResult, error) {
	places := rules.Places()
	project := in.Project

	st, err := buildStack(rules, project.Budget, in.Claim, tpl)
	if err != nil {
		return nil, err
	}

	// Credit cash that lands in the waterfall
	inflows, inflow, inflowPos, err := creditInflows(in.Claim, st.option, project.Revenue)
	if err != nil {
		return nil, err
	}
	cash := addInflows(project.Revenue, inflows)

	tranches, err := waterfall.TranchesFromDeals(st.deals, places, g.opts.Producer)
	if err != nil {
		return nil, err
	}
	wf, err := waterfall.Run(rules, tranches, cash)
	if err != nil {
		return nil, err
	}

	deployment, err := allocateDeployment(in.Drawdown, st.deals, st.funding, places)
	if err != nil {
		return nil, err
	}

	res := &domain.ScenarioResult{
		ScenarioID:       idhash.ComputeScenarioID(project.Name, tpl.Name, rules.Version, project.Budget),
		Template:         tpl,
		Budget:           project.Budget,
		Deals:            st.deals,
		IncentiveFunding: st.funding,
		IncentiveInflow:  inflow,
		InflowPeriod:     inflowPos,
		Cash:             cash,
		Deployment:       deployment,
		Tranches:         tranches,
		Waterfall:        wf,
	}

	if g.opts.Estimator != nil {
		est, err := g.opts.Estimator.Estimate(ctx, rules, tranches, project.Revenue, inflows)
		var warn *domain.ConvergenceWarning
		switch {
		case errors.As(err, &warn):
			est.Warning = warn
		case err != nil:
			return nil, err
		}
		res.Recoupment = est
	}

	return res, nil
}

// creditInflows places the credit's direct receipt in the waterfall for
// direct and advance monetization. A sold credit produces no inflow.
// The returned position is -1 when there is no inflow.
func creditInflows(claim *domain.TaxCreditClaim, option domain.MonetizationOption, revenue domain.CashFlowTimeline) ([]decimal.Decimal, decimal.Decimal, int, error) {
	if option.Kind == domain.MonetizationSale {
		return nil, decimal.Zero, -1, nil
	}

	direct, ok := claim.FirstOfKind(domain.MonetizationDirect)
	if !ok {
		return nil, decimal.Zero, -1, domain.NewValidationError("monetization", "no direct option to time the credit receipt")
	}

	inflows := make([]decimal.Decimal, revenue.Len())
	pos := revenue.PositionOf(direct.DelayPeriods)
	inflows[pos] = direct.Net
	return inflows, direct.Net, pos, nil
}

func addInflows(revenue domain.CashFlowTimeline, inflows []decimal.Decimal) domain.CashFlowTimeline {
	amounts := revenue.Amounts()
	for i := range inflows {
		amounts[i] = amounts[i].Add(inflows[i])
	}
	return revenue.WithAmounts(amounts)
}
