package scenario

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/shopspring/decimal"

	"capital-stack-lab/internal/domain"
	"capital-stack-lab/internal/waterfall"
)

// pcgStream is the second PCG word; the caller seed is the first.
const pcgStream = 0x9e3779b97f4a7c15

// RecoupmentEstimator estimates the probability that every fixed tranche
// recoups when revenue is uncertain.
type RecoupmentEstimator struct {
	seed uint64
}

// NewRecoupmentEstimator creates an estimator. A zero seed selects
// rules.Simulation.Seed at estimate time.
func NewRecoupmentEstimator(seed uint64) *RecoupmentEstimator {
	return &RecoupmentEstimator{seed: seed}
}

// Estimate runs seeded Monte Carlo trials. Each trial multiplies every
// period's revenue by an independent mean-one lognormal shock, adds the fixed
// inflows and runs the waterfall; a trial succeeds when every fixed tranche
// recoups.
//
// Sampling stops once at least MinIterations trials ran and the standard error
// is within Tolerance, or at MaxIterations. When the budget runs out or ctx is
// cancelled the best available estimate is returned together with a
// *domain.ConvergenceWarning.
func (e *RecoupmentEstimator) Estimate(
	ctx context.Context,
	rules *domain.BusinessRules,
	tranches []domain.Tranche,
	revenue domain.CashFlowTimeline,
	inflows []decimal.Decimal,
) (*domain.RecoupmentEstimate, error) {
	if rules == nil {
		return nil, domain.NewValidationError("rules", "business rules are required")
	}
	if err := revenue.Validate(); err != nil {
		return nil, err
	}
	if inflows != nil && len(inflows) != revenue.Len() {
		return nil, domain.NewValidationError("inflows", "expected %d periods, got %d", revenue.Len(), len(inflows))
	}
	if err := waterfall.ValidateTranches(tranches); err != nil {
		return nil, err
	}

	sim := rules.Simulation
	if sim.MaxIterations <= 0 || sim.MinIterations <= 0 || sim.MinIterations > sim.MaxIterations {
		return nil, domain.NewValidationError("simulation", "iterations must satisfy 0 < min <= max")
	}
	if sim.Tolerance <= 0 {
		return nil, domain.NewValidationError("simulation.tolerance", "must be positive")
	}

	seed := e.seed
	if seed == 0 {
		seed = sim.Seed
	}
	rng := rand.New(rand.NewPCG(seed, pcgStream))
	places := rules.Places()
	base := revenue.Amounts()
	sigma := sim.RevenueVolatility
	drift := -sigma * sigma / 2

	est := &domain.RecoupmentEstimate{Seed: seed}
	successes := 0
	shocked := make([]decimal.Decimal, len(base))

	for est.Iterations < sim.MaxIterations {
		if err := ctx.Err(); err != nil {
			est.Warning = &domain.ConvergenceWarning{
				Iterations: est.Iterations,
				StdErr:     est.StdErr,
				Tolerance:  sim.Tolerance,
				Cancelled:  true,
			}
			return est, est.Warning
		}

		for t, amount := range base {
			factor := math.Exp(sigma*rng.NormFloat64() + drift)
			v := decimal.NewFromFloat(amount.InexactFloat64() * factor).RoundFloor(places)
			if inflows != nil {
				v = v.Add(inflows[t])
			}
			shocked[t] = v
		}

		res, err := waterfall.Run(rules, tranches, revenue.WithAmounts(shocked))
		if err != nil {
			return nil, err
		}
		if res.AllRecouped() {
			successes++
		}

		est.Iterations++
		est.Probability = float64(successes) / float64(est.Iterations)
		est.StdErr = math.Sqrt(est.Probability * (1 - est.Probability) / float64(est.Iterations))

		if est.Iterations >= sim.MinIterations && est.StdErr <= sim.Tolerance {
			est.Converged = true
			return est, nil
		}
	}

	est.Warning = &domain.ConvergenceWarning{
		Iterations: est.Iterations,
		StdErr:     est.StdErr,
		Tolerance:  sim.Tolerance,
	}
	return est, est.Warning
}
