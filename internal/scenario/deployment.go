package scenario

import (
	"github.com/shopspring/decimal"

	"capital-stack-lab/internal/domain"
)

// IncentiveFundingSource names the deployment column funded by a credit sale.
const IncentiveFundingSource = "incentive_funding"

// allocateDeployment splits each drawdown period across funding sources in
// proportion to their amounts. Shares round down; the rounding remainder of a
// period goes to the largest source so every period sums to its draw.
func allocateDeployment(dd *domain.InvestmentDrawdown, deals []domain.DealBlock, funding decimal.Decimal, places int32) ([]domain.BlockDeployment, error) {
	names := make([]string, 0, len(deals)+1)
	weights := make([]decimal.Decimal, 0, len(deals)+1)
	for _, d := range deals {
		names = append(names, d.Name())
		weights = append(weights, d.Amount())
	}
	if funding.IsPositive() {
		names = append(names, IncentiveFundingSource)
		weights = append(weights, funding)
	}

	total := domain.SumAmounts(weights)
	if !total.IsPositive() {
		return nil, domain.NewValidationError("deals", "no funding sources to deploy")
	}

	largest := 0
	for i, w := range weights {
		if w.GreaterThan(weights[largest]) {
			largest = i
		}
	}

	out := make([]domain.BlockDeployment, len(names))
	for i, name := range names {
		out[i] = domain.BlockDeployment{Deal: name, Draws: make([]decimal.Decimal, len(dd.Draws))}
	}

	for t, draw := range dd.Draws {
		allocated := decimal.Zero
		for i, w := range weights {
			part := draw.Mul(w).Div(total).RoundFloor(places)
			out[i].Draws[t] = part
			allocated = allocated.Add(part)
		}
		out[largest].Draws[t] = out[largest].Draws[t].Add(draw.Sub(allocated))
	}
	return out, nil
}
