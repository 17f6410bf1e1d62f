// Package scoring rates evaluated capital stacks from the producer's side.
package scoring

import (
	"sort"

	"github.com/shopspring/decimal"

	"capital-stack-lab/internal/domain"
)

// scoreEpsilon absorbs float noise from the weighted sum.
const scoreEpsilon = 1e-9

// Score produces DealScores for one evaluated scenario.
//
// Components, each on 0-100:
//  1. Ownership: 100 minus ownership ceded to deal blocks
//  2. Control: 100 minus the weights of approval rights held by material blocks
//  3. Financial: share of fixed entitlement the waterfall actually paid
//  4. Strategic: weighted sum of the three
//
// A component outside [0, 100] means the rules are inconsistent and is
// reported as a ValidationError rather than clamped.
func Score(rules *domain.BusinessRules, res *domain.ScenarioResult) (*domain.DealScores, error) {
	if rules == nil {
		return nil, domain.NewValidationError("rules", "business rules are required")
	}
	if res == nil || res.Waterfall == nil {
		return nil, domain.NewValidationError("scenario", "evaluated scenario with a waterfall result is required")
	}
	if !res.Budget.IsPositive() {
		return nil, domain.NewValidationError("scenario.budget", "must be positive, got %s", res.Budget)
	}
	sr := rules.Scoring

	// 1. Ownership
	ceded := decimal.Zero
	for _, deal := range res.Deals {
		ceded = ceded.Add(deal.OwnershipPct())
	}
	retained := domain.Hundred().Sub(ceded)
	ownership := retained.InexactFloat64()

	// 2. Control
	rights := cededRights(res, sr.ApprovalMaterialityPct)
	control := 100.0
	for _, right := range rights {
		control -= sr.ApprovalWeights[right]
	}

	// 3. Financial
	financial := 100.0
	paid, owed := res.Waterfall.FixedTotals()
	if owed.IsPositive() {
		financial = paid.Mul(domain.Hundred()).Div(owed).InexactFloat64()
	}

	// 4. Strategic
	strategic := sr.OwnershipWeight*ownership + sr.ControlWeight*control + sr.FinancialWeight*financial

	scores := &domain.DealScores{
		RetainedOwnershipPct: retained,
		CededRights:          rights,
	}
	components := []struct {
		field string
		value float64
		dst   *domain.ComponentScore
	}{
		{"ownership", ownership, &scores.Ownership},
		{"control", control, &scores.Control},
		{"financial", financial, &scores.Financial},
		{"strategic", strategic, &scores.Strategic},
	}
	for _, c := range components {
		if c.value < -scoreEpsilon || c.value > 100+scoreEpsilon {
			return nil, domain.NewValidationError("score."+c.field, "%.4f outside [0, 100]; check scoring weights", c.value)
		}
		*c.dst = domain.ComponentScore{Value: c.value, Class: Classify(sr, c.value)}
	}

	return scores, nil
}

// Classify maps a score to strong, moderate or weak using the rule thresholds.
func Classify(sr domain.ScoringRules, value float64) domain.ScoreClass {
	switch {
	case value >= sr.StrongThreshold:
		return domain.ScoreStrong
	case value < sr.WeakThreshold:
		return domain.ScoreWeak
	default:
		return domain.ScoreModerate
	}
}

// cededRights returns the distinct approval rights held by blocks funding at
// least materialityPct of the budget, sorted by name.
func cededRights(res *domain.ScenarioResult, materialityPct float64) []domain.ApprovalRight {
	threshold := decimal.NewFromFloat(materialityPct)
	seen := make(map[domain.ApprovalRight]struct{})
	var out []domain.ApprovalRight

	for _, deal := range res.Deals {
		share := deal.Amount().Mul(domain.Hundred()).Div(res.Budget)
		if share.LessThan(threshold) {
			continue
		}
		for _, right := range deal.ApprovalRights() {
			if _, ok := seen[right]; ok {
				continue
			}
			seen[right] = struct{}{}
			out = append(out, right)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
