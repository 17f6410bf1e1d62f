// Package incentive converts a production budget and jurisdiction rules into a
// tax credit and its monetization options.
package incentive

import (
	"github.com/shopspring/decimal"

	"capital-stack-lab/internal/domain"
)

// Calculate computes the gross credit for req and quotes every configured
// monetization option. It never selects an option; see TaxCreditClaim.Select.
//
// Steps:
//  1. Validate budget, qualifying spend and the stacking cap
//  2. Resolve each jurisdiction's capture rate
//  3. Sum rates and apply the stacking cap
//  4. Gross credit = qualifying spend x effective rate (floored)
//  5. Quote each option as gross x option rate (floored)
func Calculate(rules *domain.BusinessRules, req domain.IncentiveRequest) (*domain.TaxCreditClaim, error) {
	if rules == nil {
		return nil, domain.NewValidationError("rules", "business rules are required")
	}
	places := rules.Places()

	// 1. Validate inputs
	if !req.Budget.IsPositive() {
		return nil, domain.NewValidationError("budget", "must be positive, got %s", req.Budget)
	}
	qualifying := req.QualifyingSpend
	if qualifying.IsZero() {
		qualifying = req.Budget
	}
	if !qualifying.IsPositive() || qualifying.GreaterThan(req.Budget) {
		return nil, domain.NewValidationError("qualifying_spend", "must be in (0, budget], got %s", qualifying)
	}
	if len(req.Jurisdictions) == 0 {
		return nil, domain.NewValidationError("jurisdictions", "at least one jurisdiction is required")
	}

	capPct := rules.Incentives.StackingCapPct
	if req.StackingCapPct != nil {
		capPct = req.StackingCapPct
	}
	if capPct != nil && !validRate(*capPct) {
		return nil, domain.NewValidationError("stacking_cap", "%s%% outside [0, 100]", *capPct)
	}

	// 2-3. Effective rate
	rate := decimal.Zero
	seen := make(map[string]struct{}, len(req.Jurisdictions))
	for _, id := range req.Jurisdictions {
		if _, dup := seen[id]; dup {
			return nil, domain.NewValidationError("jurisdictions", "duplicate jurisdiction %q", id)
		}
		seen[id] = struct{}{}

		j, ok := rules.Jurisdiction(id)
		if !ok {
			return nil, domain.NewValidationError("jurisdictions", "unknown jurisdiction %q", id)
		}
		if !validRate(j.CaptureRatePct) {
			return nil, domain.NewValidationError("jurisdictions."+id, "capture rate %s%% outside [0, 100]", j.CaptureRatePct)
		}
		rate = rate.Add(j.CaptureRatePct)
	}

	capped := false
	if capPct != nil && rate.GreaterThan(*capPct) {
		rate = *capPct
		capped = true
	}
	if !validRate(rate) {
		return nil, domain.NewValidationError("jurisdictions", "combined rate %s%% exceeds 100%% and no stacking cap applies", rate)
	}

	// 4. Gross credit
	gross := domain.PctOf(qualifying, rate, places)

	// 5. Monetization quotes
	options := make([]domain.MonetizationQuote, 0, len(rules.Incentives.Options))
	for _, o := range rules.Incentives.Options {
		if !validRate(o.RatePct) {
			return nil, domain.NewValidationError("monetization."+o.Name, "rate %s%% outside [0, 100]", o.RatePct)
		}
		options = append(options, domain.MonetizationQuote{
			Name:         o.Name,
			Kind:         o.Kind,
			RatePct:      o.RatePct,
			Net:          domain.PctOf(gross, o.RatePct, places),
			DelayPeriods: o.DelayPeriods,
		})
	}

	return &domain.TaxCreditClaim{
		Jurisdictions:    append([]string(nil), req.Jurisdictions...),
		QualifyingSpend:  qualifying,
		EffectiveRatePct: rate,
		Capped:           capped,
		GrossCredit:      gross,
		Options:          options,
	}, nil
}

func validRate(v decimal.Decimal) bool {
	return !v.IsNegative() && v.LessThanOrEqual(domain.Hundred())
}
