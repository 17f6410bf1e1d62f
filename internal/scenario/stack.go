package scenario

import (
	"github.com/shopspring/decimal"

	"capital-stack-lab/internal/domain"
)

// ownershipPlaces is the precision of derived ownership percentages.
const ownershipPlaces = 4

// stack is the capital structure a template produces for one budget.
type stack struct {
	deals   []domain.DealBlock
	funding decimal.Decimal // non-recoupable credit sale proceeds
	option  domain.MonetizationOption
	quote   domain.MonetizationQuote
}

// buildStack turns a template's budget shares into deal blocks.
//
// The incentive share is funded according to the template's monetization
// option: an advance becomes a tax-credit loan, a sale becomes non-recoupable
// funding, a direct claim funds nothing up front. Equity absorbs any shortfall
// and all rounding so the stack sums to the budget exactly.
func buildStack(rules *domain.BusinessRules, budget decimal.Decimal, claim *domain.TaxCreditClaim, tpl domain.ScenarioTemplate) (*stack, error) {
	places := rules.Places()
	share := func(pct decimal.Decimal) decimal.Decimal {
		return domain.PctOf(budget, pct, places)
	}

	option, ok := rules.Option(tpl.IncentiveOption)
	if !ok {
		return nil, domain.NewValidationError("template."+tpl.Name, "unknown monetization option %q", tpl.IncentiveOption)
	}
	quote, ok := claim.Option(tpl.IncentiveOption)
	if !ok {
		return nil, domain.NewValidationError("template."+tpl.Name, "claim has no quote for %q", tpl.IncentiveOption)
	}

	amounts := make(map[domain.DealKind]decimal.Decimal, len(domain.DealKinds))
	funding := decimal.Zero

	incentiveShare := share(tpl.IncentivePct)
	switch option.Kind {
	case domain.MonetizationAdvance:
		amounts[domain.DealKindTaxCreditLoan] = decimal.Min(incentiveShare, quote.Net)
	case domain.MonetizationSale:
		funding = decimal.Min(incentiveShare, quote.Net)
	}

	amounts[domain.DealKindGapLoan] = share(tpl.GapLoanPct)
	amounts[domain.DealKindPresale] = share(tpl.PresalePct)
	amounts[domain.DealKindStreamer] = share(tpl.StreamerPct)

	committed := funding
	for _, a := range amounts {
		committed = committed.Add(a)
	}
	equity := budget.Sub(committed)
	if equity.IsNegative() {
		return nil, &domain.ComputationError{
			Op:     "stack",
			Period: -1,
			Detail: "template " + tpl.Name + " commits more than the budget",
		}
	}
	amounts[domain.DealKindEquity] = equity

	deals := make([]domain.DealBlock, 0, len(domain.DealKinds))
	ownership := decimal.Zero
	for _, kind := range domain.DealKinds {
		amount := amounts[kind]
		if !amount.IsPositive() {
			continue
		}
		block, err := buildBlock(rules, kind, amount, budget)
		if err != nil {
			return nil, err
		}
		ownership = ownership.Add(block.OwnershipPct())
		deals = append(deals, block)
	}

	if ownership.GreaterThan(domain.Hundred()) {
		return nil, domain.NewValidationError("template."+tpl.Name, "ownership ceded sums to %s%%", ownership)
	}

	return &stack{deals: deals, funding: funding, option: option, quote: quote}, nil
}

// buildBlock applies the configured terms for kind to one amount.
func buildBlock(rules *domain.BusinessRules, kind domain.DealKind, amount, budget decimal.Decimal) (domain.DealBlock, error) {
	terms, ok := rules.Terms(kind)
	if !ok {
		return domain.DealBlock{}, domain.NewValidationError("deal_terms", "no terms for %s", kind)
	}

	ownership := decimal.Zero
	if terms.OwnershipFactorPct.IsPositive() {
		ownership = amount.Mul(terms.OwnershipFactorPct).Div(budget).RoundFloor(ownershipPlaces)
	}

	b := domain.NewDealBuilder(kind).
		Amount(amount).
		Ownership(ownership).
		Priority(terms.Priority).
		PreferredReturn(terms.PreferredReturnPct).
		ApprovalRights(terms.ApprovalRights...)

	if terms.Participates {
		b.Participation(domain.Participation{
			BackendPct:      ownership,
			Cap:             amount.Mul(terms.BackendCapMultiple).RoundFloor(rules.Places()),
			OverageSplitPct: ownership.Mul(terms.OverageSplitPct).Shift(-2).RoundFloor(ownershipPlaces),
		})
	}
	return b.Build()
}
