package domain

import (
	"github.com/shopspring/decimal"
)

// IncentiveRequest asks for the credit generated by a budget in one or more jurisdictions.
type IncentiveRequest struct {
	Budget          decimal.Decimal
	QualifyingSpend decimal.Decimal // zero = whole budget
	Jurisdictions   []string
	StackingCapPct  *decimal.Decimal // overrides the rules cap when set
}

// MonetizationQuote is the net cash one monetization option yields.
type MonetizationQuote struct {
	Name         string           `json:"name"`
	Kind         MonetizationKind `json:"kind"`
	RatePct      decimal.Decimal  `json:"rate_pct"`
	Net          decimal.Decimal  `json:"net"`
	DelayPeriods int              `json:"delay_periods"`
}

// TaxCreditClaim is a gross credit and every way of turning it into cash.
type TaxCreditClaim struct {
	Jurisdictions    []string            `json:"jurisdictions"`
	QualifyingSpend  decimal.Decimal     `json:"qualifying_spend"`
	EffectiveRatePct decimal.Decimal     `json:"effective_rate_pct"`
	Capped           bool                `json:"capped"`
	GrossCredit      decimal.Decimal     `json:"gross_credit"`
	Options          []MonetizationQuote `json:"options"`

	// Set by Select only.
	Selected      string          `json:"selected,omitempty"`
	NetRealizable decimal.Decimal `json:"net_realizable"`
}

// Option returns the quote for name.
func (c *TaxCreditClaim) Option(name string) (MonetizationQuote, bool) {
	for _, q := range c.Options {
		if q.Name == name {
			return q, true
		}
	}
	return MonetizationQuote{}, false
}

// FirstOfKind returns the first quote of the given kind.
func (c *TaxCreditClaim) FirstOfKind(kind MonetizationKind) (MonetizationQuote, bool) {
	for _, q := range c.Options {
		if q.Kind == kind {
			return q, true
		}
	}
	return MonetizationQuote{}, false
}

// OptionMap returns option name -> net realizable amount.
func (c *TaxCreditClaim) OptionMap() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(c.Options))
	for _, q := range c.Options {
		out[q.Name] = q.Net
	}
	return out
}

// Select returns a copy of the claim with the chosen monetization path.
func (c *TaxCreditClaim) Select(name string) (*TaxCreditClaim, error) {
	q, ok := c.Option(name)
	if !ok {
		return nil, NewValidationError("monetization", "unknown option %q", name)
	}
	out := *c
	out.Jurisdictions = append([]string(nil), c.Jurisdictions...)
	out.Options = append([]MonetizationQuote(nil), c.Options...)
	out.Selected = q.Name
	out.NetRealizable = q.Net
	return &out, nil
}
