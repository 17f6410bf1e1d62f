package domain

import (
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

// DealKind is the closed set of capital contribution kinds.
type DealKind string

// Deal kinds
const (
	DealKindEquity        DealKind = "equity"
	DealKindPresale       DealKind = "presale" // minimum guarantee from a distributor
	DealKindStreamer      DealKind = "streamer_license"
	DealKindGapLoan       DealKind = "gap_loan"
	DealKindTaxCreditLoan DealKind = "tax_credit_loan"
)

// DealKinds lists every kind in stack-building order.
var DealKinds = []DealKind{
	DealKindTaxCreditLoan,
	DealKindPresale,
	DealKindStreamer,
	DealKindGapLoan,
	DealKindEquity,
}

// Valid reports whether k is a known kind.
func (k DealKind) Valid() bool {
	switch k {
	case DealKindEquity, DealKindPresale, DealKindStreamer, DealKindGapLoan, DealKindTaxCreditLoan:
		return true
	}
	return false
}

// IsLoan reports whether the kind is debt.
func (k DealKind) IsLoan() bool {
	return k == DealKindGapLoan || k == DealKindTaxCreditLoan
}

// AllowsOwnership reports whether blocks of this kind may hold ownership.
func (k DealKind) AllowsOwnership() bool {
	return k == DealKindEquity || k == DealKindStreamer
}

// AllowsBackend reports whether blocks of this kind may participate in the backend.
func (k DealKind) AllowsBackend() bool {
	return k == DealKindEquity || k == DealKindStreamer
}

// ApprovalRight is a creative or business approval a financier can hold.
type ApprovalRight string

// Approval rights
const (
	ApprovalFinalCut     ApprovalRight = "final_cut"
	ApprovalBudget       ApprovalRight = "budget"
	ApprovalCast         ApprovalRight = "cast"
	ApprovalDistribution ApprovalRight = "distribution"
	ApprovalMarketing    ApprovalRight = "marketing"
)

// Valid reports whether r is a known approval right.
func (r ApprovalRight) Valid() bool {
	switch r {
	case ApprovalFinalCut, ApprovalBudget, ApprovalCast, ApprovalDistribution, ApprovalMarketing:
		return true
	}
	return false
}

// Participation describes a backend share of residual cash.
type Participation struct {
	BackendPct      decimal.Decimal `json:"backend_pct"`       // share of residual, 0-100
	Cap             decimal.Decimal `json:"cap"`               // max backend receipts, zero = uncapped
	OverageSplitPct decimal.Decimal `json:"overage_split_pct"` // share of residual after the cap is reached
}

// DealBlock is one immutable capital contribution. Build it with NewDealBuilder.
type DealBlock struct {
	name               string
	kind               DealKind
	amount             decimal.Decimal
	ownershipPct       decimal.Decimal
	priority           int
	preferredReturnPct decimal.Decimal
	participation      *Participation
	approvalRights     []ApprovalRight
}

func (d DealBlock) Name() string { return d.name }
func (d DealBlock) Kind() DealKind { return d.kind }
func (d DealBlock) Amount() decimal.Decimal { return d.amount }
func (d DealBlock) OwnershipPct() decimal.Decimal { return d.ownershipPct }
func (d DealBlock) Priority() int { return d.priority }
func (d DealBlock) PreferredReturnPct() decimal.Decimal { return d.preferredReturnPct }

// Participation returns the backend terms, if any.
func (d DealBlock) Participation() (Participation, bool) {
	if d.participation == nil {
		return Participation{}, false
	}
	return *d.participation, true
}

// ApprovalRights returns a copy of the rights held by the block.
func (d DealBlock) ApprovalRights() []ApprovalRight {
	out := make([]ApprovalRight, len(d.approvalRights))
	copy(out, d.approvalRights)
	return out
}

// HasRight reports whether the block holds right.
func (d DealBlock) HasRight(right ApprovalRight) bool {
	for _, r := range d.approvalRights {
		if r == right {
			return true
		}
	}
	return false
}

// Entitlement is principal plus preferred return, rounded down to the monetary unit.
func (d DealBlock) Entitlement(places int32) decimal.Decimal {
	return d.amount.Add(PctOf(d.amount, d.preferredReturnPct, places))
}

// DealBuilder validates a DealBlock before it exists.
type DealBuilder struct {
	block DealBlock
}

// NewDealBuilder starts a block of the given kind.
func NewDealBuilder(kind DealKind) *DealBuilder {
	return &DealBuilder{block: DealBlock{kind: kind, name: string(kind)}}
}

// Name sets the block name (defaults to the kind).
func (b *DealBuilder) Name(name string) *DealBuilder {
	b.block.name = name
	return b
}

// Amount sets the contributed amount.
func (b *DealBuilder) Amount(amount decimal.Decimal) *DealBuilder {
	b.block.amount = amount
	return b
}

// Ownership sets the ownership percentage.
func (b *DealBuilder) Ownership(pct decimal.Decimal) *DealBuilder {
	b.block.ownershipPct = pct
	return b
}

// Priority sets the waterfall rank; lower ranks are paid first.
func (b *DealBuilder) Priority(rank int) *DealBuilder {
	b.block.priority = rank
	return b
}

// PreferredReturn sets the preferred return (or interest) percentage.
func (b *DealBuilder) PreferredReturn(pct decimal.Decimal) *DealBuilder {
	b.block.preferredReturnPct = pct
	return b
}

// Participation attaches backend terms.
func (b *DealBuilder) Participation(p Participation) *DealBuilder {
	b.block.participation = &p
	return b
}

// ApprovalRights sets the approval rights held by the block.
func (b *DealBuilder) ApprovalRights(rights ...ApprovalRight) *DealBuilder {
	b.block.approvalRights = append([]ApprovalRight(nil), rights...)
	return b
}

// Build returns the block or the first invalid combination found.
func (b *DealBuilder) Build() (DealBlock, error) {
	d := b.block
	field := "deal." + d.name

	switch {
	case !d.kind.Valid():
		return DealBlock{}, NewValidationError("deal.kind", "unknown kind %q", d.kind)
	case d.name == "":
		return DealBlock{}, NewValidationError("deal.name", "name is empty")
	case d.amount.IsNegative():
		return DealBlock{}, NewValidationError(field, "negative amount %s", d.amount)
	case !isPct(d.ownershipPct):
		return DealBlock{}, NewValidationError(field, "ownership %s%% outside [0, 100]", d.ownershipPct)
	case d.ownershipPct.IsPositive() && !d.kind.AllowsOwnership():
		return DealBlock{}, NewValidationError(field, "%s cannot hold ownership", d.kind)
	case d.priority < 0:
		return DealBlock{}, NewValidationError(field, "negative priority %d", d.priority)
	case d.preferredReturnPct.IsNegative():
		return DealBlock{}, NewValidationError(field, "negative preferred return")
	}

	if p := d.participation; p != nil {
		switch {
		case !d.kind.AllowsBackend():
			return DealBlock{}, NewValidationError(field, "%s cannot participate in the backend", d.kind)
		case !isPct(p.BackendPct) || !isPct(p.OverageSplitPct):
			return DealBlock{}, NewValidationError(field, "backend and overage split must be in [0, 100]")
		case p.Cap.IsNegative():
			return DealBlock{}, NewValidationError(field, "negative backend cap")
		}
		terms := *p
		d.participation = &terms
	}

	for _, r := range d.approvalRights {
		if !r.Valid() {
			return DealBlock{}, NewValidationError(field, "unknown approval right %q", r)
		}
	}
	d.approvalRights = d.ApprovalRights()

	return d, nil
}

// dealBlockJSON is the wire form of a DealBlock.
type dealBlockJSON struct {
	Name               string          `json:"name"`
	Kind               DealKind        `json:"kind"`
	Amount             decimal.Decimal `json:"amount"`
	OwnershipPct       decimal.Decimal `json:"ownership_pct"`
	Priority           int             `json:"priority"`
	PreferredReturnPct decimal.Decimal `json:"preferred_return_pct"`
	Participation      *Participation  `json:"participation,omitempty"`
	ApprovalRights     []ApprovalRight `json:"approval_rights,omitempty"`
}

// MarshalJSON encodes the block.
func (d DealBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(dealBlockJSON{
		Name:               d.name,
		Kind:               d.kind,
		Amount:             d.amount,
		OwnershipPct:       d.ownershipPct,
		Priority:           d.priority,
		PreferredReturnPct: d.preferredReturnPct,
		Participation:      d.participation,
		ApprovalRights:     d.approvalRights,
	})
}

// UnmarshalJSON decodes the block through the builder so stored data is revalidated.
func (d *DealBlock) UnmarshalJSON(data []byte) error {
	var raw dealBlockJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Kind == "" {
		return errors.New("deal block: missing kind")
	}

	b := NewDealBuilder(raw.Kind).
		Name(raw.Name).
		Amount(raw.Amount).
		Ownership(raw.OwnershipPct).
		Priority(raw.Priority).
		PreferredReturn(raw.PreferredReturnPct).
		ApprovalRights(raw.ApprovalRights...)
	if raw.Participation != nil {
		b.Participation(*raw.Participation)
	}

	block, err := b.Build()
	if err != nil {
		return err
	}
	*d = block
	return nil
}
