// Package waterfall distributes per-period cash across a priority-ordered
// capital stack with carry-forward of unmet entitlement.
package waterfall

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"capital-stack-lab/internal/domain"
)

// Run applies each period's available cash to the tranches.
//
// Per period:
//  1. Fixed tranches are paid in priority order (ties keep input order), each
//     receiving min(outstanding, remaining cash)
//  2. Unpaid entitlement stays outstanding for the next period (no interest)
//  3. Residual cash is split among backend tranches as floor(residual x pct / 100);
//     a remainder tranche then takes whatever is left
//  4. Conservation is checked before moving on
//
// Periods are processed strictly in order; the outstanding counters are the
// only mutable state and live for one call.
func Run(rules *domain.BusinessRules, tranches []domain.Tranche, cash domain.CashFlowTimeline) (*domain.WaterfallResult, error) {
	if rules == nil {
		return nil, domain.NewValidationError("rules", "business rules are required")
	}
	if err := ValidateTranches(tranches); err != nil {
		return nil, err
	}
	if err := cash.Validate(); err != nil {
		return nil, err
	}

	places := rules.Places()
	fixed, backend := splitOrder(tranches)
	l := newLedger(tranches, cash.Len())

	periods := make([]domain.PeriodSummary, cash.Len())
	for p, period := range cash.Periods {
		available := period.Revenue
		remaining := available

		// 1. Fixed tranches by priority
		for _, i := range fixed {
			pay := decimal.Min(l.outstanding[i], remaining)
			if pay.IsPositive() {
				l.pay(i, p, pay)
				remaining = remaining.Sub(pay)
			}
		}

		// 3. Residual to backend tranches
		if residual := remaining; residual.IsPositive() {
			for _, i := range backend {
				var share decimal.Decimal
				if l.tranches[i].Remainder {
					share = remaining
				} else {
					share = domain.PctOf(residual, l.backendPct(i), places)
					share = l.clipToCap(i, share)
				}
				if share.IsPositive() {
					l.pay(i, p, share)
					remaining = remaining.Sub(share)
				}
			}
		}

		l.closePeriod(p)

		// 4. Conservation
		distributed := l.periodTotal(p)
		if err := checkConservation(p, available, distributed, remaining, l); err != nil {
			return nil, err
		}

		periods[p] = domain.PeriodSummary{
			Index:         period.Index,
			Available:     available,
			Distributed:   distributed,
			Undistributed: remaining,
		}
	}

	return &domain.WaterfallResult{
		Periods:  periods,
		Tranches: l.results(),
	}, nil
}

// checkConservation fails when a period paid out more than it had or any
// counter went negative.
func checkConservation(p int, available, distributed, remaining decimal.Decimal, l *ledger) error {
	if distributed.GreaterThan(available) {
		return &domain.ComputationError{
			Op:     "waterfall",
			Period: p,
			Detail: fmt.Sprintf("distributed %s exceeds available %s", distributed, available),
		}
	}
	if !distributed.Add(remaining).Equal(available) {
		return &domain.ComputationError{
			Op:     "waterfall",
			Period: p,
			Detail: fmt.Sprintf("distributed %s + undistributed %s != available %s", distributed, remaining, available),
		}
	}
	for i, o := range l.outstanding {
		if o.IsNegative() {
			return &domain.ComputationError{
				Op:     "waterfall",
				Period: p,
				Detail: fmt.Sprintf("tranche %q outstanding entitlement went negative (%s)", l.tranches[i].Name, o),
			}
		}
	}
	return nil
}

// splitOrder returns fixed tranche indices sorted by priority (stable) and
// backend tranche indices in input order, with the remainder tranche last.
func splitOrder(tranches []domain.Tranche) (fixed, backend []int) {
	remainder := -1
	for i, t := range tranches {
		switch {
		case t.Remainder:
			remainder = i
		case t.Backend:
			backend = append(backend, i)
		default:
			fixed = append(fixed, i)
		}
	}
	if remainder >= 0 {
		backend = append(backend, remainder)
	}
	sort.SliceStable(fixed, func(a, b int) bool {
		return tranches[fixed[a]].Priority < tranches[fixed[b]].Priority
	})
	return fixed, backend
}

// ValidateTranches rejects malformed tranche lists before any cash moves.
func ValidateTranches(tranches []domain.Tranche) error {
	if len(tranches) == 0 {
		return domain.NewValidationError("tranches", "at least one tranche is required")
	}

	names := make(map[string]struct{}, len(tranches))
	backendTotal := decimal.Zero
	remainders := 0
	for _, t := range tranches {
		field := "tranche." + t.Name
		if t.Name == "" {
			return domain.NewValidationError("tranche.name", "name is empty")
		}
		if _, dup := names[t.Name]; dup {
			return domain.NewValidationError("tranches", "duplicate tranche %q", t.Name)
		}
		names[t.Name] = struct{}{}
		if t.Priority < 0 {
			return domain.NewValidationError(field, "negative priority %d", t.Priority)
		}

		if t.Remainder {
			remainders++
			if !t.Backend {
				return domain.NewValidationError(field, "remainder tranche must be a backend tranche")
			}
			if !t.ParticipationPct.IsZero() || !t.ParticipationCap.IsZero() || !t.OveragePct.IsZero() {
				return domain.NewValidationError(field, "remainder tranche cannot carry participation terms")
			}
		}

		if !t.Backend {
			if t.Entitlement.IsNegative() {
				return domain.NewValidationError(field, "negative entitlement %s", t.Entitlement)
			}
			if !t.ParticipationPct.IsZero() || !t.ParticipationCap.IsZero() || !t.OveragePct.IsZero() {
				return domain.NewValidationError(field, "fixed tranche cannot carry participation terms")
			}
			continue
		}

		if !t.Entitlement.IsZero() {
			return domain.NewValidationError(field, "backend tranche cannot carry a fixed entitlement")
		}
		if !validPct(t.ParticipationPct) || !validPct(t.OveragePct) {
			return domain.NewValidationError(field, "participation and overage must be in [0, 100]")
		}
		if t.ParticipationCap.IsNegative() {
			return domain.NewValidationError(field, "negative participation cap")
		}
		backendTotal = backendTotal.Add(decimal.Max(t.ParticipationPct, t.OveragePct))
	}

	if remainders > 1 {
		return domain.NewValidationError("tranches", "%d remainder tranches, at most one allowed", remainders)
	}
	if backendTotal.GreaterThan(domain.Hundred()) {
		return domain.NewValidationError("tranches", "backend participation sums to %s%%, more than 100%%", backendTotal)
	}
	return nil
}

func validPct(v decimal.Decimal) bool {
	return !v.IsNegative() && v.LessThanOrEqual(domain.Hundred())
}
