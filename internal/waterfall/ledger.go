package waterfall

import (
	"github.com/shopspring/decimal"

	"capital-stack-lab/internal/domain"
)

// ledger holds the per-tranche counters for one run.
type ledger struct {
	tranches    []domain.Tranche
	outstanding []decimal.Decimal   // unmet fixed entitlement
	backendPaid []decimal.Decimal   // backend receipts so far
	payments    [][]decimal.Decimal // [tranche][period]
	after       [][]decimal.Decimal // outstanding after each period
}

func newLedger(tranches []domain.Tranche, periods int) *ledger {
	l := &ledger{
		tranches:    tranches,
		outstanding: make([]decimal.Decimal, len(tranches)),
		backendPaid: make([]decimal.Decimal, len(tranches)),
		payments:    make([][]decimal.Decimal, len(tranches)),
		after:       make([][]decimal.Decimal, len(tranches)),
	}
	for i, t := range tranches {
		if !t.Backend {
			l.outstanding[i] = t.Entitlement
		}
		l.payments[i] = make([]decimal.Decimal, periods)
		l.after[i] = make([]decimal.Decimal, periods)
	}
	return l
}

func (l *ledger) pay(i, period int, amount decimal.Decimal) {
	l.payments[i][period] = l.payments[i][period].Add(amount)
	if l.tranches[i].Backend {
		l.backendPaid[i] = l.backendPaid[i].Add(amount)
		return
	}
	l.outstanding[i] = l.outstanding[i].Sub(amount)
}

// backendPct is the tranche's current share of residual: the overage share once
// a capped tranche has reached its cap.
func (l *ledger) backendPct(i int) decimal.Decimal {
	t := l.tranches[i]
	if t.ParticipationCap.IsPositive() && l.backendPaid[i].GreaterThanOrEqual(t.ParticipationCap) {
		return t.OveragePct
	}
	return t.ParticipationPct
}

// clipToCap limits share so a capped tranche does not pass its cap while it is
// still on its base share.
func (l *ledger) clipToCap(i int, share decimal.Decimal) decimal.Decimal {
	t := l.tranches[i]
	if !t.ParticipationCap.IsPositive() || l.backendPaid[i].GreaterThanOrEqual(t.ParticipationCap) {
		return share
	}
	return decimal.Min(share, t.ParticipationCap.Sub(l.backendPaid[i]))
}

func (l *ledger) closePeriod(period int) {
	for i := range l.tranches {
		l.after[i][period] = l.outstanding[i]
	}
}

func (l *ledger) periodTotal(period int) decimal.Decimal {
	total := decimal.Zero
	for i := range l.tranches {
		total = total.Add(l.payments[i][period])
	}
	return total
}

func (l *ledger) results() []domain.TrancheResult {
	out := make([]domain.TrancheResult, len(l.tranches))
	for i, t := range l.tranches {
		total := domain.SumAmounts(l.payments[i])
		out[i] = domain.TrancheResult{
			Name:             t.Name,
			Priority:         t.Priority,
			Source:           t.Source,
			Backend:          t.Backend,
			Entitlement:      t.Entitlement,
			Payments:         l.payments[i],
			OutstandingAfter: l.after[i],
			Total:            total,
			Unrecouped:       l.outstanding[i],
			Recouped:         t.Backend || l.outstanding[i].IsZero(),
		}
	}
	return out
}
