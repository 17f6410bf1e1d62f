package waterfall

import (
	"fmt"

	"capital-stack-lab/internal/domain"
)

// BackendSuffix is appended to a deal name to name its participation tranche.
const BackendSuffix = " backend"

// TranchesFromDeals maps deal blocks to waterfall tranches.
//
// Every block gets a fixed tranche for its entitlement (amount plus preferred
// return) at the block's priority. Blocks with participation terms also get a
// backend tranche. When producer is non-empty a remainder tranche of that name
// is appended so the producer keeps whatever backend the investors do not take.
func TranchesFromDeals(blocks []domain.DealBlock, places int32, producer string) ([]domain.Tranche, error) {
	if len(blocks) == 0 {
		return nil, domain.NewValidationError("deals", "at least one deal block is required")
	}

	out := make([]domain.Tranche, 0, 2*len(blocks)+1)
	var backend []domain.Tranche
	for _, b := range blocks {
		fixed := domain.FixedTranche(b.Name(), b.Priority(), b.Entitlement(places))
		fixed.Source = b.Name()
		out = append(out, fixed)

		p, ok := b.Participation()
		if !ok {
			continue
		}
		backend = append(backend, domain.Tranche{
			Name:             b.Name() + BackendSuffix,
			Priority:         b.Priority(),
			Source:           b.Name(),
			Backend:          true,
			ParticipationPct: p.BackendPct,
			ParticipationCap: p.Cap,
			OveragePct:       p.OverageSplitPct,
		})
	}
	out = append(out, backend...)

	if producer != "" {
		out = append(out, domain.RemainderTranche(producer, maxPriority(out)+1))
	}

	if err := ValidateTranches(out); err != nil {
		return nil, fmt.Errorf("tranches from deals: %w", err)
	}
	return out, nil
}

func maxPriority(tranches []domain.Tranche) int {
	m := 0
	for _, t := range tranches {
		if t.Priority > m {
			m = t.Priority
		}
	}
	return m
}
