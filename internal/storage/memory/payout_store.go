package memory

import (
	"context"
	"sort"
	"sync"

	"capital-stack-lab/internal/domain"
	"capital-stack-lab/internal/storage"
)

type payoutKey struct {
	runID      string
	scenarioID string
	period     int
	tranche    string
}

// PayoutStore is an in-memory implementation of storage.PayoutStore.
type PayoutStore struct {
	mu   sync.RWMutex
	data map[payoutKey]*domain.PayoutPoint
}

// NewPayoutStore creates a new in-memory payout store.
func NewPayoutStore() *PayoutStore {
	return &PayoutStore{
		data: make(map[payoutKey]*domain.PayoutPoint),
	}
}

func keyOf(p *domain.PayoutPoint) payoutKey {
	return payoutKey{p.RunID, p.ScenarioID, p.PeriodIndex, p.TrancheName}
}

// InsertBulk adds payout rows atomically. Fails entire batch on any duplicate.
func (s *PayoutStore) InsertBulk(_ context.Context, points []*domain.PayoutPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[payoutKey]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.RunID == "" || p.ScenarioID == "" || p.TrancheName == "" {
			return storage.ErrInvalidInput
		}
		key := keyOf(p)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, p := range points {
		copy := *p
		s.data[keyOf(p)] = &copy
	}
	return nil
}

// GetByScenario retrieves payouts for one scenario of a run,
// ordered by period_index ASC, tranche_order ASC.
func (s *PayoutStore) GetByScenario(_ context.Context, runID, scenarioID string) ([]*domain.PayoutPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PayoutPoint
	for _, p := range s.data {
		if p.RunID == runID && p.ScenarioID == scenarioID {
			copy := *p
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].PeriodIndex != result[j].PeriodIndex {
			return result[i].PeriodIndex < result[j].PeriodIndex
		}
		return result[i].TrancheOrder < result[j].TrancheOrder
	})
	return result, nil
}

var _ storage.PayoutStore = (*PayoutStore)(nil)
