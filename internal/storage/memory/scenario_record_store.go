package memory

import (
	"context"
	"sort"
	"sync"

	"capital-stack-lab/internal/domain"
	"capital-stack-lab/internal/storage"
)

type recordKey struct {
	runID      string
	scenarioID string
}

// ScenarioRecordStore is an in-memory implementation of storage.ScenarioRecordStore.
type ScenarioRecordStore struct {
	mu   sync.RWMutex
	data map[recordKey]*domain.ScenarioRecord
}

// NewScenarioRecordStore creates a new in-memory scenario record store.
func NewScenarioRecordStore() *ScenarioRecordStore {
	return &ScenarioRecordStore{
		data: make(map[recordKey]*domain.ScenarioRecord),
	}
}

// Insert adds a new record. Returns ErrDuplicateKey if (run_id, scenario_id) exists.
func (s *ScenarioRecordStore) Insert(_ context.Context, r *domain.ScenarioRecord) error {
	if !validRecord(r) {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{r.RunID, r.ScenarioID}
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[key] = cloneRecord(r)
	return nil
}

// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
func (s *ScenarioRecordStore) InsertBulk(_ context.Context, records []*domain.ScenarioRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[recordKey]struct{}, len(records))
	for _, r := range records {
		if !validRecord(r) {
			return storage.ErrInvalidInput
		}
		key := recordKey{r.RunID, r.ScenarioID}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range records {
		s.data[recordKey{r.RunID, r.ScenarioID}] = cloneRecord(r)
	}
	return nil
}

// Get retrieves one record. Returns ErrNotFound if not exists.
func (s *ScenarioRecordStore) Get(_ context.Context, runID, scenarioID string) (*domain.ScenarioRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[recordKey{runID, scenarioID}]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneRecord(r), nil
}

// GetByRunID retrieves all records of a run, ordered by rank ASC.
func (s *ScenarioRecordStore) GetByRunID(_ context.Context, runID string) ([]*domain.ScenarioRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ScenarioRecord
	for _, r := range s.data {
		if r.RunID == runID {
			result = append(result, cloneRecord(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Rank < result[j].Rank
	})
	return result, nil
}

// GetByProject retrieves all records for a project, ordered by created_at ASC, rank ASC.
func (s *ScenarioRecordStore) GetByProject(_ context.Context, project string) ([]*domain.ScenarioRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ScenarioRecord
	for _, r := range s.data {
		if r.ProjectName == project {
			result = append(result, cloneRecord(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		if result[i].Rank != result[j].Rank {
			return result[i].Rank < result[j].Rank
		}
		return result[i].RunID < result[j].RunID
	})
	return result, nil
}

func validRecord(r *domain.ScenarioRecord) bool {
	return r != nil && r.RunID != "" && r.ScenarioID != ""
}

func cloneRecord(r *domain.ScenarioRecord) *domain.ScenarioRecord {
	c := *r
	c.Deals = append([]domain.DealBlock(nil), r.Deals...)
	if r.RecoupmentProbability != nil {
		p := *r.RecoupmentProbability
		c.RecoupmentProbability = &p
	}
	return &c
}

var _ storage.ScenarioRecordStore = (*ScenarioRecordStore)(nil)
