package storage

import (
	"context"

	"capital-stack-lab/internal/domain"
)

// ScenarioRecordStore provides access to scenario_runs storage.
// Records are keyed by (run_id, scenario_id); a scenario_id repeats across
// runs of the same project.
type ScenarioRecordStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if (run_id, scenario_id) exists.
	Insert(ctx context.Context, r *domain.ScenarioRecord) error

	// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, records []*domain.ScenarioRecord) error

	// Get retrieves one record. Returns ErrNotFound if not exists.
	Get(ctx context.Context, runID, scenarioID string) (*domain.ScenarioRecord, error)

	// GetByRunID retrieves all records of a run, ordered by rank ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.ScenarioRecord, error)

	// GetByProject retrieves all records for a project, ordered by created_at ASC, rank ASC.
	GetByProject(ctx context.Context, project string) ([]*domain.ScenarioRecord, error)
}

// PayoutStore provides access to tranche_payouts storage.
type PayoutStore interface {
	// InsertBulk adds payout rows atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, points []*domain.PayoutPoint) error

	// GetByScenario retrieves payouts for one scenario of a run,
	// ordered by period_index ASC, tranche_order ASC.
	GetByScenario(ctx context.Context, runID, scenarioID string) ([]*domain.PayoutPoint, error)
}
