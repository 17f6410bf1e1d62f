package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"capital-stack-lab/internal/domain"
	"capital-stack-lab/internal/storage"
)

// ScenarioRecordStore implements storage.ScenarioRecordStore using PostgreSQL.
// Money columns are NUMERIC and travel as text to keep decimals exact.
type ScenarioRecordStore struct {
	pool *Pool
}

// NewScenarioRecordStore creates a new ScenarioRecordStore.
func NewScenarioRecordStore(pool *Pool) *ScenarioRecordStore {
	return &ScenarioRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ScenarioRecordStore = (*ScenarioRecordStore)(nil)

const insertScenarioRun = `
	INSERT INTO scenario_runs (
		run_id, scenario_id, project_name, template_name, rank,
		budget, incentive_funding, deals,
		total_available, total_distributed, fixed_paid, fixed_entitlement, unrecouped_count,
		ownership_score, control_score, financial_score, strategic_score,
		recoupment_probability, simulation_iterations, created_at
	) VALUES (
		$1, $2, $3, $4, $5,
		$6::numeric, $7::numeric, $8::jsonb,
		$9::numeric, $10::numeric, $11::numeric, $12::numeric, $13,
		$14, $15, $16, $17,
		$18, $19, $20
	)
`

const selectScenarioRun = `
	SELECT
		run_id, scenario_id, project_name, template_name, rank,
		budget::text, incentive_funding::text, deals,
		total_available::text, total_distributed::text, fixed_paid::text, fixed_entitlement::text, unrecouped_count,
		ownership_score, control_score, financial_score, strategic_score,
		recoupment_probability, simulation_iterations, created_at
	FROM scenario_runs
`

// Insert adds a new record. Returns ErrDuplicateKey if (run_id, scenario_id) exists.
func (s *ScenarioRecordStore) Insert(ctx context.Context, r *domain.ScenarioRecord) error {
	args, err := recordArgs(r)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, insertScenarioRun, args...); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert scenario record: %w", err)
	}
	return nil
}

// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
func (s *ScenarioRecordStore) InsertBulk(ctx context.Context, records []*domain.ScenarioRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		args, err := recordArgs(r)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insertScenarioRun, args...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert scenario record in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Get retrieves one record. Returns ErrNotFound if not exists.
func (s *ScenarioRecordStore) Get(ctx context.Context, runID, scenarioID string) (*domain.ScenarioRecord, error) {
	row := s.pool.QueryRow(ctx, selectScenarioRun+` WHERE run_id = $1 AND scenario_id = $2`, runID, scenarioID)
	r, err := scanScenarioRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get scenario record: %w", err)
	}
	return r, nil
}

// GetByRunID retrieves all records of a run, ordered by rank ASC.
func (s *ScenarioRecordStore) GetByRunID(ctx context.Context, runID string) ([]*domain.ScenarioRecord, error) {
	rows, err := s.pool.Query(ctx, selectScenarioRun+` WHERE run_id = $1 ORDER BY rank ASC, scenario_id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("get scenario records by run id: %w", err)
	}
	defer rows.Close()

	return scanScenarioRecords(rows)
}

// GetByProject retrieves all records for a project, ordered by created_at ASC, rank ASC.
func (s *ScenarioRecordStore) GetByProject(ctx context.Context, project string) ([]*domain.ScenarioRecord, error) {
	rows, err := s.pool.Query(ctx,
		selectScenarioRun+` WHERE project_name = $1 ORDER BY created_at ASC, run_id ASC, rank ASC`, project)
	if err != nil {
		return nil, fmt.Errorf("get scenario records by project: %w", err)
	}
	defer rows.Close()

	return scanScenarioRecords(rows)
}

func recordArgs(r *domain.ScenarioRecord) ([]any, error) {
	if r == nil || r.RunID == "" || r.ScenarioID == "" {
		return nil, storage.ErrInvalidInput
	}
	deals, err := json.Marshal(r.Deals)
	if err != nil {
		return nil, fmt.Errorf("encode deals: %w", err)
	}
	return []any{
		r.RunID, r.ScenarioID, r.ProjectName, r.TemplateName, r.Rank,
		r.Budget.String(), r.IncentiveFunding.String(), string(deals),
		r.TotalAvailable.String(), r.TotalDistributed.String(), r.FixedPaid.String(), r.FixedEntitlement.String(), r.UnrecoupedCount,
		r.OwnershipScore, r.ControlScore, r.FinancialScore, r.StrategicScore,
		r.RecoupmentProbability, r.SimulationIterations, r.CreatedAt,
	}, nil
}

// scanScenarioRecord scans a single row into a ScenarioRecord.
func scanScenarioRecord(row pgx.Row) (*domain.ScenarioRecord, error) {
	var (
		r     domain.ScenarioRecord
		deals []byte
		money [6]string
	)

	err := row.Scan(
		&r.RunID, &r.ScenarioID, &r.ProjectName, &r.TemplateName, &r.Rank,
		&money[0], &money[1], &deals,
		&money[2], &money[3], &money[4], &money[5], &r.UnrecoupedCount,
		&r.OwnershipScore, &r.ControlScore, &r.FinancialScore, &r.StrategicScore,
		&r.RecoupmentProbability, &r.SimulationIterations, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	targets := []*decimal.Decimal{
		&r.Budget, &r.IncentiveFunding,
		&r.TotalAvailable, &r.TotalDistributed, &r.FixedPaid, &r.FixedEntitlement,
	}
	for i, target := range targets {
		v, err := decimal.NewFromString(money[i])
		if err != nil {
			return nil, fmt.Errorf("decode numeric column: %w", err)
		}
		*target = v
	}

	if err := json.Unmarshal(deals, &r.Deals); err != nil {
		return nil, fmt.Errorf("decode deals: %w", err)
	}
	return &r, nil
}

// scanScenarioRecords scans multiple rows into a slice of ScenarioRecord.
func scanScenarioRecords(rows pgx.Rows) ([]*domain.ScenarioRecord, error) {
	var records []*domain.ScenarioRecord

	for rows.Next() {
		r, err := scanScenarioRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scenario record row: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenario record rows: %w", err)
	}
	return records, nil
}
