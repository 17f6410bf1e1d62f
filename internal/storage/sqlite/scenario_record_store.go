package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"capital-stack-lab/internal/domain"
	"capital-stack-lab/internal/storage"
)

// ScenarioRecordStore implements storage.ScenarioRecordStore using SQLite.
// Money is stored as decimal text.
type ScenarioRecordStore struct {
	db *DB
}

// NewScenarioRecordStore creates a new ScenarioRecordStore.
func NewScenarioRecordStore(db *DB) *ScenarioRecordStore {
	return &ScenarioRecordStore{db: db}
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
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectScenarioRun = `
	SELECT
		run_id, scenario_id, project_name, template_name, rank,
		budget, incentive_funding, deals,
		total_available, total_distributed, fixed_paid, fixed_entitlement, unrecouped_count,
		ownership_score, control_score, financial_score, strategic_score,
		recoupment_probability, simulation_iterations, created_at
	FROM scenario_runs`

// Insert adds a new record. Returns ErrDuplicateKey if (run_id, scenario_id) exists.
func (s *ScenarioRecordStore) Insert(ctx context.Context, r *domain.ScenarioRecord) error {
	return s.InsertBulk(ctx, []*domain.ScenarioRecord{r})
}

// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
func (s *ScenarioRecordStore) InsertBulk(ctx context.Context, records []*domain.ScenarioRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		if r == nil || r.RunID == "" || r.ScenarioID == "" {
			return storage.ErrInvalidInput
		}
		deals, err := json.Marshal(r.Deals)
		if err != nil {
			return fmt.Errorf("encode deals: %w", err)
		}
		var prob sql.NullFloat64
		if r.RecoupmentProbability != nil {
			prob = sql.NullFloat64{Float64: *r.RecoupmentProbability, Valid: true}
		}

		_, err = tx.ExecContext(ctx, insertScenarioRun,
			r.RunID, r.ScenarioID, r.ProjectName, r.TemplateName, r.Rank,
			r.Budget.String(), r.IncentiveFunding.String(), string(deals),
			r.TotalAvailable.String(), r.TotalDistributed.String(), r.FixedPaid.String(), r.FixedEntitlement.String(), r.UnrecoupedCount,
			r.OwnershipScore, r.ControlScore, r.FinancialScore, r.StrategicScore,
			prob, r.SimulationIterations, r.CreatedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert scenario record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Get retrieves one record. Returns ErrNotFound if not exists.
func (s *ScenarioRecordStore) Get(ctx context.Context, runID, scenarioID string) (*domain.ScenarioRecord, error) {
	row := s.db.QueryRowContext(ctx, selectScenarioRun+` WHERE run_id = ? AND scenario_id = ?`, runID, scenarioID)
	r, err := scanScenarioRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get scenario record: %w", err)
	}
	return r, nil
}

// GetByRunID retrieves all records of a run, ordered by rank ASC.
func (s *ScenarioRecordStore) GetByRunID(ctx context.Context, runID string) ([]*domain.ScenarioRecord, error) {
	return s.query(ctx, selectScenarioRun+` WHERE run_id = ? ORDER BY rank ASC, scenario_id ASC`, runID)
}

// GetByProject retrieves all records for a project, ordered by created_at ASC, rank ASC.
func (s *ScenarioRecordStore) GetByProject(ctx context.Context, project string) ([]*domain.ScenarioRecord, error) {
	return s.query(ctx,
		selectScenarioRun+` WHERE project_name = ? ORDER BY created_at ASC, run_id ASC, rank ASC`, project)
}

func (s *ScenarioRecordStore) query(ctx context.Context, query string, args ...any) ([]*domain.ScenarioRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scenario records: %w", err)
	}
	defer rows.Close()

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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScenarioRecord(row rowScanner) (*domain.ScenarioRecord, error) {
	var (
		r     domain.ScenarioRecord
		deals string
		money [6]string
		prob  sql.NullFloat64
	)
	err := row.Scan(
		&r.RunID, &r.ScenarioID, &r.ProjectName, &r.TemplateName, &r.Rank,
		&money[0], &money[1], &deals,
		&money[2], &money[3], &money[4], &money[5], &r.UnrecoupedCount,
		&r.OwnershipScore, &r.ControlScore, &r.FinancialScore, &r.StrategicScore,
		&prob, &r.SimulationIterations, &r.CreatedAt,
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
			return nil, fmt.Errorf("decode money column: %w", err)
		}
		*target = v
	}
	if prob.Valid {
		p := prob.Float64
		r.RecoupmentProbability = &p
	}
	if err := json.Unmarshal([]byte(deals), &r.Deals); err != nil {
		return nil, fmt.Errorf("decode deals: %w", err)
	}
	return &r, nil
}
