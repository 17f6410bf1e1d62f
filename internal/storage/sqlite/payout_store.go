package sqlite

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"capital-stack-lab/internal/domain"
	"capital-stack-lab/internal/storage"
)

// PayoutStore implements storage.PayoutStore using SQLite.
type PayoutStore struct {
	db *DB
}

// NewPayoutStore creates a new PayoutStore.
func NewPayoutStore(db *DB) *PayoutStore {
	return &PayoutStore{db: db}
}

// Compile-time interface check.
var _ storage.PayoutStore = (*PayoutStore)(nil)

// InsertBulk adds payout rows atomically. Fails entire batch on any duplicate.
func (s *PayoutStore) InsertBulk(ctx context.Context, points []*domain.PayoutPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, p := range points {
		if p == nil || p.RunID == "" || p.ScenarioID == "" || p.TrancheName == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tranche_payouts (
				run_id, scenario_id, period_index, tranche_name, tranche_order,
				backend, paid, outstanding_after
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.RunID, p.ScenarioID, p.PeriodIndex, p.TrancheName, p.TrancheOrder,
			p.Backend, p.Paid.String(), p.OutstandingAfter.String(),
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert payout: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByScenario retrieves payouts for one scenario of a run,
// ordered by period_index ASC, tranche_order ASC.
func (s *PayoutStore) GetByScenario(ctx context.Context, runID, scenarioID string) ([]*domain.PayoutPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			run_id, scenario_id, period_index, tranche_name, tranche_order,
			backend, paid, outstanding_after
		FROM tranche_payouts
		WHERE run_id = ? AND scenario_id = ?
		ORDER BY period_index ASC, tranche_order ASC`, runID, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("query payouts by scenario: %w", err)
	}
	defer rows.Close()

	var points []*domain.PayoutPoint
	for rows.Next() {
		var (
			p                 domain.PayoutPoint
			paid, outstanding string
		)
		err := rows.Scan(
			&p.RunID, &p.ScenarioID, &p.PeriodIndex, &p.TrancheName, &p.TrancheOrder,
			&p.Backend, &paid, &outstanding,
		)
		if err != nil {
			return nil, fmt.Errorf("scan payout row: %w", err)
		}
		if p.Paid, err = decimal.NewFromString(paid); err != nil {
			return nil, fmt.Errorf("decode paid: %w", err)
		}
		if p.OutstandingAfter, err = decimal.NewFromString(outstanding); err != nil {
			return nil, fmt.Errorf("decode outstanding: %w", err)
		}
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payout rows: %w", err)
	}
	return points, nil
}
