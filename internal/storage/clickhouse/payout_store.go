package clickhouse

import (
	"context"
	"fmt"

	"capital-stack-lab/internal/domain"
	"capital-stack-lab/internal/storage"
)

// PayoutStore implements storage.PayoutStore using ClickHouse.
type PayoutStore struct {
	conn *Conn
}

// NewPayoutStore creates a new PayoutStore.
func NewPayoutStore(conn *Conn) *PayoutStore {
	return &PayoutStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PayoutStore = (*PayoutStore)(nil)

// InsertBulk adds payout rows atomically. Fails entire batch on any duplicate.
// ReplacingMergeTree does not reject duplicates, so they are checked first.
func (s *PayoutStore) InsertBulk(ctx context.Context, points []*domain.PayoutPoint) error {
	if len(points) == 0 {
		return nil
	}

	type scenarioKey struct{ run, scenario string }
	seen := make(map[string]struct{}, len(points))
	scenarios := make(map[scenarioKey]struct{})
	for _, p := range points {
		if p == nil || p.RunID == "" || p.ScenarioID == "" || p.TrancheName == "" {
			return storage.ErrInvalidInput
		}
		key := fmt.Sprintf("%s|%s|%d|%s", p.RunID, p.ScenarioID, p.PeriodIndex, p.TrancheName)
		if _, dup := seen[key]; dup {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
		scenarios[scenarioKey{p.RunID, p.ScenarioID}] = struct{}{}
	}

	// Rows are written per scenario, so any existing row for the scenario is a conflict.
	for k := range scenarios {
		exists, err := s.exists(ctx, k.run, k.scenario)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO tranche_payouts (
			run_id, scenario_id, period_index, tranche_name, tranche_order,
			backend, paid, outstanding_after
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.RunID, p.ScenarioID, int32(p.PeriodIndex), p.TrancheName, int32(p.TrancheOrder),
			p.Backend, p.Paid, p.OutstandingAfter,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByScenario retrieves payouts for one scenario of a run,
// ordered by period_index ASC, tranche_order ASC.
func (s *PayoutStore) GetByScenario(ctx context.Context, runID, scenarioID string) ([]*domain.PayoutPoint, error) {
	query := `
		SELECT
			run_id, scenario_id, period_index, tranche_name, tranche_order,
			backend, paid, outstanding_after
		FROM tranche_payouts FINAL
		WHERE run_id = ? AND scenario_id = ?
		ORDER BY period_index ASC, tranche_order ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("query payouts by scenario: %w", err)
	}
	defer rows.Close()

	var points []*domain.PayoutPoint
	for rows.Next() {
		var (
			p             domain.PayoutPoint
			period, order int32
		)
		err := rows.Scan(
			&p.RunID, &p.ScenarioID, &period, &p.TrancheName, &order,
			&p.Backend, &p.Paid, &p.OutstandingAfter,
		)
		if err != nil {
			return nil, fmt.Errorf("scan payout row: %w", err)
		}
		p.PeriodIndex = int(period)
		p.TrancheOrder = int(order)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payout rows: %w", err)
	}
	return points, nil
}

func (s *PayoutStore) exists(ctx context.Context, runID, scenarioID string) (bool, error) {
	query := `
		SELECT count(*) FROM tranche_payouts FINAL
		WHERE run_id = ? AND scenario_id = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, runID, scenarioID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
