package storage

import "errors"

// Errors shared by the scenario record and payout stores. Rows are written
// once per run: records are keyed by (run_id, scenario_id) and payouts by
// (run_id, scenario_id, period_index, tranche_name).
var (
	// ErrNotFound is returned when no record exists for a run and scenario.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a run already stored a row under the
	// same key. Stored runs are never updated; replay under a new run id.
	ErrDuplicateKey = errors.New("duplicate key: run rows are write-once")

	// ErrInvalidInput is returned for nil rows or rows missing a key field.
	ErrInvalidInput = errors.New("invalid input")
)
