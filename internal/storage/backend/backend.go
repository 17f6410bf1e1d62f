// Package backend opens the record and payout stores selected by config.
package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"capital-stack-lab/internal/config"
	"capital-stack-lab/internal/storage"
	chstore "capital-stack-lab/internal/storage/clickhouse"
	"capital-stack-lab/internal/storage/memory"
	"capital-stack-lab/internal/storage/migrations"
	pgstore "capital-stack-lab/internal/storage/postgres"
	"capital-stack-lab/internal/storage/sqlite"
)

// Backend is an opened pair of stores. Both are nil for config.StoreNone.
type Backend struct {
	Records        storage.ScenarioRecordStore
	Payouts        storage.PayoutStore
	RecordDatabase string // metrics label
	PayoutDatabase string // metrics label

	closers []func() error
}

// Open connects the stores for cfg.Store and applies migrations.
func Open(ctx context.Context, cfg config.Config) (*Backend, error) {
	switch cfg.Store {
	case config.StoreNone:
		return &Backend{}, nil

	case config.StoreMemory:
		return &Backend{
			Records:        memory.NewScenarioRecordStore(),
			Payouts:        memory.NewPayoutStore(),
			RecordDatabase: "memory",
			PayoutDatabase: "memory",
		}, nil

	case config.StoreSqlite:
		if dir := filepath.Dir(cfg.SqlitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		db, err := sqlite.Open(ctx, cfg.SqlitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &Backend{
			Records:        sqlite.NewScenarioRecordStore(db),
			Payouts:        sqlite.NewPayoutStore(db),
			RecordDatabase: "sqlite",
			PayoutDatabase: "sqlite",
			closers:        []func() error{db.Close},
		}, nil

	case config.StoreDatabase:
		pgPool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pgPool); err != nil {
			pgPool.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}

		chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			pgPool.Close()
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}

		return &Backend{
			Records:        pgstore.NewScenarioRecordStore(pgPool),
			Payouts:        chstore.NewPayoutStore(chConn),
			RecordDatabase: "postgres",
			PayoutDatabase: "clickhouse",
			closers: []func() error{
				chConn.Close,
				func() error { pgPool.Close(); return nil },
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// Persistent reports whether stored runs outlive the process.
func (b *Backend) Persistent() bool {
	return b.RecordDatabase == "sqlite" || b.RecordDatabase == "postgres"
}

// Close releases every connection, returning the first error.
func (b *Backend) Close() error {
	var first error
	for _, c := range b.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	b.closers = nil
	return first
}
