package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SqliteFS embeds all SQLite migration files.
//
//go:embed sqlite/*.sql
var SqliteFS embed.FS

const sqliteMigrationTable = "schema_migrations"

// ApplySqlite executes each embedded SQLite migration at most once,
// recording applied files in schema_migrations.
func ApplySqlite(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("sql db is required")
	}

	files, err := readMigrations(SqliteFS, "sqlite")
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+sqliteMigrationTable+` (
		name TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, f := range files {
		var found int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM `+sqliteMigrationTable+` WHERE name = ?`, f.Name).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", f.Name, err)
		}

		up := upSection(f.SQL)
		if strings.TrimSpace(up) == "" {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", f.Name, err)
		}
		if _, err := tx.ExecContext(ctx, up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", f.Name, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO `+sqliteMigrationTable+` (name, applied_at) VALUES (?, ?)`,
			f.Name, time.Now().UTC().UnixMilli())
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", f.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", f.Name, err)
		}
	}
	return nil
}

// upSection returns the SQL between "-- +migrate Up" and "-- +migrate Down".
// Files without markers are applied whole.
func upSection(content string) string {
	const upMarker, downMarker = "-- +migrate Up", "-- +migrate Down"
	start := strings.Index(content, upMarker)
	if start == -1 {
		return content
	}
	content = content[start+len(upMarker):]
	if end := strings.Index(content, downMarker); end != -1 {
		content = content[:end]
	}
	return content
}
