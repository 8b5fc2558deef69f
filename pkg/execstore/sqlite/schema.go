package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const SchemaVersion = 1

// Migrate creates (or upgrades) the execution schema in-place.
func Migrate(ctx context.Context, db *sql.DB) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if db == nil {
		return fmt.Errorf("db is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schema_version INTEGER NOT NULL
		);`,
		`INSERT INTO schema_meta (id, schema_version)
			VALUES (1, 0)
			ON CONFLICT(id) DO NOTHING;`,

		`CREATE TABLE IF NOT EXISTS executions (
			execution_id TEXT PRIMARY KEY,
			owner TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			-- summary is a JSON document; NULL once the summary facet timed out.
			summary TEXT,
			details_ref TEXT NOT NULL DEFAULT '',
			record_availability TEXT NOT NULL,
			record_time INTEGER NOT NULL,
			-- *_expires_at are unix seconds; NULL until the execution finishes.
			record_expires_at INTEGER,
			summary_availability TEXT NOT NULL,
			summary_time INTEGER NOT NULL,
			summary_expires_at INTEGER,
			details_availability TEXT NOT NULL,
			details_time INTEGER NOT NULL,
			details_expires_at INTEGER,
			created_at TEXT NOT NULL,
			started_at TEXT,
			finished_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_executions_owner ON executions(owner);`,
		`CREATE INDEX IF NOT EXISTS idx_executions_created_at ON executions(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_executions_record_expires ON executions(record_expires_at);`,
		`CREATE INDEX IF NOT EXISTS idx_executions_summary_expires ON executions(summary_expires_at);`,
		`CREATE INDEX IF NOT EXISTS idx_executions_details_expires ON executions(details_expires_at);`,

		`UPDATE schema_meta SET schema_version = ` + fmt.Sprint(SchemaVersion) + ` WHERE id = 1;`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
