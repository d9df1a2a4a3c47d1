package repository

import (
	"context"
	"database/sql"
	"fmt"

	"ads-api/pkg/database"
)

const advertisementsTable = "advertisements"

var schemaStatements = map[database.Dialect][]string{
	database.Postgres: {
		`CREATE TABLE IF NOT EXISTS advertisements (
			id          BIGSERIAL PRIMARY KEY,
			title       VARCHAR(256) NOT NULL,
			description TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			owner       VARCHAR(256) NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS advertisements_created_at_idx ON advertisements (created_at DESC, id DESC)`,
	},
	database.MySQL: {
		`CREATE TABLE IF NOT EXISTS advertisements (
			id          BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			title       VARCHAR(256) NOT NULL,
			description TEXT NOT NULL,
			created_at  DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			owner       VARCHAR(256) NOT NULL,
			INDEX advertisements_created_at_idx (created_at, id)
		)`,
	},
	database.SQLite: {
		`CREATE TABLE IF NOT EXISTS advertisements (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			title       VARCHAR(256) NOT NULL,
			description TEXT NOT NULL,
			created_at  TIMESTAMP NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now')),
			owner       VARCHAR(256) NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS advertisements_created_at_idx ON advertisements (created_at DESC, id DESC)`,
	},
}

// EnsureSchema creates the advertisements table if it does not exist yet.
// It matches database.InitFunc.
func EnsureSchema(ctx context.Context, db *sql.DB, dialect database.Dialect) error {
	statements, ok := schemaStatements[dialect]
	if !ok {
		return fmt.Errorf("no schema for dialect %q", dialect)
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}
