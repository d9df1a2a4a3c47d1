package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ads-api/pkg/logger"
	"ads-api/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const pingTimeout = 5 * time.Second

// InitFunc prepares a freshly opened database, typically by creating the schema.
type InitFunc func(ctx context.Context, db *sql.DB, dialect Dialect) error

// NewDatabase opens the target, verifies it answers a ping and runs init.
// The returned pool is closed again on any failure.
func NewDatabase(ctx context.Context, target Target, init InitFunc) (*sql.DB, error) {
	if target.Dialect == SQLite && !target.IsMemory() {
		if dir := filepath.Dir(target.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open(target.DriverName, target.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serialises writers; a single connection also keeps :memory: databases shared.
	if target.Dialect == SQLite {
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if init != nil {
		if err := init(ctx, db, target.Dialect); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	return db, nil
}

// Connect opens the primary target and, when it cannot be reached, the embedded
// fallback. There is no fallback for a primary that is already SQLite, and a
// failing fallback is returned as an error.
func Connect(ctx context.Context, primaryURL, fallbackURL string, init InitFunc, loggers *logger.Loggers) (*sql.DB, Target, error) {
	primary, err := ParseURL(primaryURL)
	if err != nil {
		return nil, Target{}, err
	}

	db, err := NewDatabase(ctx, primary, init)
	if err == nil {
		return db, primary, nil
	}
	if primary.Dialect == SQLite {
		return nil, primary, fmt.Errorf("embedded database %s unavailable: %w", primary, err)
	}

	fallback, parseErr := ParseURL(fallbackURL)
	if parseErr != nil {
		return nil, primary, fmt.Errorf("primary database unavailable (%v), fallback url invalid: %w", err, parseErr)
	}
	if fallback.Dialect != SQLite {
		return nil, primary, fmt.Errorf("primary database unavailable (%v): fallback must be an embedded sqlite target, got %s", err, fallback.Dialect)
	}

	loggers.ErrorLogger.Warn("Primary database unavailable, using embedded fallback",
		"primary", primary.String(),
		"fallback", fallback.String(),
		utils.Err(err))

	db, err = NewDatabase(ctx, fallback, init)
	if err != nil {
		return nil, fallback, fmt.Errorf("fallback database %s unavailable: %w", fallback, err)
	}

	return db, fallback, nil
}
