package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// OpenDB opens a SQLite database with the store's standard pragmas and
// applies the given schema. Exposed for auxiliary tables (settings) that live
// outside the memory backends.
func OpenDB(dsn, schema string) (*sql.DB, error) {
	return openSQLite(dsn, schema)
}

// openSQLite opens a SQLite database, configures WAL mode, and applies the
// given schema.
func openSQLite(dsn, schema string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent load,
	// while WAL mode lets readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to enable WAL mode: %w", err)
	}

	// Wait instead of failing with SQLITE_BUSY when the connection is held
	// by another goroutine.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to create schema: %w", err)
	}

	return db, nil
}
