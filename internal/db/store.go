// Package db provides database connectivity helpers and migration support.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/mattn/go-sqlite3"
)

// Supported data store drivers.
const (
	DriverSQLite = "sqlite"
	DriverDuckDB = "duckdb"
)

// SQLite DSN parameters for production hardening.
const (
	defaultBusyTimeout = "5000" // 5 seconds
	defaultSynchronous = "NORMAL"
	defaultJournalMode = "WAL"
)

// Store is an open data store. For SQLite it holds a single-connection
// write pool plus a wider read pool over the same file; for DuckDB both
// fields point at the same pool.
type Store struct {
	Driver string
	Write  *sql.DB
	Read   *sql.DB
}

// Close closes both pools. Safe to call when Write and Read alias the
// same *sql.DB.
func (s *Store) Close() error {
	if s.Read != nil && s.Read != s.Write {
		_ = s.Read.Close()
	}
	if s.Write != nil {
		return s.Write.Close()
	}
	return nil
}

// Open opens the data store for the given driver and path.
//
// readMaxOpen controls the SQLite read pool size (0 defaults to 4); it is
// ignored for DuckDB.
func Open(driver, path string, readMaxOpen int) (*Store, error) {
	switch driver {
	case DriverSQLite:
		writeDB, readDB, err := OpenSQLitePair(path, readMaxOpen)
		if err != nil {
			return nil, err
		}
		return &Store{Driver: driver, Write: writeDB, Read: readDB}, nil
	case DriverDuckDB:
		pool, err := OpenDuckDB(path)
		if err != nil {
			return nil, err
		}
		return &Store{Driver: driver, Write: pool, Read: pool}, nil
	default:
		return nil, fmt.Errorf("unsupported data driver %q: must be %q or %q", driver, DriverSQLite, DriverDuckDB)
	}
}

// OpenSQLite opens a *sql.DB pool for the given SQLite file path.
//
// mode controls write-safety and pool sizing:
//   - "write": MaxOpenConns=1, MaxIdleConns=1, includes _txlock=immediate
//   - "read":  MaxOpenConns=maxOpen (use 0 for default of 4), no _txlock
//
// Both modes set WAL journal, busy_timeout=5000ms, synchronous=NORMAL,
// and foreign_keys=on.
func OpenSQLite(path string, mode string, maxOpen int) (*sql.DB, error) {
	if mode != "read" && mode != "write" {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be \"read\" or \"write\"", mode)
	}

	dsn := buildSQLiteDSN(path, mode)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}

	switch mode {
	case "write":
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	case "read":
		if maxOpen <= 0 {
			maxOpen = 4
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	db.SetConnMaxLifetime(time.Hour)

	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}

	return db, nil
}

// OpenSQLitePair opens both a write pool (MaxOpenConns=1) and a read pool
// for the same SQLite file. This is the recommended way to configure SQLite
// for concurrent access from a Go HTTP server.
//
// readMaxOpen controls the read pool size (0 defaults to 4).
func OpenSQLitePair(path string, readMaxOpen int) (writeDB, readDB *sql.DB, err error) {
	writeDB, err = OpenSQLite(path, "write", 0)
	if err != nil {
		return nil, nil, err
	}

	readDB, err = OpenSQLite(path, "read", readMaxOpen)
	if err != nil {
		_ = writeDB.Close()
		return nil, nil, err
	}

	return writeDB, readDB, nil
}

// OpenDuckDB opens a *sql.DB pool for the given DuckDB file path. An
// empty path opens an in-memory database.
func OpenDuckDB(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	return db, nil
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// buildSQLiteDSN constructs a SQLite DSN with hardened parameters.
func buildSQLiteDSN(path string, mode string) string {
	params := url.Values{}
	params.Set("_journal_mode", defaultJournalMode)
	params.Set("_busy_timeout", defaultBusyTimeout)
	params.Set("_synchronous", defaultSynchronous)
	params.Set("_foreign_keys", "on")

	if mode == "write" {
		params.Set("_txlock", "immediate")
	}

	return path + "?" + params.Encode()
}
