package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestAuditDB opens a hardened SQLite pool in t.TempDir(), runs all
// pending audit migrations, and registers cleanup.
func OpenTestAuditDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "audit.sqlite")

	pool, err := OpenSQLite(path, "write", 0)
	if err != nil {
		t.Fatalf("open test audit db: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	if err := RunMigrations(pool); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return pool
}

// OpenTestStore opens a SQLite data store in t.TempDir() with a sample
// schema exercising foreign keys, uniqueness, soft deletes, and read-only
// views of the same data. It registers cleanup and returns the store.
//
// Tests that don't need the read/write split can use Write for everything.
func OpenTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data.sqlite")

	store, err := Open(DriverSQLite, path, 4)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	for _, stmt := range testSchema {
		if _, err := store.Write.Exec(stmt); err != nil {
			t.Fatalf("seed test schema: %v", err)
		}
	}

	return store
}

var testSchema = []string{
	`CREATE TABLE customers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		credit_limit REAL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		deleted_at TIMESTAMP
	)`,
	`CREATE TABLE orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id INTEGER NOT NULL REFERENCES customers (id),
		status TEXT NOT NULL DEFAULT 'pending',
		total REAL NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sku TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		price REAL NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE order_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id INTEGER NOT NULL REFERENCES orders (id),
		product_id INTEGER NOT NULL REFERENCES products (id),
		quantity INTEGER NOT NULL
	)`,
}
