// Package procs implements the stored-procedure tool catalog: a fixed set
// of named, parameterized queries against a per-tenant billing shard.
// The model never sees SQL; it sees tool descriptors and picks parameters.
package procs

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/ic-sshang/AIAgent/internal/tools"
)

// Store is an open handle to one tenant's billing shard.
type Store struct {
	db      *sql.DB
	shardID int
}

// Open opens (creating if needed) the shard database for shardID under
// dir and ensures the schema exists.
func Open(dir string, shardID int) (*Store, error) {
	if shardID <= 0 {
		return nil, fmt.Errorf("invalid shard id %d", shardID)
	}

	path := filepath.Join(dir, fmt.Sprintf("shard%d.db", shardID))
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open shard %d: %w", shardID, err)
	}

	store := &Store{db: db, shardID: shardID}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate shard %d: %w", shardID, err)
	}
	return store, nil
}

// OpenMemory opens an in-memory shard, used by tests and the eval harness.
func OpenMemory(shardID int) (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open memory shard: %w", err)
	}
	store := &Store{db: db, shardID: shardID}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate memory shard: %w", err)
	}
	return store, nil
}

// migrate creates the shard schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS customers (
		customer_id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		balance REAL NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_customers_name ON customers(name);

	CREATE TABLE IF NOT EXISTS invoices (
		invoice_id INTEGER PRIMARY KEY,
		customer_id INTEGER NOT NULL,
		total REAL NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		issued_at TIMESTAMP NOT NULL,
		due_at TIMESTAMP,
		FOREIGN KEY (customer_id) REFERENCES customers(customer_id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_invoices_customer ON invoices(customer_id);

	CREATE TABLE IF NOT EXISTS payments (
		payment_id INTEGER PRIMARY KEY,
		customer_id INTEGER NOT NULL,
		amount REAL NOT NULL,
		method TEXT,
		status TEXT NOT NULL DEFAULT 'settled',
		reference TEXT,
		paid_at TIMESTAMP NOT NULL,
		FOREIGN KEY (customer_id) REFERENCES customers(customer_id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_payments_customer ON payments(customer_id, paid_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// ShardID returns the tenant shard this store is bound to.
func (s *Store) ShardID() int {
	return s.shardID
}

// DB exposes the underlying handle for seeding and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the shard database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// query runs one parameterized query and packages the result set with its
// column metadata, so the caller can render keyed records.
func (s *Store) query(ctx context.Context, q string, args ...any) (*tools.Rowset, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	rs := &tools.Rowset{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return rs, nil
}
