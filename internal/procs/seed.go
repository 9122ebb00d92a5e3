package procs

import "context"

// SeedDemo loads a small fixture data set into the shard: a handful of
// customers with payments and invoices. The eval harness and tests use
// it to exercise the query catalog without real data.
func (s *Store) SeedDemo(ctx context.Context) error {
	stmts := []struct {
		q    string
		args []any
	}{
		{`INSERT OR IGNORE INTO customers (customer_id, name, email, phone, status, balance, created_at)
		  VALUES (?, ?, ?, ?, ?, ?, ?)`,
			[]any{1001, "Ada Lindqvist", "ada@example.com", "+1-555-0101", "active", 0.0, "2024-02-14 09:00:00"}},
		{`INSERT OR IGNORE INTO customers (customer_id, name, email, phone, status, balance, created_at)
		  VALUES (?, ?, ?, ?, ?, ?, ?)`,
			[]any{1002, "Bram Okafor", "bram@example.com", "+1-555-0102", "active", 243.50, "2024-05-02 16:20:00"}},
		{`INSERT OR IGNORE INTO customers (customer_id, name, email, phone, status, balance, created_at)
		  VALUES (?, ?, ?, ?, ?, ?, ?)`,
			[]any{1003, "Carmen Silva", "carmen@example.com", "+1-555-0103", "suspended", 980.00, "2023-11-30 11:45:00"}},

		{`INSERT OR IGNORE INTO invoices (invoice_id, customer_id, total, status, issued_at, due_at)
		  VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{5001, 1002, 243.50, "open", "2025-07-01 00:00:00", "2025-07-31 00:00:00"}},
		{`INSERT OR IGNORE INTO invoices (invoice_id, customer_id, total, status, issued_at, due_at)
		  VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{5002, 1003, 980.00, "open", "2025-05-01 00:00:00", "2025-05-31 00:00:00"}},

		{`INSERT OR IGNORE INTO payments (payment_id, customer_id, amount, method, status, reference, paid_at)
		  VALUES (?, ?, ?, ?, ?, ?, ?)`,
			[]any{9001, 1001, 120.00, "card", "settled", "PAY-9001", "2025-06-15 10:12:00"}},
		{`INSERT OR IGNORE INTO payments (payment_id, customer_id, amount, method, status, reference, paid_at)
		  VALUES (?, ?, ?, ?, ?, ?, ?)`,
			[]any{9002, 1001, 120.00, "card", "settled", "PAY-9002", "2025-07-15 10:02:00"}},
		{`INSERT OR IGNORE INTO payments (payment_id, customer_id, amount, method, status, reference, paid_at)
		  VALUES (?, ?, ?, ?, ?, ?, ?)`,
			[]any{9003, 1002, 243.50, "transfer", "pending", "PAY-9003", "2025-08-20 08:30:00"}},
		{`INSERT OR IGNORE INTO payments (payment_id, customer_id, amount, method, status, reference, paid_at)
		  VALUES (?, ?, ?, ?, ?, ?, ?)`,
			[]any{9004, 1003, 500.00, "card", "failed", "PAY-9004", "2025-04-02 13:55:00"}},
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt.q, stmt.args...); err != nil {
			return err
		}
	}
	return nil
}
