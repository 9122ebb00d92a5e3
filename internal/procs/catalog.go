package procs

import (
	"context"
	"fmt"
	"strings"

	"github.com/ic-sshang/AIAgent/internal/tools"
)

const defaultSearchLimit = 50

// RegisterCatalog registers the shard's query tools on reg. Each tool is
// a named query with a fixed parameter contract; the shard handle is
// captured, so one registry serves exactly one tenant.
func (s *Store) RegisterCatalog(reg *tools.Registry) {
	reg.Register(tools.Descriptor{
		Name: "customer_profile_summary",
		Description: "Get a billing profile summary for one customer: contact details, " +
			"account balance, payment totals, and open invoice count. " +
			"Use this when the user asks about a specific customer.",
		Params: []tools.Param{
			{Name: "customer_id", Type: "integer", Description: "Numeric customer identifier", Required: true},
		},
	}, s.customerProfileSummary)

	reg.Register(tools.Descriptor{
		Name: "search_customers",
		Description: "Search customers by name or email. Returns matching customers " +
			"with their status and balance. Use this to find a customer_id when " +
			"the user refers to a customer by name.",
		Params: []tools.Param{
			{Name: "query", Type: "string", Description: "Name or email fragment to match", Required: true},
			{Name: "status", Type: "string", Description: "Filter by account status", Enum: []string{"active", "suspended", "closed"}},
			{Name: "limit", Type: "integer", Description: "Maximum rows to return (default 50)"},
		},
	}, s.searchCustomers)

	reg.Register(tools.Descriptor{
		Name: "search_payments",
		Description: "Search payment records, optionally filtered by customer, " +
			"date range, or status. Dates are YYYY-MM-DD. Returns payment " +
			"amount, method, status, and timestamp.",
		Params: []tools.Param{
			{Name: "customer_id", Type: "integer", Description: "Restrict to one customer"},
			{Name: "start_date", Type: "string", Description: "Earliest payment date, inclusive (YYYY-MM-DD)"},
			{Name: "end_date", Type: "string", Description: "Latest payment date, inclusive (YYYY-MM-DD)"},
			{Name: "status", Type: "string", Description: "Filter by payment status", Enum: []string{"settled", "pending", "failed", "refunded"}},
			{Name: "limit", Type: "integer", Description: "Maximum rows to return (default 50)"},
		},
	}, s.searchPayments)
}

func (s *Store) customerProfileSummary(ctx context.Context, args map[string]any) (any, error) {
	id, err := intArg(args, "customer_id")
	if err != nil {
		return nil, err
	}

	return s.query(ctx, `
		SELECT c.customer_id, c.name, c.email, c.phone, c.status, c.balance,
		       COUNT(DISTINCT p.payment_id) AS payment_count,
		       COALESCE(SUM(p.amount), 0) AS total_paid,
		       MAX(p.paid_at) AS last_payment_at,
		       (SELECT COUNT(*) FROM invoices i
		        WHERE i.customer_id = c.customer_id AND i.status = 'open') AS open_invoices
		FROM customers c
		LEFT JOIN payments p ON p.customer_id = c.customer_id AND p.status = 'settled'
		WHERE c.customer_id = ?
		GROUP BY c.customer_id`, id)
}

func (s *Store) searchCustomers(ctx context.Context, args map[string]any) (any, error) {
	q, err := stringArg(args, "query")
	if err != nil {
		return nil, err
	}

	where := []string{"(name LIKE ? OR email LIKE ?)"}
	pattern := "%" + q + "%"
	params := []any{pattern, pattern}

	if status, ok := args["status"].(string); ok && status != "" {
		where = append(where, "status = ?")
		params = append(params, status)
	}
	params = append(params, limitArg(args))

	return s.query(ctx, `
		SELECT customer_id, name, email, phone, status, balance
		FROM customers
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY name
		LIMIT ?`, params...)
}

func (s *Store) searchPayments(ctx context.Context, args map[string]any) (any, error) {
	where := []string{"1=1"}
	var params []any

	if _, present := args["customer_id"]; present {
		id, err := intArg(args, "customer_id")
		if err != nil {
			return nil, err
		}
		where = append(where, "p.customer_id = ?")
		params = append(params, id)
	}
	if v, ok := args["start_date"].(string); ok && v != "" {
		where = append(where, "date(p.paid_at) >= date(?)")
		params = append(params, v)
	}
	if v, ok := args["end_date"].(string); ok && v != "" {
		where = append(where, "date(p.paid_at) <= date(?)")
		params = append(params, v)
	}
	if v, ok := args["status"].(string); ok && v != "" {
		where = append(where, "p.status = ?")
		params = append(params, v)
	}
	params = append(params, limitArg(args))

	return s.query(ctx, `
		SELECT p.payment_id, p.customer_id, c.name AS customer_name,
		       p.amount, p.method, p.status, p.reference, p.paid_at
		FROM payments p
		JOIN customers c ON c.customer_id = p.customer_id
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY p.paid_at DESC
		LIMIT ?`, params...)
}

// intArg extracts an integer argument. JSON decoding hands numbers over
// as float64, and some models quote them; accept both.
func intArg(args map[string]any, name string) (int64, error) {
	switch v := args[name].(type) {
	case float64:
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case string:
		var n int64
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("parameter %s must be an integer", name)
}

func stringArg(args map[string]any, name string) (string, error) {
	if v, ok := args[name].(string); ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("parameter %s must be a non-empty string", name)
}

func limitArg(args map[string]any) int64 {
	n, err := intArg(args, "limit")
	if err != nil || n <= 0 {
		return defaultSearchLimit
	}
	return n
}
