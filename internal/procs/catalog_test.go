package procs

import (
	"context"
	"errors"
	"testing"

	"github.com/ic-sshang/AIAgent/internal/tools"
)

func seededStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory(42)
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.SeedDemo(context.Background()); err != nil {
		t.Fatalf("SeedDemo: %v", err)
	}
	return s
}

func execTool(t *testing.T, reg *tools.Registry, name string, args map[string]any) *tools.Rowset {
	t.Helper()
	result, err := reg.Execute(context.Background(), name, args)
	if err != nil {
		t.Fatalf("Execute(%s): %v", name, err)
	}
	rs, ok := result.(*tools.Rowset)
	if !ok {
		t.Fatalf("Execute(%s) returned %T, want *tools.Rowset", name, result)
	}
	return rs
}

func TestOpen_CreatesShardFile(t *testing.T) {
	s, err := Open(t.TempDir(), 7)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if s.ShardID() != 7 {
		t.Errorf("ShardID = %d, want 7", s.ShardID())
	}

	// A write makes the file materialize on disk.
	if err := s.SeedDemo(context.Background()); err != nil {
		t.Fatalf("SeedDemo: %v", err)
	}
	var n int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM customers").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("customers = %d, want 3", n)
	}
}

func TestOpen_RejectsBadShardID(t *testing.T) {
	if _, err := Open(t.TempDir(), 0); err == nil {
		t.Error("Open(0) succeeded, want error")
	}
	if _, err := Open(t.TempDir(), -3); err == nil {
		t.Error("Open(-3) succeeded, want error")
	}
}

func TestRegisterCatalog(t *testing.T) {
	s := seededStore(t)
	reg := tools.NewRegistry()
	s.RegisterCatalog(reg)

	want := []string{"customer_profile_summary", "search_customers", "search_payments"}
	got := reg.List()
	if len(got) != len(want) {
		t.Fatalf("List = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCustomerProfileSummary(t *testing.T) {
	s := seededStore(t)
	reg := tools.NewRegistry()
	s.RegisterCatalog(reg)

	rs := execTool(t, reg, "customer_profile_summary", map[string]any{"customer_id": float64(1001)})
	if len(rs.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rs.Rows))
	}

	records := rs.Records()
	rec := records[0]
	if rec["name"] != "Ada Lindqvist" {
		t.Errorf("name = %v", rec["name"])
	}
	// Two settled card payments of 120.00 each.
	if count, ok := rec["payment_count"].(int64); !ok || count != 2 {
		t.Errorf("payment_count = %v (%T)", rec["payment_count"], rec["payment_count"])
	}
	if total, ok := rec["total_paid"].(float64); !ok || total != 240.0 {
		t.Errorf("total_paid = %v (%T)", rec["total_paid"], rec["total_paid"])
	}
}

func TestCustomerProfileSummary_Unknown(t *testing.T) {
	s := seededStore(t)
	reg := tools.NewRegistry()
	s.RegisterCatalog(reg)

	rs := execTool(t, reg, "customer_profile_summary", map[string]any{"customer_id": float64(9999)})
	if len(rs.Rows) != 0 {
		t.Errorf("rows = %d, want 0", len(rs.Rows))
	}
}

func TestCustomerProfileSummary_StringID(t *testing.T) {
	s := seededStore(t)
	reg := tools.NewRegistry()
	s.RegisterCatalog(reg)

	// Models sometimes quote numeric arguments.
	rs := execTool(t, reg, "customer_profile_summary", map[string]any{"customer_id": "1002"})
	if len(rs.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rs.Rows))
	}
	if rs.Records()[0]["name"] != "Bram Okafor" {
		t.Errorf("name = %v", rs.Records()[0]["name"])
	}
}

func TestSearchCustomers(t *testing.T) {
	s := seededStore(t)
	reg := tools.NewRegistry()
	s.RegisterCatalog(reg)

	cases := []struct {
		name string
		args map[string]any
		want []string
	}{
		{"by name fragment", map[string]any{"query": "silva"}, []string{"Carmen Silva"}},
		{"by email", map[string]any{"query": "ada@"}, []string{"Ada Lindqvist"}},
		{"status filter", map[string]any{"query": "example.com", "status": "active"},
			[]string{"Ada Lindqvist", "Bram Okafor"}},
		{"no match", map[string]any{"query": "zzz"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rs := execTool(t, reg, "search_customers", tc.args)
			var names []string
			for _, rec := range rs.Records() {
				names = append(names, rec["name"].(string))
			}
			if len(names) != len(tc.want) {
				t.Fatalf("names = %v, want %v", names, tc.want)
			}
			for i := range tc.want {
				if names[i] != tc.want[i] {
					t.Errorf("names[%d] = %q, want %q", i, names[i], tc.want[i])
				}
			}
		})
	}
}

func TestSearchCustomers_MissingQuery(t *testing.T) {
	s := seededStore(t)
	reg := tools.NewRegistry()
	s.RegisterCatalog(reg)

	_, err := reg.Execute(context.Background(), "search_customers", map[string]any{})
	if err == nil {
		t.Fatal("expected error for missing query")
	}
	var missing *tools.ErrMissingParam
	if !errors.As(err, &missing) || missing.Param != "query" {
		t.Errorf("err = %v, want ErrMissingParam{query}", err)
	}
}

func TestSearchPayments(t *testing.T) {
	s := seededStore(t)
	reg := tools.NewRegistry()
	s.RegisterCatalog(reg)

	t.Run("all", func(t *testing.T) {
		rs := execTool(t, reg, "search_payments", map[string]any{})
		if len(rs.Rows) != 4 {
			t.Errorf("rows = %d, want 4", len(rs.Rows))
		}
	})

	t.Run("by customer", func(t *testing.T) {
		rs := execTool(t, reg, "search_payments", map[string]any{"customer_id": float64(1001)})
		if len(rs.Rows) != 2 {
			t.Fatalf("rows = %d, want 2", len(rs.Rows))
		}
		// Most recent first.
		if rs.Records()[0]["reference"] != "PAY-9002" {
			t.Errorf("first = %v", rs.Records()[0]["reference"])
		}
	})

	t.Run("date range", func(t *testing.T) {
		rs := execTool(t, reg, "search_payments", map[string]any{
			"start_date": "2025-06-01",
			"end_date":   "2025-07-31",
		})
		if len(rs.Rows) != 2 {
			t.Errorf("rows = %d, want 2", len(rs.Rows))
		}
	})

	t.Run("status filter", func(t *testing.T) {
		rs := execTool(t, reg, "search_payments", map[string]any{"status": "failed"})
		if len(rs.Rows) != 1 {
			t.Fatalf("rows = %d, want 1", len(rs.Rows))
		}
		if rs.Records()[0]["customer_name"] != "Carmen Silva" {
			t.Errorf("customer = %v", rs.Records()[0]["customer_name"])
		}
	})

	t.Run("limit", func(t *testing.T) {
		rs := execTool(t, reg, "search_payments", map[string]any{"limit": float64(2)})
		if len(rs.Rows) != 2 {
			t.Errorf("rows = %d, want 2", len(rs.Rows))
		}
	})
}

func TestIntArg(t *testing.T) {
	cases := []struct {
		in      any
		want    int64
		wantErr bool
	}{
		{float64(12), 12, false},
		{int(3), 3, false},
		{int64(4), 4, false},
		{"77", 77, false},
		{"abc", 0, true},
		{nil, 0, true},
		{true, 0, true},
	}
	for _, tc := range cases {
		got, err := intArg(map[string]any{"x": tc.in}, "x")
		if tc.wantErr {
			if err == nil {
				t.Errorf("intArg(%v) succeeded, want error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("intArg(%v) = %d, %v; want %d", tc.in, got, err, tc.want)
		}
	}
}
