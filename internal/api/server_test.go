package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ic-sshang/AIAgent/internal/agent"
	"github.com/ic-sshang/AIAgent/internal/export"
	"github.com/ic-sshang/AIAgent/internal/llm"
	"github.com/ic-sshang/AIAgent/internal/procs"
	"github.com/ic-sshang/AIAgent/internal/session"
	"github.com/ic-sshang/AIAgent/internal/tools"
)

type echoClient struct{ reply string }

func (c *echoClient) Complete(context.Context, []llm.Message, []map[string]any) (*llm.Completion, error) {
	return &llm.Completion{
		Message: llm.Message{Role: llm.RoleAssistant, Content: c.reply},
	}, nil
}

func (c *echoClient) Ping(context.Context) error { return nil }

func testServer(t *testing.T) (*Server, *session.Table) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exporter, err := export.New(t.TempDir(), "http://localhost:8080", logger)
	if err != nil {
		t.Fatalf("export.New: %v", err)
	}

	factory := func(ctx context.Context, shardID int) (*agent.Agent, *procs.Store, error) {
		store, err := procs.OpenMemory(shardID)
		if err != nil {
			return nil, nil, err
		}
		reg := tools.NewRegistry()
		store.RegisterCatalog(reg)
		exporter.Register(reg)
		ag := agent.New(logger, &echoClient{reply: "hello there"}, reg, "system", export.ToolName)
		return ag, store, nil
	}

	table := session.NewTable(factory, logger)
	t.Cleanup(func() { table.Close() })

	return NewServer("127.0.0.1", 0, table, factory, exporter, logger), table
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

func TestChat(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.Handler()

	rec, resp := doJSON(t, h, "POST", "/v1/chat", map[string]any{
		"message":  "hi",
		"shard_id": 7,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp["response"] != "hello there" {
		t.Errorf("response = %v", resp["response"])
	}
	sid, _ := resp["session_id"].(string)
	if sid == "" {
		t.Fatal("no session_id minted")
	}
	if resp["shard_id"] != float64(7) {
		t.Errorf("shard_id = %v", resp["shard_id"])
	}

	// Second message with the same session id reuses the session.
	rec, resp = doJSON(t, h, "POST", "/v1/chat", map[string]any{
		"message":    "again",
		"shard_id":   7,
		"session_id": sid,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp["session_id"] != sid {
		t.Errorf("session_id changed: %v", resp["session_id"])
	}
}

func TestChat_Validation(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.Handler()

	cases := []struct {
		name string
		body any
	}{
		{"empty message", map[string]any{"shard_id": 1}},
		{"missing shard", map[string]any{"message": "hi"}},
		{"bad shard", map[string]any{"message": "hi", "shard_id": -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := doJSON(t, h, "POST", "/v1/chat", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}

	// Malformed JSON body.
	req := httptest.NewRequest("POST", "/v1/chat", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}
}

func TestChat_ShardMismatch(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.Handler()

	_, resp := doJSON(t, h, "POST", "/v1/chat", map[string]any{
		"message": "hi", "shard_id": 1,
	})
	sid := resp["session_id"].(string)

	rec, _ := doJSON(t, h, "POST", "/v1/chat", map[string]any{
		"message": "hi", "shard_id": 2, "session_id": sid,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv, table := testServer(t)
	h := srv.Handler()

	_, resp := doJSON(t, h, "POST", "/v1/chat", map[string]any{
		"message": "hi", "shard_id": 3,
	})
	sid := resp["session_id"].(string)

	rec, resp := doJSON(t, h, "GET", "/v1/sessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if resp["count"] != float64(1) {
		t.Errorf("count = %v", resp["count"])
	}

	rec, _ = doJSON(t, h, "POST", "/v1/session/reset", map[string]any{"session_id": sid})
	if rec.Code != http.StatusOK {
		t.Errorf("reset status = %d", rec.Code)
	}
	sess, ok := table.Get(sid)
	if !ok || sess.Messages() != 1 {
		t.Errorf("session not reset: %v", sess)
	}

	rec, _ = doJSON(t, h, "POST", "/v1/session/reset", map[string]any{"session_id": "nope"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("reset unknown status = %d, want 404", rec.Code)
	}

	rec, _ = doJSON(t, h, "DELETE", "/v1/sessions/"+sid, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("delete status = %d", rec.Code)
	}
	if _, ok := table.Get(sid); ok {
		t.Error("session survived delete")
	}

	rec, _ = doJSON(t, h, "DELETE", "/v1/sessions/"+sid, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("double delete status = %d, want 404", rec.Code)
	}
}

func TestTools(t *testing.T) {
	srv, table := testServer(t)
	h := srv.Handler()

	rec, resp := doJSON(t, h, "GET", "/v1/tools/5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp["shard_id"] != float64(5) {
		t.Errorf("shard_id = %v", resp["shard_id"])
	}
	list, _ := resp["tools"].([]any)
	if len(list) != 4 {
		t.Fatalf("tools = %d entries, want 4", len(list))
	}
	first := list[0].(map[string]any)
	if first["name"] != "customer_profile_summary" {
		t.Errorf("tools[0] = %v", first["name"])
	}

	// Introspection must not create a session.
	if n := len(table.List()); n != 0 {
		t.Errorf("tool listing created %d sessions", n)
	}

	rec, _ = doJSON(t, h, "GET", "/v1/tools/zero", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad shard status = %d, want 400", rec.Code)
	}
}

func TestDownload(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.Handler()

	// Produce an export through the registry the way the loop would.
	ag, store, err := srv.factory(context.Background(), 1)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	defer store.Close()
	if _, err := ag.Registry().Execute(context.Background(), export.ToolName, map[string]any{
		"data":     []any{map[string]any{"a": float64(1)}},
		"filename": "dl.csv",
	}); err != nil {
		t.Fatalf("export: %v", err)
	}

	req := httptest.NewRequest("GET", "/v1/download/dl.csv", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "dl.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.Contains(rec.Body.String(), "a") {
		t.Errorf("body = %q", rec.Body.String())
	}

	rec2, _ := doJSON(t, h, "GET", "/v1/download/missing.csv", nil)
	if rec2.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", rec2.Code)
	}
}

func TestHealthAndVersion(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.Handler()

	rec, resp := doJSON(t, h, "GET", "/health", nil)
	if rec.Code != http.StatusOK || resp["status"] != "healthy" {
		t.Errorf("health = %d %v", rec.Code, resp)
	}

	rec, resp = doJSON(t, h, "GET", "/v1/version", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("version status = %d", rec.Code)
	}
	if resp["version"] == "" {
		t.Error("version missing")
	}

	rec, resp = doJSON(t, h, "GET", "/", nil)
	if rec.Code != http.StatusOK || resp["name"] != "AIAgent" {
		t.Errorf("root = %d %v", rec.Code, resp)
	}
}
