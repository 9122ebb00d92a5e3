// Package api implements the HTTP API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ic-sshang/AIAgent/internal/buildinfo"
	"github.com/ic-sshang/AIAgent/internal/export"
	"github.com/ic-sshang/AIAgent/internal/session"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response,
// which is not actionable but worth tracking for debugging.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP API server.
type Server struct {
	address  string
	port     int
	sessions *session.Table
	factory  session.Factory
	exporter *export.Exporter
	logger   *slog.Logger
	server   *http.Server
}

// NewServer creates a new API server. factory is used for shard tool
// introspection without creating a session.
func NewServer(address string, port int, sessions *session.Table, factory session.Factory, exporter *export.Exporter, logger *slog.Logger) *Server {
	return &Server{
		address:  address,
		port:     port,
		sessions: sessions,
		factory:  factory,
		exporter: exporter,
		logger:   logger,
	}
}

// Handler builds the route table. Exposed separately from Start so
// tests can drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/chat", s.handleChat)

	mux.HandleFunc("POST /v1/session/reset", s.handleSessionReset)
	mux.HandleFunc("GET /v1/sessions", s.handleSessionList)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleSessionDelete)

	mux.HandleFunc("GET /v1/tools/{shardID}", s.handleTools)
	mux.HandleFunc("GET /v1/download/{filename}", s.handleDownload)

	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // chat calls span many model round trips
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}, s.logger)
}

// ChatRequest is the chat endpoint payload.
type ChatRequest struct {
	Message   string `json:"message"`
	ShardID   int    `json:"shard_id"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the chat endpoint reply.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	ShardID   int    `json:"shard_id"`
	Timestamp string `json:"timestamp"`
}

// handleChat runs one user message through the session's agent loop.
// POST /v1/chat {"message": "...", "shard_id": 7, "session_id": "..."}
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.ShardID <= 0 {
		s.errorResponse(w, http.StatusBadRequest, "shard_id is required")
		return
	}

	sess, err := s.sessions.GetOrCreate(r.Context(), req.SessionID, req.ShardID)
	if err != nil {
		s.logger.Error("session lookup failed", "error", err)
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	answer, err := sess.Chat(r.Context(), req.Message)
	if err != nil {
		s.logger.Error("chat failed", "session", sess.Key, "error", err)
		s.errorResponse(w, http.StatusBadGateway, "chat failed: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ChatResponse{
		Response:  answer,
		SessionID: sess.Key,
		ShardID:   sess.ShardID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, s.logger)
}

// handleSessionReset clears a session's conversation history.
// POST /v1/session/reset {"session_id": "..."}
func (s *Server) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.sessions.Reset(req.SessionID); err != nil {
		s.errorResponse(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"status": "ok", "message": "conversation cleared"}, s.logger)
}

func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	infos := s.sessions.List()
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"sessions": infos,
		"count":    len(infos),
	}, s.logger)
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.sessions.Delete(id); err != nil {
		s.errorResponse(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"status": "ok", "session_id": id}, s.logger)
}

// ToolInfo is one entry in the tool listing.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// handleTools lists the tool catalog a session on the given shard would
// see. The shard handle is opened just for introspection and closed
// again; no session is created.
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	shardID, err := strconv.Atoi(r.PathValue("shardID"))
	if err != nil || shardID <= 0 {
		s.errorResponse(w, http.StatusBadRequest, "invalid shard id")
		return
	}

	ag, store, err := s.factory(r.Context(), shardID)
	if err != nil {
		s.logger.Error("tool listing failed", "shard", shardID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if store != nil {
		defer store.Close()
	}

	reg := ag.Registry()
	var list []ToolInfo
	for _, name := range reg.List() {
		desc, _ := reg.Get(name)
		list = append(list, ToolInfo{Name: desc.Name, Description: desc.Description})
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"shard_id": shardID,
		"tools":    list,
		"count":    len(list),
	}, s.logger)
}

// handleDownload serves a previously exported file.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	path, err := s.exporter.Path(filename)
	if err != nil {
		s.errorResponse(w, http.StatusNotFound, "no such export")
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Type", "text/csv")
	http.ServeFile(w, r, path)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "AIAgent",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"status":   "healthy",
		"sessions": len(s.sessions.List()),
	}, s.logger)
}
