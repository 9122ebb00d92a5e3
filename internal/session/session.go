// Package session maintains the table of live chat sessions. Each
// session is isolated: its own conversation history, result cache, and
// shard database handle. Sessions never share state.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ic-sshang/AIAgent/internal/agent"
	"github.com/ic-sshang/AIAgent/internal/procs"
)

// Factory builds the agent and shard store backing a new session.
type Factory func(ctx context.Context, shardID int) (*agent.Agent, *procs.Store, error)

// Session is one live conversation bound to a tenant shard.
type Session struct {
	Key     string
	ShardID int

	agent    *agent.Agent
	store    *procs.Store
	created  time.Time
	lastUsed time.Time
}

// Chat runs one user message through the session's agent. Concurrent
// calls on the same session are serialized by the agent.
func (s *Session) Chat(ctx context.Context, message string) (string, error) {
	return s.agent.Chat(ctx, message)
}

// Reset clears the session's conversation history. The last-result
// cache survives, so an export requested after a reset can still fall
// back to the records retrieved before it.
func (s *Session) Reset() {
	s.agent.ResetConversation()
}

// Tools returns the session's registered tool names.
func (s *Session) Tools() []string {
	return s.agent.Registry().List()
}

// Messages returns the current conversation length.
func (s *Session) Messages() int {
	return len(s.agent.History())
}

// Info is a copy-safe session summary for listings.
type Info struct {
	Key        string    `json:"session_id"`
	ShardID    int       `json:"shard_id"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	Messages   int       `json:"messages"`
}

// Table is the concurrency-safe session registry.
type Table struct {
	mu       sync.Mutex
	sessions map[string]*Session
	factory  Factory
	logger   *slog.Logger
	now      func() time.Time
}

// NewTable creates an empty session table using factory to build new
// sessions.
func NewTable(factory Factory, logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}
	return &Table{
		sessions: make(map[string]*Session),
		factory:  factory,
		logger:   logger,
		now:      time.Now,
	}
}

// GetOrCreate returns the session for key, creating one bound to
// shardID when absent. An empty key mints a fresh UUID key. Reusing a
// key against a different shard is an error: sessions never migrate
// between tenants.
func (t *Table) GetOrCreate(ctx context.Context, key string, shardID int) (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if key != "" {
		if s, ok := t.sessions[key]; ok {
			if s.ShardID != shardID {
				return nil, fmt.Errorf("session %s is bound to shard %d, not %d", key, s.ShardID, shardID)
			}
			s.lastUsed = t.now()
			return s, nil
		}
	} else {
		key = uuid.NewString()
	}

	ag, store, err := t.factory(ctx, shardID)
	if err != nil {
		return nil, fmt.Errorf("create session for shard %d: %w", shardID, err)
	}

	now := t.now()
	s := &Session{
		Key:      key,
		ShardID:  shardID,
		agent:    ag,
		store:    store,
		created:  now,
		lastUsed: now,
	}
	t.sessions[key] = s
	t.logger.Info("session created", "session", key, "shard", shardID)
	return s, nil
}

// Get returns the session for key, if present.
func (t *Table) Get(key string) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[key]
	return s, ok
}

// Reset clears the conversation of the session for key.
func (t *Table) Reset(key string) error {
	t.mu.Lock()
	s, ok := t.sessions[key]
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown session %s", key)
	}
	s.Reset()
	t.logger.Info("session reset", "session", key)
	return nil
}

// Delete removes the session for key and closes its shard handle.
func (t *Table) Delete(key string) error {
	t.mu.Lock()
	s, ok := t.sessions[key]
	delete(t.sessions, key)
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown session %s", key)
	}
	t.logger.Info("session deleted", "session", key, "shard", s.ShardID)
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// List returns summaries of all live sessions, oldest first. Message
// counts are read after the table lock is released, so a listing never
// holds up GetOrCreate for other sessions.
func (t *Table) List() []Info {
	t.mu.Lock()
	live := make([]*Session, 0, len(t.sessions))
	infos := make([]Info, 0, len(t.sessions))
	for _, s := range t.sessions {
		live = append(live, s)
		infos = append(infos, Info{
			Key:        s.Key,
			ShardID:    s.ShardID,
			CreatedAt:  s.created,
			LastUsedAt: s.lastUsed,
		})
	}
	t.mu.Unlock()

	for i, s := range live {
		infos[i].Messages = s.Messages()
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].Key < infos[j].Key
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Close tears down every session, closing all shard handles. Used at
// server shutdown.
func (t *Table) Close() error {
	t.mu.Lock()
	sessions := t.sessions
	t.sessions = make(map[string]*Session)
	t.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if s.store == nil {
			continue
		}
		if err := s.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
