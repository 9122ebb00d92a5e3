// Package agent implements the core tool-calling loop: repeated rounds
// of "ask model → dispatch requested tools → append results → ask again"
// until the model produces a final answer or a safety limit is hit.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ic-sshang/AIAgent/internal/llm"
	"github.com/ic-sshang/AIAgent/internal/tools"
)

const (
	// minIterations and maxIterations bound the per-chat iteration
	// budget. Richer tool sets may need more chained steps, but the
	// budget is always bounded so the loop terminates.
	minIterations = 5
	maxIterations = 10

	// noProgressLimit is the number of consecutive rounds with zero
	// successful tool invocations before the loop gives up.
	noProgressLimit = 3

	// exportDataArg names the export tool's bulk-data parameter, the
	// one the fallback rule patches from the cache.
	exportDataArg = "data"
)

// Fixed user-facing messages for the loop's abnormal terminal states.
// These are answers, not errors: the session stays usable afterwards.
const (
	noProgressMessage = "I encountered errors while processing your request. Please try rephrasing your question."
	limitMessage      = "I've completed multiple steps but reached the iteration limit. Please ask a follow-up question if you need more information."
)

// Agent drives the orchestration loop for one session. Chat calls on the
// same Agent are serialized: the history and cache are not safe under
// interleaved mutation.
//
// chatMu is held for the whole of a Chat call; stateMu guards only the
// conversation, so History and ResetConversation never wait behind an
// in-flight model round trip.
type Agent struct {
	chatMu     sync.Mutex
	stateMu    sync.Mutex
	logger     *slog.Logger
	client     llm.Client
	registry   *tools.Registry
	conv       *Conversation
	cache      *ResultCache
	exportTool string
}

// New creates an agent with a conversation primed by systemPrompt.
// exportTool names the registered "export previously-retrieved data"
// tool whose data argument the cache fallback applies to; empty disables
// the fallback.
func New(logger *slog.Logger, client llm.Client, registry *tools.Registry, systemPrompt, exportTool string) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		logger:     logger,
		client:     client,
		registry:   registry,
		conv:       NewConversation(systemPrompt),
		cache:      &ResultCache{},
		exportTool: exportTool,
	}
}

// Registry returns the agent's tool registry.
func (a *Agent) Registry() *tools.Registry {
	return a.registry
}

// History returns a copy of the conversation messages.
func (a *Agent) History() []llm.Message {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.conv.Messages()
}

// ResetConversation clears the conversation history. The result cache
// deliberately survives: see [ResultCache].
func (a *Agent) ResetConversation() {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.conv.Reset()
}

// appendMessage records one message under the state lock.
func (a *Agent) appendMessage(m llm.Message) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.conv.Append(m)
}

// iterationBudget computes the bounded iteration budget for a chat call
// from the number of registered tools: tools/4 clamped into
// [minIterations, maxIterations].
func iterationBudget(toolCount int) int {
	budget := toolCount / 4
	if budget < minIterations {
		return minIterations
	}
	if budget > maxIterations {
		return maxIterations
	}
	return budget
}

// Chat submits a user message and runs the loop to a terminal state,
// returning the final answer text.
//
// A model-call failure fails the whole call: the error is returned, the
// user message and any fully-completed rounds stay in history, and no
// partial round is left behind.
func (a *Agent) Chat(ctx context.Context, userMessage string) (string, error) {
	a.chatMu.Lock()
	defer a.chatMu.Unlock()

	a.appendMessage(llm.Message{Role: llm.RoleUser, Content: userMessage})

	schemas := a.registry.Schemas()
	budget := iterationBudget(len(schemas))
	noProgress := 0

	a.logger.Debug("chat started", "tools", len(schemas), "budget", budget)

	for iteration := 1; iteration <= budget; iteration++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		comp, err := a.client.Complete(ctx, a.History(), schemas)
		if err != nil {
			return "", fmt.Errorf("model call failed: %w", err)
		}

		msg := comp.Message
		msg.Role = llm.RoleAssistant

		if len(msg.ToolCalls) == 0 {
			a.appendMessage(msg)
			a.logger.Debug("chat completed", "iterations", iteration)
			return msg.Content, nil
		}

		a.appendMessage(msg)

		anySuccess := false
		for _, call := range msg.ToolCalls {
			payload, ok := a.runCall(ctx, iteration, budget, call)
			if ok {
				anySuccess = true
			}
			a.appendMessage(llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    payload,
			})
		}

		if anySuccess {
			noProgress = 0
			continue
		}
		noProgress++
		if noProgress >= noProgressLimit {
			a.logger.Warn("stopping: no progress", "rounds", noProgress)
			return noProgressMessage, nil
		}
	}

	a.logger.Warn("reached iteration limit", "budget", budget)
	return limitMessage, nil
}

// runCall dispatches one requested invocation and returns the tool-result
// payload plus whether the call succeeded. Failures are absorbed into
// model-visible error text so the model can self-correct or ask the user.
func (a *Agent) runCall(ctx context.Context, iteration, budget int, call llm.ToolCall) (string, bool) {
	name := call.Function.Name
	args := call.Function.Arguments

	if a.exportTool != "" && name == a.exportTool {
		args = a.patchExportArgs(args)
	}

	a.logger.Info("calling tool",
		"iteration", fmt.Sprintf("%d/%d", iteration, budget),
		"tool", name,
	)

	// Cancellation between dispatches still appends a result for this
	// call, keeping the history consistent for the next model query.
	var result any
	err := ctx.Err()
	if err == nil {
		result, err = a.registry.Execute(ctx, name, args)
	}
	if err != nil {
		a.logger.Warn("tool failed", "tool", name, "error", err)
		return fmt.Sprintf("Error executing %s: %v", name, err), false
	}

	payload, records := tools.Normalize(result)

	if name != a.exportTool && len(records) > 0 {
		a.cache.Put(records)
		a.logger.Debug("cached records", "tool", name, "count", len(records))
	}

	return payload, true
}

// patchExportArgs applies the export fallback rule: when the model gave
// the export tool no data, or fewer records than the cache holds, the
// full cached record set replaces the data argument. The model routinely
// truncates bulk data when re-emitting it as a function argument; the
// cache is the source of truth for "all records just seen".
//
// The returned map is a copy — the original arguments stay untouched in
// the recorded assistant message.
func (a *Agent) patchExportArgs(args map[string]any) map[string]any {
	cached := a.cache.Records()
	if len(cached) == 0 {
		return args
	}

	supplied, isList := -1, false
	switch v := args[exportDataArg].(type) {
	case nil:
		supplied = 0
	case []any:
		supplied, isList = len(v), true
	case []map[string]any:
		supplied, isList = len(v), true
	}

	// Non-empty, non-list data passes through untouched.
	if supplied < 0 {
		return args
	}
	if supplied > 0 && (!isList || supplied >= len(cached)) {
		return args
	}

	a.logger.Info("export data incomplete, substituting cache",
		"supplied", supplied,
		"cached", len(cached),
	)

	patched := make(map[string]any, len(args)+1)
	for k, v := range args {
		patched[k] = v
	}
	patched[exportDataArg] = cached
	return patched
}
