package llm

import "context"

// Client is the interface the agent loop uses to query a model provider.
type Client interface {
	// Complete sends the full conversation plus tool schemas and returns
	// the model's next message. The model decides on its own whether to
	// request tool calls.
	Complete(ctx context.Context, messages []Message, tools []map[string]any) (*Completion, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}
