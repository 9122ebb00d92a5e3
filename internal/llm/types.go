// Package llm provides the chat-completions client used by the agent loop.
package llm

// Message roles. These match the chat-completions wire format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents one turn in a conversation.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // links a tool result to the call it answers
	Name       string     `json:"name,omitempty"`         // tool name on tool-result messages
}

// ToolCall is a tool invocation requested by the model. Arguments use
// proper Go types — wire format conversion (the provider sends arguments
// as a JSON-encoded string) happens at the provider boundary.
type ToolCall struct {
	ID       string `json:"id"`
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

// NewToolCall builds a ToolCall; mostly useful in tests and fakes, where
// the anonymous Function struct is awkward to construct inline.
func NewToolCall(id, name string, args map[string]any) ToolCall {
	var tc ToolCall
	tc.ID = id
	tc.Function.Name = name
	tc.Function.Arguments = args
	return tc
}

// Completion is the provider-neutral result of one model query.
type Completion struct {
	Message      Message
	Model        string
	FinishReason string

	InputTokens  int
	OutputTokens int
}
