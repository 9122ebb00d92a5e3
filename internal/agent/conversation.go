package agent

import "github.com/ic-sshang/AIAgent/internal/llm"

// Conversation is the ordered, append-only message history for one
// session. It is mutated only by the priming system message, user and
// assistant appends, tool-result appends, and Reset.
type Conversation struct {
	system   string
	messages []llm.Message
}

// NewConversation creates a history primed with the given system message.
// An empty systemPrompt leaves the history unprimed.
func NewConversation(systemPrompt string) *Conversation {
	c := &Conversation{system: systemPrompt}
	c.prime()
	return c
}

func (c *Conversation) prime() {
	if c.system != "" {
		c.messages = append(c.messages, llm.Message{
			Role:    llm.RoleSystem,
			Content: c.system,
		})
	}
}

// Append adds a message to the history.
func (c *Conversation) Append(m llm.Message) {
	c.messages = append(c.messages, m)
}

// Messages returns a copy of the history for handing to the model.
func (c *Conversation) Messages() []llm.Message {
	out := make([]llm.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages in the history.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Reset clears the history and re-primes the system message, so a reset
// conversation behaves like a fresh one.
func (c *Conversation) Reset() {
	c.messages = nil
	c.prime()
}
