// Package chat provides the mutable working set of messages a turn is built on.
package chat

import (
	"fmt"

	"github.com/germanamz/assistant/pkg/chats/message"
	"github.com/germanamz/assistant/pkg/chats/role"
)

// Chat is a mutable conversation container. The zero value is ready to use.
// Chat is not safe for concurrent use; callers must synchronize externally.
type Chat struct {
	messages []message.Message
}

// New creates a Chat pre-populated with the given messages.
func New(msgs ...message.Message) *Chat {
	return &Chat{messages: msgs}
}

// Append adds one or more messages to the conversation.
func (c *Chat) Append(msgs ...message.Message) {
	c.messages = append(c.messages, msgs...)
}

// Len returns the number of messages in the conversation.
func (c *Chat) Len() int {
	return len(c.messages)
}

// Last returns the most recent message and true, or a zero Message and false
// if the conversation is empty.
func (c *Chat) Last() (message.Message, bool) {
	if len(c.messages) == 0 {
		return message.Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// LastByRole returns the most recent message with the given role.
func (c *Chat) LastByRole(r role.Role) (message.Message, bool) {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == r {
			return c.messages[i], true
		}
	}
	return message.Message{}, false
}

// Messages returns a copy of all messages in the conversation.
func (c *Chat) Messages() []message.Message {
	cp := make([]message.Message, len(c.messages))
	copy(cp, c.messages)
	return cp
}

// Readable returns the messages a provider should see: empty messages are
// dropped, everything else keeps its order.
func (c *Chat) Readable() []message.Message {
	out := make([]message.Message, 0, len(c.messages))
	for _, m := range c.messages {
		if m.IsEmpty() {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Validate checks every message and that each tool result answers a call
// made by an earlier assistant message.
func (c *Chat) Validate() error {
	calls := make(map[string]struct{})

	for i, m := range c.messages {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("chat: message %d: %w", i, err)
		}

		for _, tc := range m.ToolCalls() {
			calls[tc.ID] = struct{}{}
		}

		for _, tr := range m.ToolResults() {
			if _, ok := calls[tr.ToolCallID]; !ok {
				return fmt.Errorf("chat: message %d: tool result for unknown call %q", i, tr.ToolCallID)
			}
		}
	}

	return nil
}
