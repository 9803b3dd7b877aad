package conversation

import (
	"errors"
	"fmt"
)

var (
	// ErrOrphanToolResult is returned when a tool result references a tool
	// use that does not appear earlier in the conversation.
	ErrOrphanToolResult = errors.New("tool result references unknown tool use")

	// ErrMisplacedBlock is returned when a tool block appears under a role
	// that cannot carry it.
	ErrMisplacedBlock = errors.New("content block not allowed for role")
)

// Conversation is an append-only list of messages owned by one
// orchestration run. It is not safe for concurrent use.
type Conversation struct {
	messages []Message
	toolUses map[string]struct{}
}

// New builds a conversation from existing history, validating every message
// as if it had been appended in order.
func New(history ...Message) (*Conversation, error) {
	c := &Conversation{toolUses: make(map[string]struct{})}
	for i, m := range history {
		if err := c.Append(m); err != nil {
			return nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
	}
	return c, nil
}

// Append adds a message to the end of the conversation.
func (c *Conversation) Append(m Message) error {
	if !m.Role.valid() {
		return fmt.Errorf("invalid role %q", m.Role)
	}
	if m.Content == nil {
		m.Content = Text("")
	}
	if c.toolUses == nil {
		c.toolUses = make(map[string]struct{})
	}

	if blocks, ok := m.Content.(Blocks); ok {
		for _, b := range blocks {
			switch v := b.(type) {
			case ToolUse:
				if m.Role != RoleAssistant {
					return fmt.Errorf("%w: tool_use in %s message", ErrMisplacedBlock, m.Role)
				}
			case ToolResult:
				if m.Role != RoleTool {
					return fmt.Errorf("%w: tool_result in %s message", ErrMisplacedBlock, m.Role)
				}
				if _, ok := c.toolUses[v.ToolUseID]; !ok {
					return fmt.Errorf("%w: %q", ErrOrphanToolResult, v.ToolUseID)
				}
			}
		}
	}

	m = m.clone()
	for _, tu := range m.ToolUses() {
		c.toolUses[tu.ID] = struct{}{}
	}
	c.messages = append(c.messages, m)
	return nil
}

// Messages returns a copy of the messages in order.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.clone()
	}
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Last returns the final message, or false when the conversation is empty.
func (c *Conversation) Last() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1].clone(), true
}

// Clone returns an independent copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	cp := &Conversation{
		messages: c.Messages(),
		toolUses: make(map[string]struct{}, len(c.toolUses)),
	}
	for id := range c.toolUses {
		cp.toolUses[id] = struct{}{}
	}
	return cp
}
