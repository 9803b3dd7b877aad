package conversation

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

func (r Role) valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Content is the body of a message: either Text or Blocks.
type Content interface {
	isContent()
}

// Text is a plain text message body.
type Text string

func (Text) isContent() {}

// Blocks is an ordered list of content blocks.
type Blocks []Block

func (Blocks) isContent() {}

// Block is one element of a structured message body: TextBlock, ToolUse or
// ToolResult.
type Block interface {
	isBlock()
}

// TextBlock carries model or user text inside a structured turn.
type TextBlock struct {
	Text string
}

// ToolUse is a tool invocation emitted by a model.
type ToolUse struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolResult answers the ToolUse with the same ID.
type ToolResult struct {
	ToolUseID string
	Payload   string
	IsError   bool
}

func (TextBlock) isBlock()  {}
func (ToolUse) isBlock()    {}
func (ToolResult) isBlock() {}

// Message is a single conversation turn.
type Message struct {
	Role    Role
	Content Content
}

// TextMessage builds a plain text message.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Content: Text(text)}
}

// PlainText returns the concatenated text of the message. Tool blocks are
// skipped.
func (m Message) PlainText() string {
	switch c := m.Content.(type) {
	case Text:
		return string(c)
	case Blocks:
		var out string
		for _, b := range c {
			if tb, ok := b.(TextBlock); ok {
				out += tb.Text
			}
		}
		return out
	}
	return ""
}

// ToolUses returns the tool invocations carried by the message, in order.
func (m Message) ToolUses() []ToolUse {
	blocks, ok := m.Content.(Blocks)
	if !ok {
		return nil
	}
	var uses []ToolUse
	for _, b := range blocks {
		if tu, ok := b.(ToolUse); ok {
			uses = append(uses, tu)
		}
	}
	return uses
}

// ToolResults returns the tool results carried by the message, in order.
func (m Message) ToolResults() []ToolResult {
	blocks, ok := m.Content.(Blocks)
	if !ok {
		return nil
	}
	var results []ToolResult
	for _, b := range blocks {
		if tr, ok := b.(ToolResult); ok {
			results = append(results, tr)
		}
	}
	return results
}

// clone returns a deep copy so that two conversations never share backing
// arrays.
func (m Message) clone() Message {
	blocks, ok := m.Content.(Blocks)
	if !ok {
		return m
	}
	cp := make(Blocks, len(blocks))
	for i, b := range blocks {
		if tu, ok := b.(ToolUse); ok {
			tu.Arguments = append(json.RawMessage(nil), tu.Arguments...)
			b = tu
		}
		cp[i] = b
	}
	return Message{Role: m.Role, Content: cp}
}

// wire forms

type wireMessage struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

type wireBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// MarshalJSON encodes the message as {"role", "content"} where content is a
// string or an array of typed blocks.
func (m Message) MarshalJSON() ([]byte, error) {
	var content any
	switch c := m.Content.(type) {
	case nil:
		content = ""
	case Text:
		content = string(c)
	case Blocks:
		wb := make([]wireBlock, 0, len(c))
		for _, b := range c {
			switch v := b.(type) {
			case TextBlock:
				wb = append(wb, wireBlock{Type: "text", Text: v.Text})
			case ToolUse:
				input := v.Arguments
				if len(input) == 0 {
					input = json.RawMessage("{}")
				}
				wb = append(wb, wireBlock{Type: "tool_use", ID: v.ID, Name: v.Name, Input: input})
			case ToolResult:
				wb = append(wb, wireBlock{Type: "tool_result", ToolUseID: v.ToolUseID, Content: v.Payload, IsError: v.IsError})
			default:
				return nil, fmt.Errorf("unsupported block type %T", b)
			}
		}
		content = wb
	default:
		return nil, fmt.Errorf("unsupported content type %T", m.Content)
	}
	return json.Marshal(struct {
		Role    Role `json:"role"`
		Content any  `json:"content"`
	}{m.Role, content})
}

// UnmarshalJSON decodes either content form. Unknown roles and block types
// are rejected.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if !w.Role.valid() {
		return fmt.Errorf("invalid message role %q", w.Role)
	}
	m.Role = w.Role

	if len(w.Content) == 0 || string(w.Content) == "null" {
		m.Content = Text("")
		return nil
	}
	if w.Content[0] == '"' {
		var s string
		if err := json.Unmarshal(w.Content, &s); err != nil {
			return err
		}
		m.Content = Text(s)
		return nil
	}

	var raw []wireBlock
	if err := json.Unmarshal(w.Content, &raw); err != nil {
		return fmt.Errorf("content must be a string or an array of blocks: %w", err)
	}
	blocks := make(Blocks, 0, len(raw))
	for i, b := range raw {
		switch b.Type {
		case "text":
			blocks = append(blocks, TextBlock{Text: b.Text})
		case "tool_use":
			if b.ID == "" || b.Name == "" {
				return fmt.Errorf("content[%d]: tool_use requires id and name", i)
			}
			blocks = append(blocks, ToolUse{ID: b.ID, Name: b.Name, Arguments: b.Input})
		case "tool_result":
			if b.ToolUseID == "" {
				return fmt.Errorf("content[%d]: tool_result requires tool_use_id", i)
			}
			blocks = append(blocks, ToolResult{ToolUseID: b.ToolUseID, Payload: b.Content, IsError: b.IsError})
		default:
			return fmt.Errorf("content[%d]: unknown block type %q", i, b.Type)
		}
	}
	m.Content = blocks
	return nil
}
