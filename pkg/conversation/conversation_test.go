package conversation

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestAppendRejectsOrphanToolResult(t *testing.T) {
	c, _ := New()
	err := c.Append(Message{Role: RoleTool, Content: Blocks{ToolResult{ToolUseID: "call_1", Payload: "[]"}}})
	if !errors.Is(err, ErrOrphanToolResult) {
		t.Fatalf("Append() error = %v, want ErrOrphanToolResult", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestAppendAcceptsAnsweredToolUse(t *testing.T) {
	c, _ := New(TextMessage(RoleUser, "3 boxes of soap"))
	if err := c.Append(Message{Role: RoleAssistant, Content: Blocks{
		TextBlock{Text: "searching"},
		ToolUse{ID: "call_1", Name: "searchProducts", Arguments: json.RawMessage(`{"text":"soap"}`)},
	}}); err != nil {
		t.Fatalf("append assistant: %v", err)
	}
	if err := c.Append(Message{Role: RoleTool, Content: Blocks{ToolResult{ToolUseID: "call_1", Payload: "[]"}}}); err != nil {
		t.Fatalf("append tool result: %v", err)
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
}

func TestAppendRejectsMisplacedBlocks(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"tool use from user", Message{Role: RoleUser, Content: Blocks{ToolUse{ID: "a", Name: "x"}}}},
		{"tool result from assistant", Message{Role: RoleAssistant, Content: Blocks{ToolResult{ToolUseID: "a"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := New()
			if err := c.Append(tt.msg); !errors.Is(err, ErrMisplacedBlock) {
				t.Errorf("Append() error = %v, want ErrMisplacedBlock", err)
			}
		})
	}
}

func TestNewReportsIndex(t *testing.T) {
	_, err := New(
		TextMessage(RoleUser, "hi"),
		Message{Role: RoleTool, Content: Blocks{ToolResult{ToolUseID: "nope"}}},
	)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); !strings.HasPrefix(got, "messages[1]") {
		t.Errorf("error = %q, want messages[1] prefix", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	c, _ := New(TextMessage(RoleUser, "hi"))
	cp := c.Clone()
	if err := cp.Append(TextMessage(RoleAssistant, "hello")); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 1 || cp.Len() != 2 {
		t.Errorf("Len() original=%d clone=%d, want 1 and 2", c.Len(), cp.Len())
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	c, _ := New()
	_ = c.Append(Message{Role: RoleAssistant, Content: Blocks{ToolUse{ID: "a", Name: "x", Arguments: json.RawMessage(`{"k":1}`)}}})

	msgs := c.Messages()
	blocks := msgs[0].Content.(Blocks)
	tu := blocks[0].(ToolUse)
	tu.Arguments[2] = 'z'

	again := c.Messages()[0].ToolUses()[0]
	if string(again.Arguments) != `{"k":1}` {
		t.Errorf("stored arguments mutated through copy: %s", again.Arguments)
	}
}

func TestMessageJSONRoundTrip(t *testing.T) {
	in := `[
		{"role":"system","content":"be brief"},
		{"role":"user","content":"soap"},
		{"role":"assistant","content":[{"type":"text","text":"ok"},{"type":"tool_use","id":"t1","name":"searchProducts","input":{"text":"soap"}}]},
		{"role":"tool","content":[{"type":"tool_result","tool_use_id":"t1","content":"[]"}]}
	]`
	var msgs []Message
	if err := json.Unmarshal([]byte(in), &msgs); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("len = %d, want 4", len(msgs))
	}
	if msgs[0].Content != Text("be brief") {
		t.Errorf("system content = %#v", msgs[0].Content)
	}
	uses := msgs[2].ToolUses()
	if len(uses) != 1 || uses[0].ID != "t1" || string(uses[0].Arguments) != `{"text":"soap"}` {
		t.Errorf("tool uses = %+v", uses)
	}
	if _, err := New(msgs...); err != nil {
		t.Errorf("decoded history rejected: %v", err)
	}

	out, err := json.Marshal(msgs)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var again []Message
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatalf("Unmarshal again: %v", err)
	}
	if again[3].ToolResults()[0].ToolUseID != "t1" {
		t.Errorf("tool result lost on round trip: %s", out)
	}
}

func TestMessageUnmarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"bad role", `{"role":"robot","content":"x"}`},
		{"unknown block", `{"role":"user","content":[{"type":"image"}]}`},
		{"tool use without id", `{"role":"assistant","content":[{"type":"tool_use","name":"x"}]}`},
		{"tool result without ref", `{"role":"tool","content":[{"type":"tool_result"}]}`},
		{"number content", `{"role":"user","content":42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Message
			if err := json.Unmarshal([]byte(tt.in), &m); err == nil {
				t.Errorf("Unmarshal(%s) succeeded, want error", tt.in)
			}
		})
	}
}

func TestPlainText(t *testing.T) {
	m := Message{Role: RoleAssistant, Content: Blocks{
		TextBlock{Text: "a"}, ToolUse{ID: "1", Name: "x"}, TextBlock{Text: "b"},
	}}
	if got := m.PlainText(); got != "ab" {
		t.Errorf("PlainText() = %q, want %q", got, "ab")
	}
}
