package provider

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rhuss/voxorder/pkg/conversation"
)

func TestNewReplyTerminal(t *testing.T) {
	if r := NewReply("hi", nil, Usage{}); !r.Terminal {
		t.Error("reply without tool uses must be terminal")
	}
	uses := []conversation.ToolUse{{ID: "1", Name: "searchProducts"}}
	if r := NewReply("", uses, Usage{}); r.Terminal {
		t.Error("reply with tool uses must not be terminal")
	}
}

func TestAssistantMessage(t *testing.T) {
	r := NewReply("looking", []conversation.ToolUse{
		{ID: "a", Name: "searchProducts", Arguments: json.RawMessage(`{"text":"soap"}`)},
		{ID: "b", Name: "searchProducts", Arguments: json.RawMessage(`{"text":"gloves"}`)},
	}, Usage{})

	msg := r.AssistantMessage()
	if msg.Role != conversation.RoleAssistant {
		t.Errorf("Role = %q", msg.Role)
	}
	blocks, ok := msg.Content.(conversation.Blocks)
	if !ok || len(blocks) != 3 {
		t.Fatalf("Content = %#v", msg.Content)
	}
	if _, ok := blocks[0].(conversation.TextBlock); !ok {
		t.Errorf("first block = %T, want TextBlock", blocks[0])
	}
	if len(msg.ToolUses()) != 2 {
		t.Errorf("ToolUses = %d, want 2", len(msg.ToolUses()))
	}

	plain := NewReply("done", nil, Usage{}).AssistantMessage()
	if plain.Content != conversation.Text("done") {
		t.Errorf("terminal reply content = %#v", plain.Content)
	}
}

func TestUsageAdd(t *testing.T) {
	u := Usage{PromptTokens: 10, CompletionTokens: 2}.Add(Usage{PromptTokens: 5, CompletionTokens: 1})
	if u.PromptTokens != 15 || u.CompletionTokens != 3 || u.Total() != 18 {
		t.Errorf("got %+v", u)
	}
}

func TestVendorHTTPErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"openai envelope", `{"error":{"message":"Rate limit reached","type":"requests"}}`, "Rate limit reached"},
		{"anthropic envelope", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, "Overloaded"},
		{"plain body", "upstream connect error", "upstream connect error"},
		{"empty", "", "no response body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewVendorHTTPError("openai", 429, tt.body)
			if got := e.Message(); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
			if !strings.Contains(e.Error(), "HTTP 429") {
				t.Errorf("Error() = %q", e.Error())
			}
		})
	}
}

func TestVendorHTTPErrorTruncates(t *testing.T) {
	e := NewVendorHTTPError("anthropic", 500, strings.Repeat("x", 10000))
	if len(e.Body) != maxErrorBody {
		t.Errorf("len(Body) = %d, want %d", len(e.Body), maxErrorBody)
	}
}

func TestEmptyReplyIs(t *testing.T) {
	err := EmptyReply("openai")
	if !errors.Is(err, ErrEmptyReply) {
		t.Errorf("errors.Is(%v, ErrEmptyReply) = false", err)
	}
}
