package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/voxorder/pkg/api"
	"github.com/rhuss/voxorder/pkg/conversation"
	"github.com/rhuss/voxorder/pkg/provider"
)

// fakeVendor records every request body and answers with the given status
// and body.
type fakeVendor struct {
	status int
	body   string
	calls  int
	last   map[string]any
}

func (f *fakeVendor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls++
	if r.URL.Path != "/v1/chat/completions" {
		http.NotFound(w, r)
		return
	}
	data, _ := io.ReadAll(r.Body)
	f.last = nil
	_ = json.Unmarshal(data, &f.last)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	io.WriteString(w, f.body)
}

func newTestProvider(t *testing.T, fv *fakeVendor) *Provider {
	t.Helper()
	srv := httptest.NewServer(fv)
	t.Cleanup(srv.Close)
	p, err := New(Config{BaseURL: srv.URL + "/v1", APIKey: "sk-test", Temperature: 0.2})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

const textCompletion = `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-2024-08-06",
 "choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"response\":\"hi\",\"order\":[],\"order_status\":\"unknown\"}"}}],
 "usage":{"prompt_tokens":120,"completion_tokens":30,"total_tokens":150}}`

const toolCompletion = `{"id":"c2","object":"chat.completion","created":1,"model":"gpt-4o",
 "choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":null,
   "tool_calls":[{"id":"call_1","type":"function","function":{"name":"searchProducts","arguments":"{\"text\":\"soap\"}"}}]}}],
 "usage":{"prompt_tokens":80,"completion_tokens":12,"total_tokens":92}}`

func searchTool() api.ToolDefinition {
	return api.ToolDefinition{
		Name:        "searchProducts",
		Description: "Search for products in the database",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
	}
}

func TestSendTerminalReply(t *testing.T) {
	fv := &fakeVendor{status: 200, body: textCompletion}
	p := newTestProvider(t, fv)

	reply, err := p.Send(context.Background(), &provider.Request{
		Model:          "gpt-4o-2024-08-06",
		System:         "You take orders.",
		Messages:       []conversation.Message{conversation.TextMessage(conversation.RoleUser, "3 boxes of soap")},
		Tools:          []api.ToolDefinition{searchTool()},
		ResponseSchema: map[string]any{"type": "object"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !reply.Terminal || len(reply.ToolUses) != 0 {
		t.Errorf("reply = %+v, want terminal", reply)
	}
	if reply.Usage.PromptTokens != 120 || reply.Usage.CompletionTokens != 30 {
		t.Errorf("Usage = %+v", reply.Usage)
	}
	if reply.StopReason != "stop" {
		t.Errorf("StopReason = %q", reply.StopReason)
	}

	if fv.calls != 1 {
		t.Errorf("calls = %d, want 1", fv.calls)
	}
	msgs, _ := fv.last["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", fv.last["messages"])
	}
	if role := msgs[0].(map[string]any)["role"]; role != "system" {
		t.Errorf("first message role = %v, want system", role)
	}
	rf, _ := fv.last["response_format"].(map[string]any)
	if rf["type"] != "json_schema" {
		t.Errorf("response_format = %v", fv.last["response_format"])
	}
	tools, _ := fv.last["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("tools = %v", fv.last["tools"])
	}
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	if fn["name"] != "searchProducts" {
		t.Errorf("tool name = %v", fn["name"])
	}
	if fv.last["temperature"] != 0.2 {
		t.Errorf("temperature = %v", fv.last["temperature"])
	}
}

func TestSendToolCalls(t *testing.T) {
	fv := &fakeVendor{status: 200, body: toolCompletion}
	p := newTestProvider(t, fv)

	reply, err := p.Send(context.Background(), &provider.Request{
		Model:    "gpt-4o",
		Messages: []conversation.Message{conversation.TextMessage(conversation.RoleUser, "soap")},
		Tools:    []api.ToolDefinition{searchTool()},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply.Terminal {
		t.Fatal("reply with tool calls must not be terminal")
	}
	if len(reply.ToolUses) != 1 || reply.ToolUses[0].ID != "call_1" || string(reply.ToolUses[0].Arguments) != `{"text":"soap"}` {
		t.Errorf("ToolUses = %+v", reply.ToolUses)
	}
	if _, ok := fv.last["response_format"]; ok {
		t.Error("response_format sent without a schema")
	}
}

func TestSendExpandsToolResults(t *testing.T) {
	fv := &fakeVendor{status: 200, body: textCompletion}
	p := newTestProvider(t, fv)

	history := []conversation.Message{
		{Role: conversation.RoleSystem, Content: conversation.Text("custom system")},
		conversation.TextMessage(conversation.RoleUser, "soap and gloves"),
		{Role: conversation.RoleAssistant, Content: conversation.Blocks{
			conversation.ToolUse{ID: "a", Name: "searchProducts", Arguments: json.RawMessage(`{"text":"soap"}`)},
			conversation.ToolUse{ID: "b", Name: "searchProducts", Arguments: json.RawMessage(`{"text":"gloves"}`)},
		}},
		{Role: conversation.RoleTool, Content: conversation.Blocks{
			conversation.ToolResult{ToolUseID: "a", Payload: `[{"id":"1"}]`},
			conversation.ToolResult{ToolUseID: "b", Payload: `[{"id":"2"}]`},
		}},
	}
	if _, err := p.Send(context.Background(), &provider.Request{Model: "gpt-4o", System: "ignored", Messages: history}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msgs, _ := fv.last["messages"].([]any)
	if len(msgs) != 5 {
		t.Fatalf("got %d vendor messages, want 5: %v", len(msgs), msgs)
	}
	if c := msgs[0].(map[string]any)["content"]; c != "custom system" {
		t.Errorf("leading system = %v, want history system turn only", c)
	}
	asst := msgs[2].(map[string]any)
	if calls, _ := asst["tool_calls"].([]any); len(calls) != 2 {
		t.Errorf("assistant tool_calls = %v", asst["tool_calls"])
	}
	for i, want := range []string{"a", "b"} {
		m := msgs[3+i].(map[string]any)
		if m["role"] != "tool" || m["tool_call_id"] != want {
			t.Errorf("message %d = %v, want tool result for %s", 3+i, m, want)
		}
	}
}

func TestSendVendorError(t *testing.T) {
	fv := &fakeVendor{status: 429, body: `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`}
	p := newTestProvider(t, fv)

	_, err := p.Send(context.Background(), &provider.Request{
		Model:    "gpt-4o",
		Messages: []conversation.Message{conversation.TextMessage(conversation.RoleUser, "soap")},
	})
	var vErr *provider.VendorHTTPError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want VendorHTTPError", err)
	}
	if vErr.Status != 429 {
		t.Errorf("Status = %d, want 429", vErr.Status)
	}
	if vErr.Message() != "Rate limit reached" {
		t.Errorf("Message() = %q", vErr.Message())
	}
	if fv.calls != 1 {
		t.Errorf("calls = %d, adapter must not retry", fv.calls)
	}
}

func TestSendEmptyReply(t *testing.T) {
	bodies := []string{
		`{"id":"c","object":"chat.completion","created":1,"model":"gpt-4o","choices":[],"usage":{"prompt_tokens":1,"completion_tokens":0,"total_tokens":1}}`,
		`{"id":"c","object":"chat.completion","created":1,"model":"gpt-4o","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":""}}]}`,
	}
	for _, body := range bodies {
		p := newTestProvider(t, &fakeVendor{status: 200, body: body})
		_, err := p.Send(context.Background(), &provider.Request{
			Model:    "gpt-4o",
			Messages: []conversation.Message{conversation.TextMessage(conversation.RoleUser, "soap")},
		})
		if !errors.Is(err, provider.ErrEmptyReply) {
			t.Errorf("error = %v, want ErrEmptyReply", err)
		}
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New without api key should fail")
	}
}

func TestSendKeepsTruncatedArgumentsEncodable(t *testing.T) {
	truncated := `{"id":"c3","object":"chat.completion","created":1,"model":"gpt-4o",
 "choices":[{"index":0,"finish_reason":"length","message":{"role":"assistant","content":null,
   "tool_calls":[{"id":"call_9","type":"function","function":{"name":"searchProducts","arguments":"{\"text\": \"soap"}}]}}],
 "usage":{"prompt_tokens":80,"completion_tokens":12,"total_tokens":92}}`
	fv := &fakeVendor{status: 200, body: truncated}
	p := newTestProvider(t, fv)

	reply, err := p.Send(context.Background(), &provider.Request{
		Model:    "gpt-4o",
		Messages: []conversation.Message{conversation.TextMessage(conversation.RoleUser, "soap")},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(reply.ToolUses) != 1 {
		t.Fatalf("ToolUses = %+v", reply.ToolUses)
	}
	args := reply.ToolUses[0].Arguments
	if !json.Valid(args) {
		t.Fatalf("arguments not valid JSON: %s", args)
	}
	if _, err := json.Marshal(reply.AssistantMessage()); err != nil {
		t.Errorf("assistant message not encodable: %v", err)
	}
	if got := argumentsText(args); got != `{"text": "soap` {
		t.Errorf("argumentsText = %q, want the vendor's original text", got)
	}
}

func TestToolArguments(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", `{}`},
		{"  ", `{}`},
		{`{"text":"soap"}`, `{"text":"soap"}`},
		{`{"text": "so`, `"{\"text\": \"so"`},
	}
	for _, tt := range tests {
		if got := string(toolArguments(tt.in)); got != tt.want {
			t.Errorf("toolArguments(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
