package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/rhuss/voxorder/pkg/api"
	"github.com/rhuss/voxorder/pkg/engine"
	"github.com/rhuss/voxorder/pkg/pricing"
	"github.com/rhuss/voxorder/pkg/provider"
	"github.com/rhuss/voxorder/pkg/provider/anthropic"
	"github.com/rhuss/voxorder/pkg/provider/openai"
	"github.com/rhuss/voxorder/pkg/search"
	searchmem "github.com/rhuss/voxorder/pkg/search/memory"
	"github.com/rhuss/voxorder/pkg/settings"
	settingsmem "github.com/rhuss/voxorder/pkg/settings/memory"
	"github.com/rhuss/voxorder/pkg/tools"
	"github.com/rhuss/voxorder/pkg/transport"
)

// messagesVendor answers the first turn with a searchProducts call and the
// turn after a tool result with a tagged order of every product returned.
func messagesVendor(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		msgs := gjson.GetBytes(body, "messages").Array()
		last := msgs[len(msgs)-1]

		var payload string
		for _, b := range last.Get("content").Array() {
			if b.Get("type").String() != "tool_result" {
				continue
			}
			c := b.Get("content")
			if c.IsArray() {
				payload = c.Get("0.text").String()
			} else {
				payload = c.String()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if payload == "" {
			fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",
				"content":[{"type":"tool_use","id":"toolu_1","name":"searchProducts","input":{"text":"soap"}}],
				"stop_reason":"tool_use","usage":{"input_tokens":100,"output_tokens":20}}`)
			return
		}

		var sb strings.Builder
		sb.WriteString("<response>Done.</response><order>")
		gjson.Parse(payload).ForEach(func(_, p gjson.Result) bool {
			fmt.Fprintf(&sb, "<product><id>%s</id><name>%s</name><quantity>2</quantity></product>", p.Get("id").String(), p.Get("name").String())
			return true
		})
		sb.WriteString("</order><order_status>pending</order_status>")
		text, _ := json.Marshal(sb.String())
		fmt.Fprintf(w, `{"id":"msg_2","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",
			"content":[{"type":"text","text":%s}],
			"stop_reason":"end_turn","usage":{"input_tokens":200,"output_tokens":50}}`, text)
	}))
}

func TestEndToEndAnthropicOrder(t *testing.T) {
	vendor := messagesVendor(t)
	defer vendor.Close()

	adapter, err := anthropic.New(anthropic.Config{BaseURL: vendor.URL, APIKey: "test-key", MaxTokens: 512})
	if err != nil {
		t.Fatalf("anthropic.New: %v", err)
	}

	store := settingsmem.New()
	if _, err := settings.Seed(t.Context(), store, settings.Default()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	catalog := searchmem.New([]search.Product{
		{ID: "P1", Name: "Hand Soap"},
		{ID: "P2", Name: "Paper Towel"},
		{ID: "P3", Name: "Bar Soap"},
	})
	dispatcher, err := tools.NewDispatcher(tools.NewSearchProducts(catalog))
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	eng, err := engine.New(
		map[api.Style]provider.Provider{api.StyleAnthropic: adapter},
		store, dispatcher,
		pricing.NewTable(map[string]pricing.Rate{"claude-3-5-haiku-latest": pricing.PerMillion(1, 5)}),
		engine.Config{MaxToolRounds: 3},
	)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	h := NewAdapter(Deps{Chat: eng, Settings: store, Searcher: catalog}, DefaultConfig(), transport.RequestID()).Handler()
	req := httptest.NewRequest(http.MethodPost, "/chat/completion-anthropic-style",
		strings.NewReader(`{"modelId":"claude-3-5-haiku-latest","query":"two packs of soap"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var res api.ChatResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Order) != 2 || res.Order[0].ProductID != "P1" || res.Order[1].ProductID != "P3" {
		t.Errorf("order = %+v, want P1 then P3", res.Order)
	}
	if res.OrderStatus != "pending" || res.ResponseText != "Done." {
		t.Errorf("status = %q, text = %q", res.OrderStatus, res.ResponseText)
	}
	if res.PromptTokens != 300 || res.CompletionTokens != 70 || res.TotalTokens != 370 {
		t.Errorf("usage = %d/%d/%d", res.PromptTokens, res.CompletionTokens, res.TotalTokens)
	}
	if res.Cost <= 0 {
		t.Errorf("cost = %v, want positive", res.Cost)
	}
}

func TestEndToEndOpenAITruncatedToolArguments(t *testing.T) {
	calls := 0
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o",
				"choices":[{"index":0,"finish_reason":"length","message":{"role":"assistant","content":null,
				"tool_calls":[{"id":"call_1","type":"function","function":{"name":"searchProducts","arguments":"{\"text\": \"soap"}}]}}],
				"usage":{"prompt_tokens":50,"completion_tokens":10,"total_tokens":60}}`)
			return
		}
		fmt.Fprint(w, `{"id":"c2","object":"chat.completion","created":1,"model":"gpt-4o",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Sorry, which soap?"}}],
			"usage":{"prompt_tokens":70,"completion_tokens":5,"total_tokens":75}}`)
	}))
	defer vendor.Close()

	adapter, err := openai.New(openai.Config{BaseURL: vendor.URL + "/v1", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("openai.New: %v", err)
	}
	store := settingsmem.New()
	if _, err := settings.Seed(t.Context(), store, settings.Default()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	catalog := searchmem.New([]search.Product{{ID: "P1", Name: "Hand Soap"}})
	dispatcher, err := tools.NewDispatcher(tools.NewSearchProducts(catalog))
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	eng, err := engine.New(
		map[api.Style]provider.Provider{api.StyleOpenAI: adapter},
		store, dispatcher, pricing.NewTable(nil), engine.Config{MaxToolRounds: 3},
	)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	h := NewAdapter(Deps{Chat: eng, Settings: store, Searcher: catalog}, DefaultConfig()).Handler()
	req := httptest.NewRequest(http.MethodPost, "/chat/completion-openai-style",
		strings.NewReader(`{"modelId":"gpt-4o","query":"soap"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var res api.ChatResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.ResponseText != "Sorry, which soap?" {
		t.Errorf("responseText = %q", res.ResponseText)
	}
	if len(res.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(res.Messages))
	}
	results := res.Messages[2].ToolResults()
	if len(results) != 1 || !results[0].IsError {
		t.Errorf("tool result = %+v, want an error fed back to the model", results)
	}
	if calls != 2 {
		t.Errorf("vendor calls = %d, want 2", calls)
	}
}

func TestWriteJSONEncodingFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]any{"bad": make(chan int)})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var resp api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.Error == nil {
		t.Fatalf("body is not an error response: %v %q", err, rec.Body.String())
	}
	if resp.Error.Type != api.ErrorTypeServerError {
		t.Errorf("type = %q", resp.Error.Type)
	}
}
