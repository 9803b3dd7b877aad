// Command mock-vendor runs a deterministic stand-in for the OpenAI Chat
// Completions and Anthropic Messages APIs. It drives one full ordering
// round: the first turn asks for a product search with the caller's text,
// the second turn orders the first two products of the search result.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const toolName = "searchProducts"

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("POST /v1/messages", handleMessages)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock vendor starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock vendor failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock vendor shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// orderedLine is one product picked from a search result.
type orderedLine struct {
	id, name string
	quantity int
}

// pickProducts takes the first two products of a searchProducts payload.
func pickProducts(payload string) []orderedLine {
	var lines []orderedLine
	gjson.Parse(payload).ForEach(func(_, p gjson.Result) bool {
		lines = append(lines, orderedLine{
			id:       p.Get("id").String(),
			name:     p.Get("name").String(),
			quantity: len(lines) + 1,
		})
		return len(lines) < 2
	})
	return lines
}

// --- OpenAI Chat Completions ---

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON(w, r, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`)
	if !ok {
		return
	}

	model := gjson.GetBytes(body, "model").String()
	msgs := gjson.GetBytes(body, "messages").Array()
	if len(msgs) == 0 {
		writeRaw(w, http.StatusBadRequest, `{"error":{"message":"messages required","type":"invalid_request_error"}}`)
		return
	}
	last := msgs[len(msgs)-1]

	resp := `{"object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant"}}]}`
	resp, _ = sjson.Set(resp, "id", "chatcmpl-"+uuid.NewString())
	resp, _ = sjson.Set(resp, "model", model)

	if last.Get("role").String() == "tool" {
		lines := pickProducts(last.Get("content").String())
		order := `{"response":"","order":[],"order_status":"pending"}`
		order, _ = sjson.Set(order, "response", fmt.Sprintf("Added %d products to your order.", len(lines)))
		for _, l := range lines {
			order, _ = sjson.Set(order, "order.-1", map[string]any{
				"product_id":   l.id,
				"product_name": l.name,
				"quantity":     l.quantity,
			})
		}
		resp, _ = sjson.Set(resp, "choices.0.message.content", order)
		resp, _ = sjson.Set(resp, "choices.0.finish_reason", "stop")
		resp, _ = sjson.SetRaw(resp, "usage", `{"prompt_tokens":120,"completion_tokens":40,"total_tokens":160}`)
	} else {
		args, _ := sjson.Set(`{}`, "text", lastText(last))
		resp, _ = sjson.SetRaw(resp, "choices.0.message.content", "null")
		resp, _ = sjson.Set(resp, "choices.0.message.tool_calls.0.id", "call_"+uuid.NewString())
		resp, _ = sjson.Set(resp, "choices.0.message.tool_calls.0.type", "function")
		resp, _ = sjson.Set(resp, "choices.0.message.tool_calls.0.function.name", toolName)
		resp, _ = sjson.Set(resp, "choices.0.message.tool_calls.0.function.arguments", args)
		resp, _ = sjson.Set(resp, "choices.0.finish_reason", "tool_calls")
		resp, _ = sjson.SetRaw(resp, "usage", `{"prompt_tokens":80,"completion_tokens":15,"total_tokens":95}`)
	}

	writeRaw(w, http.StatusOK, resp)
}

// --- Anthropic Messages ---

func handleMessages(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON(w, r, `{"type":"error","error":{"type":"invalid_request_error","message":"invalid request"}}`)
	if !ok {
		return
	}

	model := gjson.GetBytes(body, "model").String()
	msgs := gjson.GetBytes(body, "messages").Array()
	if len(msgs) == 0 {
		writeRaw(w, http.StatusBadRequest, `{"type":"error","error":{"type":"invalid_request_error","message":"messages required"}}`)
		return
	}
	last := msgs[len(msgs)-1]

	resp := `{"type":"message","role":"assistant","content":[]}`
	resp, _ = sjson.Set(resp, "id", "msg_"+strings.ReplaceAll(uuid.NewString(), "-", ""))
	resp, _ = sjson.Set(resp, "model", model)

	if result := toolResult(last); result.Exists() {
		lines := pickProducts(toolResultText(result))
		var b strings.Builder
		fmt.Fprintf(&b, "<response>Added %d products to your order.</response>\n<order>\n", len(lines))
		for _, l := range lines {
			fmt.Fprintf(&b, "<product><id>%s</id><name>%s</name><quantity>%d</quantity></product>\n", l.id, l.name, l.quantity)
		}
		b.WriteString("</order>\n<order_status>pending</order_status>")

		resp, _ = sjson.Set(resp, "content.0", map[string]any{"type": "text", "text": b.String()})
		resp, _ = sjson.Set(resp, "stop_reason", "end_turn")
		resp, _ = sjson.SetRaw(resp, "usage", `{"input_tokens":120,"output_tokens":40}`)
	} else {
		resp, _ = sjson.Set(resp, "content.0", map[string]any{
			"type":  "tool_use",
			"id":    "toolu_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
			"name":  toolName,
			"input": map[string]any{"text": lastText(last)},
		})
		resp, _ = sjson.Set(resp, "stop_reason", "tool_use")
		resp, _ = sjson.SetRaw(resp, "usage", `{"input_tokens":80,"output_tokens":15}`)
	}

	writeRaw(w, http.StatusOK, resp)
}

func toolResult(msg gjson.Result) gjson.Result {
	for _, b := range msg.Get("content").Array() {
		if b.Get("type").String() == "tool_result" {
			return b
		}
	}
	return gjson.Result{}
}

// toolResultText accepts both the string and the text-block form of
// tool_result content.
func toolResultText(b gjson.Result) string {
	c := b.Get("content")
	if c.Type == gjson.String {
		return c.String()
	}
	var sb strings.Builder
	for _, part := range c.Array() {
		sb.WriteString(part.Get("text").String())
	}
	return sb.String()
}

// lastText returns the text of a message whose content is a string or an
// array of text parts.
func lastText(msg gjson.Result) string {
	c := msg.Get("content")
	if c.Type == gjson.String {
		return c.String()
	}
	var parts []string
	for _, p := range c.Array() {
		if t := p.Get("text"); t.Exists() {
			parts = append(parts, t.String())
		}
	}
	return strings.Join(parts, " ")
}

// --- Helpers ---

func readJSON(w http.ResponseWriter, r *http.Request, invalid string) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil || !gjson.ValidBytes(body) {
		writeRaw(w, http.StatusBadRequest, invalid)
		return nil, false
	}
	return body, true
}

func writeRaw(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}
