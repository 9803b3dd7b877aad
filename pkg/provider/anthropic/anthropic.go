// Package anthropic adapts the Anthropic messages protocol to
// provider.Provider using the official anthropic-sdk-go SDK.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/rhuss/voxorder/pkg/api"
	"github.com/rhuss/voxorder/pkg/conversation"
	"github.com/rhuss/voxorder/pkg/debug"
	"github.com/rhuss/voxorder/pkg/provider"
)

const (
	providerName     = "anthropic"
	defaultBaseURL   = "https://api.anthropic.com/"
	defaultMaxTokens = 1024
)

// Config holds the settings for the Anthropic adapter.
type Config struct {
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	// HTTPClient overrides the client built from Timeout. Used in tests.
	HTTPClient *http.Client
}

// Provider implements provider.Provider for vendor B.
type Provider struct {
	client      anthropic.Client
	temperature float64
	maxTokens   int64
}

var _ provider.Provider = (*Provider)(nil)

// New creates an Anthropic adapter with retries disabled.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	client := anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)
	return &Provider{client: client, temperature: cfg.Temperature, maxTokens: int64(maxTokens)}, nil
}

// Name returns "anthropic".
func (p *Provider) Name() string { return providerName }

// Send performs one messages call. A non-empty req.Prefill is sent as the
// start of the assistant turn and prepended to the terminal reply text.
func (p *Provider) Send(ctx context.Context, req *provider.Request) (*provider.Reply, error) {
	msgs, system, err := convertMessages(req.System, req.Messages)
	if err != nil {
		return nil, err
	}
	prefill := strings.TrimRight(req.Prefill, " \t\r\n")
	if prefill != "" {
		msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(prefill)))
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   p.maxTokens,
		Messages:    msgs,
		Temperature: anthropic.Float(p.temperature),
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}

	debug.Log("providers", "anthropic request",
		"model", req.Model,
		"messages", len(msgs),
		"tools", len(params.Tools),
		"prefill", prefill != "",
	)

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, provider.NewVendorHTTPError(providerName, apiErr.StatusCode, apiErr.RawJSON())
		}
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	if len(msg.Content) == 0 {
		return nil, provider.EmptyReply(providerName)
	}

	var (
		text strings.Builder
		uses []conversation.ToolUse
	)
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(v.Text)
		case anthropic.ToolUseBlock:
			args := append(json.RawMessage(nil), v.Input...)
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			uses = append(uses, conversation.ToolUse{ID: v.ID, Name: v.Name, Arguments: args})
		}
	}
	raw := text.String()
	if raw == "" && len(uses) == 0 {
		return nil, provider.EmptyReply(providerName)
	}
	if len(uses) == 0 && prefill != "" {
		raw = prefill + raw
	}

	reply := provider.NewReply(raw, uses, provider.Usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
	})
	reply.StopReason = string(msg.StopReason)
	reply.Model = string(msg.Model)

	debug.Log("providers", "anthropic reply",
		"stop_reason", reply.StopReason,
		"tool_uses", len(uses),
		"input_tokens", reply.Usage.PromptTokens,
		"output_tokens", reply.Usage.CompletionTokens,
	)
	return reply, nil
}

// convertMessages splits the conversation into the system blocks and the
// user/assistant turns. System turns in the history are folded into the
// system field after the configured prompt.
func convertMessages(system string, history []conversation.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam, error) {
	var systemBlocks []anthropic.TextBlockParam
	if system != "" {
		systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: system})
	}

	msgs := make([]anthropic.MessageParam, 0, len(history))
	for i, m := range history {
		switch m.Role {
		case conversation.RoleSystem:
			if text := m.PlainText(); text != "" {
				systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: text})
			}
		case conversation.RoleUser:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.PlainText())))
		case conversation.RoleAssistant:
			blocks := assistantBlocks(m)
			if len(blocks) == 0 {
				continue
			}
			msgs = append(msgs, anthropic.NewAssistantMessage(blocks...))
		case conversation.RoleTool:
			results := m.ToolResults()
			if len(results) == 0 {
				return nil, nil, fmt.Errorf("anthropic: messages[%d]: tool message without results", i)
			}
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(results))
			for _, tr := range results {
				blocks = append(blocks, anthropic.NewToolResultBlock(tr.ToolUseID, tr.Payload, tr.IsError))
			}
			msgs = append(msgs, anthropic.NewUserMessage(blocks...))
		default:
			return nil, nil, fmt.Errorf("anthropic: messages[%d]: unsupported role %q", i, m.Role)
		}
	}
	return msgs, systemBlocks, nil
}

func assistantBlocks(m conversation.Message) []anthropic.ContentBlockParamUnion {
	switch c := m.Content.(type) {
	case conversation.Text:
		if c == "" {
			return nil
		}
		return []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(string(c))}
	case conversation.Blocks:
		var out []anthropic.ContentBlockParamUnion
		for _, b := range c {
			switch v := b.(type) {
			case conversation.TextBlock:
				if v.Text != "" {
					out = append(out, anthropic.NewTextBlock(v.Text))
				}
			case conversation.ToolUse:
				// Messages requires an object; arguments kept as a string
				// after a malformed vendor reply are sent as {}.
				var input any = json.RawMessage(v.Arguments)
				if !isJSONObject(v.Arguments) {
					input = map[string]any{}
				}
				out = append(out, anthropic.NewToolUseBlock(v.ID, input, v.Name))
			}
		}
		return out
	}
	return nil
}

func convertTools(defs []api.ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	tools := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		var schema struct {
			Properties map[string]any `json:"properties"`
			Required   []string       `json:"required"`
		}
		if len(d.Parameters) > 0 {
			if err := json.Unmarshal(d.Parameters, &schema); err != nil {
				return nil, fmt.Errorf("anthropic: tool %q parameters: %w", d.Name, err)
			}
		}
		if schema.Properties == nil {
			schema.Properties = map[string]any{}
		}
		tool := anthropic.ToolUnionParamOfTool(anthropic.ToolInputSchemaParam{
			Properties: schema.Properties,
			Required:   schema.Required,
		}, d.Name)
		if d.Description != "" {
			tool.OfTool.Description = anthropic.String(d.Description)
		}
		tools = append(tools, tool)
	}
	return tools, nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}
