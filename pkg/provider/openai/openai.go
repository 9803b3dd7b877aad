// Package openai adapts the OpenAI chat completions protocol to
// provider.Provider using the official openai-go SDK.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/rhuss/voxorder/pkg/api"
	"github.com/rhuss/voxorder/pkg/conversation"
	"github.com/rhuss/voxorder/pkg/debug"
	"github.com/rhuss/voxorder/pkg/provider"
)

const (
	providerName   = "openai"
	defaultBaseURL = "https://api.openai.com/v1/"
	schemaName     = "order_response"
)

// Config holds the settings for the OpenAI adapter.
type Config struct {
	BaseURL     string
	APIKey      string
	Temperature float64
	Timeout     time.Duration

	// HTTPClient overrides the client built from Timeout. Used in tests.
	HTTPClient *http.Client
}

// Provider implements provider.Provider for vendor A.
type Provider struct {
	client      openai.Client
	temperature float64
}

var _ provider.Provider = (*Provider)(nil)

// New creates an OpenAI adapter. Retries are disabled: every Send is exactly
// one HTTP request.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)
	return &Provider{client: client, temperature: cfg.Temperature}, nil
}

// Name returns "openai".
func (p *Provider) Name() string { return providerName }

// Send performs one chat completion call.
func (p *Provider) Send(ctx context.Context, req *provider.Request) (*provider.Reply, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	debug.Log("providers", "openai request",
		"model", req.Model,
		"messages", len(params.Messages),
		"tools", len(params.Tools),
		"structured", req.ResponseSchema != nil,
	)

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, provider.NewVendorHTTPError(providerName, apiErr.StatusCode, apiErr.RawJSON())
		}
		return nil, fmt.Errorf("openai: %w", err)
	}

	if len(completion.Choices) == 0 {
		return nil, provider.EmptyReply(providerName)
	}
	choice := completion.Choices[0]

	var uses []conversation.ToolUse
	for _, tc := range choice.Message.ToolCalls {
		if tc.Function.Name == "" {
			continue
		}
		uses = append(uses, conversation.ToolUse{ID: tc.ID, Name: tc.Function.Name, Arguments: toolArguments(tc.Function.Arguments)})
	}
	if choice.Message.Content == "" && len(uses) == 0 {
		return nil, provider.EmptyReply(providerName)
	}

	reply := provider.NewReply(choice.Message.Content, uses, provider.Usage{
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
	})
	reply.StopReason = string(choice.FinishReason)
	reply.Model = completion.Model

	debug.Log("providers", "openai reply",
		"finish_reason", reply.StopReason,
		"tool_calls", len(uses),
		"prompt_tokens", reply.Usage.PromptTokens,
		"completion_tokens", reply.Usage.CompletionTokens,
	)
	return reply, nil
}

func (p *Provider) buildParams(req *provider.Request) (openai.ChatCompletionNewParams, error) {
	msgs, err := convertMessages(req.System, req.Messages)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    msgs,
		Temperature: openai.Float(p.temperature),
	}

	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return openai.ChatCompletionNewParams{}, err
		}
		params.Tools = tools
	}

	if req.ResponseSchema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   schemaName,
					Schema: req.ResponseSchema,
					Strict: openai.Bool(true),
				},
			},
		}
	}
	return params, nil
}

// convertMessages flattens the conversation into the vendor message list.
// The system prompt leads unless the history already starts with a system
// turn. A tool turn becomes one vendor message per result.
func convertMessages(system string, history []conversation.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if system != "" && (len(history) == 0 || history[0].Role != conversation.RoleSystem) {
		out = append(out, openai.SystemMessage(system))
	}

	for i, m := range history {
		switch m.Role {
		case conversation.RoleSystem:
			out = append(out, openai.SystemMessage(m.PlainText()))
		case conversation.RoleUser:
			out = append(out, openai.UserMessage(m.PlainText()))
		case conversation.RoleAssistant:
			uses := m.ToolUses()
			if len(uses) == 0 {
				out = append(out, openai.AssistantMessage(m.PlainText()))
				continue
			}
			asst := openai.ChatCompletionAssistantMessageParam{}
			if text := m.PlainText(); text != "" {
				asst.Content.OfString = openai.String(text)
			}
			for _, tu := range uses {
				args := argumentsText(tu.Arguments)
				asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tu.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tu.Name,
							Arguments: args,
						},
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		case conversation.RoleTool:
			results := m.ToolResults()
			if len(results) == 0 {
				return nil, fmt.Errorf("openai: messages[%d]: tool message without results", i)
			}
			for _, tr := range results {
				out = append(out, openai.ToolMessage(tr.Payload, tr.ToolUseID))
			}
		default:
			return nil, fmt.Errorf("openai: messages[%d]: unsupported role %q", i, m.Role)
		}
	}
	return out, nil
}

// toolArguments turns the vendor's arguments string into valid JSON. Text
// that does not parse, such as arguments cut off at the token limit, is
// kept as a JSON string so the history stays encodable.
func toolArguments(raw string) json.RawMessage {
	if strings.TrimSpace(raw) == "" {
		return json.RawMessage("{}")
	}
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw)
	}
	quoted, _ := json.Marshal(raw)
	return quoted
}

// argumentsText is the inverse of toolArguments, used when the history is
// sent back to the vendor.
func argumentsText(args json.RawMessage) string {
	if len(args) == 0 {
		return "{}"
	}
	if args[0] == '"' {
		var s string
		if err := json.Unmarshal(args, &s); err == nil {
			return s
		}
	}
	return string(args)
}

func convertTools(defs []api.ToolDefinition) ([]openai.ChatCompletionToolUnionParam, error) {
	tools := make([]openai.ChatCompletionToolUnionParam, 0, len(defs))
	for _, d := range defs {
		params := openai.FunctionParameters{"type": "object", "properties": map[string]any{}}
		if len(d.Parameters) > 0 {
			if err := json.Unmarshal(d.Parameters, &params); err != nil {
				return nil, fmt.Errorf("openai: tool %q parameters: %w", d.Name, err)
			}
		}
		tools = append(tools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        d.Name,
			Description: openai.String(d.Description),
			Parameters:  params,
		}))
	}
	return tools, nil
}
