package provider

import (
	"context"

	"github.com/rhuss/voxorder/pkg/api"
	"github.com/rhuss/voxorder/pkg/conversation"
)

// Provider sends one request to an LLM vendor and returns its reply.
//
// Implementations make exactly one outbound call per Send and never retry.
// They must be safe for concurrent use by multiple goroutines.
type Provider interface {
	// Name returns the provider identifier ("openai", "anthropic").
	Name() string

	// Send performs a single non-streaming completion.
	Send(ctx context.Context, req *Request) (*Reply, error)
}

// Request is the vendor independent input of one model call.
type Request struct {
	Model    string
	System   string
	Messages []conversation.Message
	Tools    []api.ToolDefinition

	// Prefill is text the assistant turn should start with. Adapters whose
	// protocol cannot continue a partial assistant turn ignore it.
	Prefill string

	// ResponseSchema, when set, asks for structured output following the
	// schema. Adapters without structured output ignore it.
	ResponseSchema map[string]any
}

// Usage holds token counters of a reply.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Add returns the element-wise sum.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
	}
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Reply is the raw, vendor independent result of one model call.
type Reply struct {
	Terminal   bool
	ToolUses   []conversation.ToolUse
	RawContent string
	Usage      Usage
	StopReason string
	Model      string
}

// NewReply builds a Reply. Terminal is derived from the tool uses so the two
// can never disagree.
func NewReply(raw string, uses []conversation.ToolUse, usage Usage) *Reply {
	return &Reply{
		Terminal:   len(uses) == 0,
		ToolUses:   uses,
		RawContent: raw,
		Usage:      usage,
	}
}

// AssistantMessage returns the reply as a conversation turn: the text, if
// any, followed by every tool use.
func (r *Reply) AssistantMessage() conversation.Message {
	if len(r.ToolUses) == 0 {
		return conversation.TextMessage(conversation.RoleAssistant, r.RawContent)
	}
	blocks := make(conversation.Blocks, 0, len(r.ToolUses)+1)
	if r.RawContent != "" {
		blocks = append(blocks, conversation.TextBlock{Text: r.RawContent})
	}
	for _, tu := range r.ToolUses {
		blocks = append(blocks, tu)
	}
	return conversation.Message{Role: conversation.RoleAssistant, Content: blocks}
}
