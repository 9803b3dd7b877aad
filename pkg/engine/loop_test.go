package engine

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/rhuss/voxorder/pkg/conversation"
	"github.com/rhuss/voxorder/pkg/provider"
	"github.com/rhuss/voxorder/pkg/search"
	"github.com/rhuss/voxorder/pkg/tools"
)

func newTestLoop(t *testing.T, p provider.Provider, maxRounds int) *loop {
	t.Helper()
	d, err := tools.NewDispatcher(tools.NewSearchProducts(search.SearcherFunc(
		func(context.Context, string, int) ([]search.Product, error) {
			return []search.Product{{ID: "1", Name: "Soap"}}, nil
		})))
	if err != nil {
		t.Fatal(err)
	}
	conv, _ := conversation.New(conversation.TextMessage(conversation.RoleUser, "soap"))
	return &loop{
		provider:   p,
		dispatcher: d,
		conv:       conv,
		base:       provider.Request{Model: "m"},
		maxRounds:  maxRounds,
		limit:      10,
	}
}

func TestLoopVendorErrorLeavesConversation(t *testing.T) {
	vendorErr := provider.NewVendorHTTPError("anthropic", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`)
	p := &scriptedProvider{name: "anthropic", script: []step{
		toolReply("t1", "soap"),
		{err: vendorErr},
	}}
	l := newTestLoop(t, p, 5)

	_, err := l.run(context.Background())
	var vhe *provider.VendorHTTPError
	if !errors.As(err, &vhe) || vhe.Status != 429 {
		t.Fatalf("err = %v, want 429 VendorHTTPError", err)
	}

	// user, assistant(tool_use), tool(result); nothing from the failed call
	if l.conv.Len() != 3 {
		t.Errorf("conversation length = %d, want 3", l.conv.Len())
	}
	last, _ := l.conv.Last()
	if last.Role != conversation.RoleTool {
		t.Errorf("last message role = %s, want tool", last.Role)
	}
}

func TestLoopFirstCallErrorLeavesConversation(t *testing.T) {
	p := &scriptedProvider{name: "openai", script: []step{{err: provider.EmptyReply("openai")}}}
	l := newTestLoop(t, p, 5)
	if _, err := l.run(context.Background()); !errors.Is(err, provider.ErrEmptyReply) {
		t.Fatalf("err = %v", err)
	}
	if l.conv.Len() != 1 {
		t.Errorf("conversation length = %d, want 1", l.conv.Len())
	}
}

func TestLoopAggregatesToolResults(t *testing.T) {
	multi := provider.NewReply("looking", []conversation.ToolUse{
		{ID: "a", Name: tools.SearchProductsName, Arguments: []byte(`{"text":"soap"}`)},
		{Name: tools.SearchProductsName, Arguments: []byte(`{"text":"bleach"}`)},
	}, provider.Usage{PromptTokens: 3, CompletionTokens: 2})
	p := &scriptedProvider{name: "openai", script: []step{{reply: multi}, textReply("done", 4, 1)}}
	l := newTestLoop(t, p, 5)

	reply, err := l.run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if reply.RawContent != "done" || l.state != stateDone {
		t.Errorf("reply = %+v, state = %s", reply, l.state)
	}
	if l.rounds != 1 || l.calls != 2 {
		t.Errorf("rounds/calls = %d/%d, want 1/2", l.rounds, l.calls)
	}
	if l.usage.PromptTokens != 7 || l.usage.CompletionTokens != 3 {
		t.Errorf("usage = %+v", l.usage)
	}

	msgs := l.conv.Messages()
	assistant := msgs[1]
	if assistant.PlainText() != "looking" || len(assistant.ToolUses()) != 2 {
		t.Errorf("assistant turn = %+v", assistant)
	}
	generated := assistant.ToolUses()[1].ID
	if generated == "" {
		t.Error("missing tool use id not filled in")
	}
	results := msgs[2].ToolResults()
	if len(results) != 2 || results[0].ToolUseID != "a" || results[1].ToolUseID != generated {
		t.Errorf("tool results = %+v", results)
	}
}

func TestLoopStateString(t *testing.T) {
	for s, want := range map[loopState]string{
		stateAwaitingModel:    "AWAITING_MODEL",
		stateDispatchingTools: "DISPATCHING_TOOLS",
		stateDone:             "DONE",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
