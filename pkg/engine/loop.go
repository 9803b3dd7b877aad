package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rhuss/voxorder/pkg/api"
	"github.com/rhuss/voxorder/pkg/conversation"
	"github.com/rhuss/voxorder/pkg/debug"
	"github.com/rhuss/voxorder/pkg/observability"
	"github.com/rhuss/voxorder/pkg/provider"
	"github.com/rhuss/voxorder/pkg/tools"
)

// loopState is the position of a run in the tool iteration cycle.
type loopState int

const (
	stateAwaitingModel loopState = iota
	stateDispatchingTools
	stateDone
)

func (s loopState) String() string {
	switch s {
	case stateAwaitingModel:
		return "AWAITING_MODEL"
	case stateDispatchingTools:
		return "DISPATCHING_TOOLS"
	case stateDone:
		return "DONE"
	}
	return fmt.Sprintf("loopState(%d)", int(s))
}

// loop drives one run. It is the only writer of conv while running.
type loop struct {
	provider   provider.Provider
	dispatcher *tools.Dispatcher
	conv       *conversation.Conversation

	// base carries everything but Messages, which is rebuilt per call.
	base      provider.Request
	maxRounds int
	limit     int

	state   loopState
	rounds  int
	calls   int
	usage   provider.Usage
	pending []conversation.ToolUse
	final   *provider.Reply
}

// run iterates until the provider answers without tool uses. It returns
// the terminal reply; usage across all calls is in l.usage.
func (l *loop) run(ctx context.Context) (*provider.Reply, error) {
	l.state = stateAwaitingModel
	for l.state != stateDone {
		var err error
		switch l.state {
		case stateAwaitingModel:
			err = l.awaitModel(ctx)
		case stateDispatchingTools:
			err = l.dispatchTools(ctx)
		}
		if err != nil {
			return nil, err
		}
	}
	observability.ToolRounds.WithLabelValues(l.provider.Name()).Observe(float64(l.rounds))
	return l.final, nil
}

func (l *loop) transition(next loopState) {
	debug.Log("engine", "loop transition", "from", l.state, "to", next, "round", l.rounds, "calls", l.calls)
	l.state = next
}

func (l *loop) awaitModel(ctx context.Context) error {
	req := l.base
	req.Messages = l.conv.Messages()

	reply, err := l.send(ctx, &req)
	if err != nil {
		return err
	}
	l.usage = l.usage.Add(reply.Usage)

	if reply.Terminal {
		if err := l.conv.Append(reply.AssistantMessage()); err != nil {
			return fmt.Errorf("recording reply: %w", err)
		}
		l.final = reply
		l.transition(stateDone)
		return nil
	}

	if l.rounds >= l.maxRounds {
		return &ToolLoopExceededError{MaxRounds: l.maxRounds}
	}

	for i := range reply.ToolUses {
		if reply.ToolUses[i].ID == "" {
			reply.ToolUses[i].ID = api.NewToolUseID()
		}
	}
	if err := l.conv.Append(reply.AssistantMessage()); err != nil {
		return fmt.Errorf("recording tool request: %w", err)
	}
	l.pending = reply.ToolUses
	l.transition(stateDispatchingTools)
	return nil
}

// dispatchTools runs every pending tool use in order and appends one tool
// message carrying all results.
func (l *loop) dispatchTools(ctx context.Context) error {
	results := make(conversation.Blocks, 0, len(l.pending))
	for _, use := range l.pending {
		res, err := l.dispatcher.Dispatch(ctx, use, l.limit)
		if err != nil {
			return err
		}
		results = append(results, res)
	}
	if err := l.conv.Append(conversation.Message{Role: conversation.RoleTool, Content: results}); err != nil {
		return fmt.Errorf("recording tool results: %w", err)
	}
	l.pending = nil
	l.rounds++
	l.transition(stateAwaitingModel)
	return nil
}

// send makes one provider call and records its metrics.
func (l *loop) send(ctx context.Context, req *provider.Request) (*provider.Reply, error) {
	name := l.provider.Name()
	l.calls++

	start := time.Now()
	reply, err := l.provider.Send(ctx, req)
	observability.ProviderLatency.WithLabelValues(name, req.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.ProviderRequestsTotal.WithLabelValues(name, req.Model, "error").Inc()
		return nil, err
	}

	observability.ProviderRequestsTotal.WithLabelValues(name, req.Model, "success").Inc()
	observability.ProviderTokensTotal.WithLabelValues(name, req.Model, "input").Add(float64(reply.Usage.PromptTokens))
	observability.ProviderTokensTotal.WithLabelValues(name, req.Model, "output").Add(float64(reply.Usage.CompletionTokens))
	return reply, nil
}
