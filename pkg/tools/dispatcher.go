package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rhuss/voxorder/pkg/api"
	"github.com/rhuss/voxorder/pkg/conversation"
	"github.com/rhuss/voxorder/pkg/debug"
	"github.com/rhuss/voxorder/pkg/observability"
)

// Dispatcher routes tool uses to registered tools. The registered set is
// fixed at construction, so a Dispatcher is safe for concurrent use.
type Dispatcher struct {
	order  []string
	byName map[string]Tool
}

// NewDispatcher registers tools in order. Duplicate names are an error.
func NewDispatcher(tools ...Tool) (*Dispatcher, error) {
	d := &Dispatcher{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		name := t.Definition().Name
		if name == "" {
			return nil, errors.New("tool with empty name")
		}
		if _, dup := d.byName[name]; dup {
			return nil, fmt.Errorf("tool %q registered twice", name)
		}
		d.byName[name] = t
		d.order = append(d.order, name)
	}
	return d, nil
}

// Definitions returns the tool definitions in registration order.
func (d *Dispatcher) Definitions() []api.ToolDefinition {
	defs := make([]api.ToolDefinition, 0, len(d.order))
	for _, name := range d.order {
		defs = append(defs, d.byName[name].Definition())
	}
	return defs
}

// Dispatch invokes the tool named by use. An unregistered name returns
// *UnknownToolError. Tool failures come back as an error result with a
// nil error so the loop can hand them to the model.
func (d *Dispatcher) Dispatch(ctx context.Context, use conversation.ToolUse, limit int) (conversation.ToolResult, error) {
	t, ok := d.byName[use.Name]
	if !ok {
		observability.ToolExecutionsTotal.WithLabelValues("unknown", "rejected").Inc()
		return conversation.ToolResult{}, &UnknownToolError{Name: use.Name}
	}

	debug.Log("tools", "dispatch", "tool", use.Name, "id", use.ID, "args", debug.Truncate(string(use.Arguments), 200))

	payload, err := t.Invoke(ctx, use.Arguments, limit)
	if err != nil {
		// A cancelled run must stop, not be explained to the model.
		if ctxErr := ctx.Err(); ctxErr != nil {
			observability.ToolExecutionsTotal.WithLabelValues(use.Name, "cancelled").Inc()
			return conversation.ToolResult{}, fmt.Errorf("tool %s: %w", use.Name, ctxErr)
		}
		observability.ToolExecutionsTotal.WithLabelValues(use.Name, "error").Inc()
		slog.Warn("tool failed", "tool", use.Name, "id", use.ID, "error", err)
		return conversation.ToolResult{ToolUseID: use.ID, Payload: err.Error(), IsError: true}, nil
	}

	observability.ToolExecutionsTotal.WithLabelValues(use.Name, "ok").Inc()
	return conversation.ToolResult{ToolUseID: use.ID, Payload: payload}, nil
}
