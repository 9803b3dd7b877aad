package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rhuss/voxorder/pkg/api"
)

// Tool is one capability exposed to the model.
type Tool interface {
	// Definition describes the tool to the vendor.
	Definition() api.ToolDefinition

	// Invoke runs the tool with the model's arguments. limit is the
	// settings-configured result cap. The returned string becomes the tool
	// result payload.
	Invoke(ctx context.Context, args json.RawMessage, limit int) (string, error)
}

// UnknownToolError is returned when a model names a tool that is not
// registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// ArgumentError reports tool arguments the tool cannot use. It is fed back
// to the model, never surfaced to the client.
type ArgumentError struct {
	Tool   string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
}
