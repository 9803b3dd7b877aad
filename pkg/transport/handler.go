package transport

import (
	"context"

	"github.com/rhuss/voxorder/pkg/api"
)

// ChatCompleter runs one chat request to completion. Implementations
// return either a full result or an error, never both.
type ChatCompleter interface {
	Complete(ctx context.Context, req *api.ChatRequest) (*api.ChatResult, error)
}

// ChatCompleterFunc is an adapter that allows using an ordinary function
// as a ChatCompleter.
type ChatCompleterFunc func(ctx context.Context, req *api.ChatRequest) (*api.ChatResult, error)

// Complete calls f(ctx, req).
func (f ChatCompleterFunc) Complete(ctx context.Context, req *api.ChatRequest) (*api.ChatResult, error) {
	return f(ctx, req)
}
