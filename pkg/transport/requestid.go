package transport

import (
	"context"

	"github.com/rhuss/voxorder/pkg/api"
)

// RequestID returns middleware that makes sure every run carries a request
// ID. An ID already in the context (set by the HTTP adapter from the
// X-Request-ID header) is kept; otherwise api.NewRequestID is used.
func RequestID() Middleware {
	return func(next ChatCompleter) ChatCompleter {
		return ChatCompleterFunc(func(ctx context.Context, req *api.ChatRequest) (*api.ChatResult, error) {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, api.NewRequestID())
			}
			return next.Complete(ctx, req)
		})
	}
}
