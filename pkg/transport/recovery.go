package transport

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/rhuss/voxorder/pkg/api"
)

// Recovery returns middleware that converts a panic in the handler into a
// server error. The server keeps accepting requests afterwards.
func Recovery() Middleware {
	return func(next ChatCompleter) ChatCompleter {
		return ChatCompleterFunc(func(ctx context.Context, req *api.ChatRequest) (res *api.ChatResult, retErr error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("panic in chat handler", "panic", r, "request_id", RequestIDFromContext(ctx), "stack", string(debug.Stack()))
					res = nil
					retErr = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
				}
			}()
			return next.Complete(ctx, req)
		})
	}
}
