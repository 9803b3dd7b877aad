package transport

import (
	"context"
	"time"

	"github.com/rhuss/voxorder/pkg/api"
)

// Timeout returns middleware that bounds every run by d. A zero or
// negative d disables the bound.
func Timeout(d time.Duration) Middleware {
	return func(next ChatCompleter) ChatCompleter {
		if d <= 0 {
			return next
		}
		return ChatCompleterFunc(func(ctx context.Context, req *api.ChatRequest) (*api.ChatResult, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.Complete(ctx, req)
		})
	}
}
