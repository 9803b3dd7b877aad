package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/voxorder/pkg/api"
)

// Logging returns middleware that emits one structured log entry per run
// with the request ID, model, style, token usage and duration.
//
// Status codes are not visible at this level; the HTTP adapter logs those.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ChatCompleter) ChatCompleter {
		return ChatCompleterFunc(func(ctx context.Context, req *api.ChatRequest) (*api.ChatResult, error) {
			start := time.Now()

			res, err := next.Complete(ctx, req)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("model", req.ModelID),
				slog.String("style", string(req.Style)),
				slog.Duration("duration", time.Since(start)),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "chat failed", attrs...)
				return nil, err
			}
			attrs = append(attrs,
				slog.Int("total_tokens", res.TotalTokens),
				slog.Int("order_lines", len(res.Order)),
				slog.String("order_status", res.OrderStatus),
			)
			logger.LogAttrs(ctx, slog.LevelInfo, "chat completed", attrs...)
			return res, nil
		})
	}
}
