// Package normalize extracts the customer-facing reply, order lines and
// order status from a model's final text.
//
// Three payload shapes are recognized: a JSON object of the form
// {response, order, order_status}, text with <response>, <order> and
// <order_status> tags, and plain text. Malformed input never fails. It
// degrades to the raw text with an empty order and a logged warning.
package normalize

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/rhuss/voxorder/pkg/api"
	"github.com/rhuss/voxorder/pkg/observability"
)

// Shape names the payload form a reply was recognized as.
type Shape string

const (
	ShapeJSON   Shape = "json"
	ShapeTagged Shape = "tagged"
	ShapeText   Shape = "text"
)

// ParseDegradedWarning records input that could not be fully parsed. It is
// never returned as an error from Normalize.
type ParseDegradedWarning struct {
	Shape  Shape
	Reason string
}

func (w ParseDegradedWarning) Error() string {
	return fmt.Sprintf("%s payload degraded: %s", w.Shape, w.Reason)
}

// Result is the normalized reply.
type Result struct {
	ResponseText string
	Order        []api.OrderLine
	OrderStatus  string
	Shape        Shape
	Warnings     []ParseDegradedWarning
}

func (r *Result) warn(reason string, args ...any) {
	r.Warnings = append(r.Warnings, ParseDegradedWarning{Shape: r.Shape, Reason: fmt.Sprintf(reason, args...)})
}

// fallback is the safe default for an unparseable payload.
func fallback(raw string, shape Shape) Result {
	return Result{
		ResponseText: raw,
		Order:        []api.OrderLine{},
		OrderStatus:  api.OrderStatusUnknown,
		Shape:        shape,
	}
}

// Normalizer turns raw model text into a Result.
type Normalizer struct {
	logger *slog.Logger
}

// New creates a Normalizer. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Normalize never fails. Degradations are logged, counted and reported in
// Result.Warnings.
func (n *Normalizer) Normalize(raw string) Result {
	var res Result
	body := stripFence(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(body, "{"):
		res = parseJSON(raw, body)
	case hasAnyTag(raw):
		res = parseTagged(raw)
	default:
		res = fallback(raw, ShapeText)
	}

	if len(res.Warnings) > 0 {
		reasons := make([]string, len(res.Warnings))
		for i, w := range res.Warnings {
			reasons[i] = w.Reason
		}
		n.logger.Warn("parse degraded",
			"shape", string(res.Shape),
			"warnings", reasons,
			"lines", len(res.Order),
		)
		observability.NormalizeDegradedTotal.WithLabelValues(string(res.Shape)).Inc()
	}
	return res
}

// normalizeStatus trims the status and keeps the model's spelling.
func normalizeStatus(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return api.OrderStatusUnknown
	}
	return s
}

// stripFence removes a surrounding Markdown code fence such as ```json.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := s[3 : len(s)-3]
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 && !strings.Contains(inner[:nl], "{") {
		inner = inner[nl+1:]
	}
	return strings.TrimSpace(inner)
}
