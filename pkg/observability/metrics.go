// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring voxorder.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts HTTP requests by route pattern and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxorder_requests_total",
			Help: "Total requests",
		},
		[]string{"route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voxorder_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"route"},
	)

	// ProviderRequestsTotal counts calls to LLM vendors.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxorder_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"provider", "model", "status"},
	)

	// ProviderLatency records vendor call latency in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voxorder_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// ProviderTokensTotal counts tokens by direction (input/output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxorder_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// ToolExecutionsTotal counts tool dispatches by name and outcome.
	ToolExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxorder_tool_executions_total",
			Help: "Tool executions",
		},
		[]string{"tool", "status"},
	)

	// ToolRounds records how many tool rounds a completed run needed.
	ToolRounds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voxorder_tool_rounds",
			Help:    "Tool rounds per run",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 8},
		},
		[]string{"provider"},
	)

	// OrderCostTotal accumulates computed cost in USD by model.
	OrderCostTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxorder_order_cost_usd_total",
			Help: "Accumulated model cost in USD",
		},
		[]string{"model"},
	)

	// NormalizeDegradedTotal counts vendor replies that could only be
	// partially parsed, by detected shape.
	NormalizeDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxorder_normalize_degraded_total",
			Help: "Degraded reply normalizations",
		},
		[]string{"shape"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		ToolExecutionsTotal,
		ToolRounds,
		OrderCostTotal,
		NormalizeDegradedTotal,
	)
}
