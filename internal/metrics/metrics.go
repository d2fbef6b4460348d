package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts completed requests by method, route pattern and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks request latency in seconds by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// RateLimitRejections counts requests refused by a rate limiter, by scope.
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter by scope",
		},
		[]string{"scope"},
	)
)

// Media metrics
var (
	// MediaOperationsTotal counts media store calls by operation and outcome.
	MediaOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_operations_total",
			Help: "Media store operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// CircuitBreakerState tracks the current breaker state (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)

	// WorkflowRollbacks counts compensations triggered in multi-step workflows.
	WorkflowRollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_rollbacks_total",
			Help: "Workflow rollbacks by workflow and reason",
		},
		[]string{"workflow", "reason"},
	)
)

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
