package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fleetclaim"

var (
	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "claims_total", Help: "Order claim attempts by outcome"},
		[]string{"path", "outcome"},
	)
	BindsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "binds_total", Help: "Resource binding attempts by outcome"},
		[]string{"outcome"},
	)
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "transitions_total", Help: "Assignment status transitions by target and outcome"},
		[]string{"to", "outcome"},
	)
	FallbackStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "fallback_steps_total", Help: "Winning fallback step per resource kind"},
		[]string{"resource", "step"},
	)
	DegradedChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "degraded_checks_total", Help: "Checks that failed open"},
		[]string{"check"},
	)
	RemoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Latency of calls to the dispatch authority",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op", "outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Outcome turns an error into a low-cardinality metric label.
func Outcome(kind string, err error) string {
	if err == nil {
		return "ok"
	}
	if kind == "" {
		return "error"
	}
	return kind
}
