// Package observability provides metrics and tracing instrumentation.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline outcome labels for SubmissionsTotal.
const (
	OutcomeAccepted    = "accepted"
	OutcomeBlocked     = "blocked"
	OutcomeRateLimited = "rate_limited"
	OutcomeInvalid     = "validation_failed"
	OutcomeDuplicate   = "duplicate"
	OutcomeStoreError  = "store_error"
)

var (
	// SubmissionsTotal counts submission attempts by pipeline outcome.
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_submissions_total",
		Help: "Total submission attempts by pipeline outcome",
	}, []string{"outcome"})

	// RateLimitDecisions counts admission decisions by pool.
	RateLimitDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_rate_limit_decisions_total",
		Help: "Rate limit admission decisions by quota pool",
	}, []string{"pool", "allowed"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "intake_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

// ObserveQuery records the latency of a database query.
func ObserveQuery(operation, table string, start time.Time) {
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		ObserveQuery(operation, table, start)
	}
}
