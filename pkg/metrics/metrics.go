package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapweave_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// SharingOperations counts Authorization Engine mutations by operation
	// (invitation.create, invitation.accept, share.revoke, ...) and outcome.
	SharingOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapweave_sharing_operations_total",
			Help: "Total number of sharing mutations",
		},
		[]string{"operation", "result"},
	)

	// CapabilityChecks counts access evaluator lookups and their outcome (allow|deny|error).
	CapabilityChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapweave_capability_checks_total",
			Help: "Total number of capability evaluations",
		},
		[]string{"capability", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mapweave_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
