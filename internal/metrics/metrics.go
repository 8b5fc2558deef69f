// Package metrics holds the process-wide Prometheus collectors. promauto
// registers them on the default registry at init time; the server exposes
// them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExecutionsSubmitted counts batch submissions by mode (sync/async) and
	// outcome (accepted/rejected).
	ExecutionsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opexec_executions_submitted_total",
			Help: "Total number of batch submissions.",
		},
		[]string{"mode", "outcome"},
	)

	// OperationsExecuted counts individual operations in finished batches by
	// kind.
	OperationsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opexec_operations_executed_total",
			Help: "Total number of operations executed in finished batches.",
		},
		[]string{"kind"},
	)

	// SweepMarked counts facets moved to TIME_OUT_PENDING by the mark sweep.
	SweepMarked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opexec_sweep_marked_total",
			Help: "Total number of availability facets marked pending by the expiry sweep.",
		},
		[]string{"facet"},
	)

	// SweepPurged counts facets purged by the purge sweep. The record facet
	// counts whole deleted records.
	SweepPurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opexec_sweep_purged_total",
			Help: "Total number of availability facets purged by the purge sweep.",
		},
		[]string{"facet"},
	)

	// HTTPRequestsTotal counts handled HTTP requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opexec_http_requests_total",
			Help: "Total number of HTTP requests handled by the service.",
		},
		[]string{"path", "method", "code"},
	)
)
