// Package monitor contains the polling scheduler. This file exposes its
// Prometheus instrumentation with careful attention to label cardinality:
// the only label is the cycle outcome, a closed three-value set.
package monitor

import "github.com/prometheus/client_golang/prometheus"

var (
	// pollCycles counts completed poll cycles by outcome: "ok" for a fetch
	// that succeeded, "error" for a fetch that failed, "idle" for a
	// degraded no-op cycle run before authentication.
	pollCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_poll_cycles_total",
			Help: "Total number of poll cycles by outcome.",
		},
		[]string{"outcome"},
	)

	// matchesDetected counts matches appended to the log.
	matchesDetected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "monitor_matches_total",
			Help: "Total number of matches detected.",
		},
	)

	// pollDuration records fetch+evaluate latency for successful and failed
	// fetches (idle cycles are not observed; they do no work).
	pollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "monitor_poll_duration_seconds",
			Help:    "Duration of poll cycles in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// schedulerState gauges the current state machine position
	// (0=idle, 1=polling, 2=backoff, 3=stopped).
	schedulerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "monitor_scheduler_state",
			Help: "Current scheduler state (0=idle, 1=polling, 2=backoff, 3=stopped).",
		},
	)
)

func init() {
	prometheus.MustRegister(pollCycles, matchesDetected, pollDuration, schedulerState)
}
