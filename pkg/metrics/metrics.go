// Package metrics provides Prometheus metrics for one mcp-serve process.
//
// A stdio MCP server exposes no HTTP port, so there is no live /metrics
// endpoint to scrape; the registry is instead snapshotted into the JSON
// event log on exit (see pkg/logging), keeping the dependency exercised
// without requiring a transport the stdio design has no use for.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agentswarm/swarm/pkg/state"
)

const namespace = "swarm"

// TaskTotal counts task-tool invocations per instance and outcome.
var TaskTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "task_total",
	Help:      "Total number of task invocations handled by this agent.",
}, []string{"instance", "status"})

// TaskDurationSeconds tracks end-to-end duration of a task invocation.
var TaskDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "task_duration_seconds",
	Help:      "Duration of task execution in seconds.",
	Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34m
}, []string{"instance", "status"})

// SessionCostUSDTotal tracks cumulative cost from stream-json total_cost_usd,
// excluding the root instance.
var SessionCostUSDTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "session_cost_usd_total",
	Help:      "Cumulative non-root instance cost in USD for this session.",
}, []string{"instance"})

// ProcessStatus is a gauge indicating each instance's current state.Status.
// Only the label matching the active status is set to 1; all others are 0.
var ProcessStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "process_status",
	Help:      "Current instance status (1 for active status, 0 for others).",
}, []string{"instance", "status"})

// AllStatuses is the complete list of state.Status labels the ProcessStatus
// gauge tracks for one instance.
var AllStatuses = []string{
	string(state.StatusIdle),
	string(state.StatusRunning),
	string(state.StatusDone),
	string(state.StatusError),
}

// SetProcessStatus sets instance's status gauge, setting status to 1 and
// every other known status to 0.
func SetProcessStatus(instance string, status state.Status) {
	for _, s := range AllStatuses {
		if s == string(status) {
			ProcessStatus.WithLabelValues(instance, s).Set(1)
		} else {
			ProcessStatus.WithLabelValues(instance, s).Set(0)
		}
	}
}

// RecordTask records the outcome and duration of one task invocation.
func RecordTask(instance, status string, durationSeconds float64) {
	TaskTotal.WithLabelValues(instance, status).Inc()
	TaskDurationSeconds.WithLabelValues(instance, status).Observe(durationSeconds)
}

// RecordCost adds a non-negative cost delta to instance's running total;
// non-positive deltas are ignored (result events sometimes repeat the same
// total_cost_usd across turns).
func RecordCost(instance string, delta float64) {
	if delta <= 0 {
		return
	}
	SessionCostUSDTotal.WithLabelValues(instance).Add(delta)
}
