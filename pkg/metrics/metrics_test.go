package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/agentswarm/swarm/pkg/state"
)

func TestSetProcessStatus(t *testing.T) {
	tests := []struct {
		name      string
		setStatus state.Status
	}{
		{name: "idle", setStatus: state.StatusIdle},
		{name: "running", setStatus: state.StatusRunning},
		{name: "done", setStatus: state.StatusDone},
		{name: "error", setStatus: state.StatusError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			SetProcessStatus("backend", tc.setStatus)

			for _, s := range AllStatuses {
				gauge, err := ProcessStatus.GetMetricWithLabelValues("backend", s)
				if err != nil {
					t.Fatalf("failed to get metric for status %q: %v", s, err)
				}
				var m dto.Metric
				if err := gauge.Write(&m); err != nil {
					t.Fatalf("failed to write metric for status %q: %v", s, err)
				}
				got := m.GetGauge().GetValue()
				if s == string(tc.setStatus) {
					if got != 1 {
						t.Errorf("status %q: expected 1, got %f", s, got)
					}
				} else {
					if got != 0 {
						t.Errorf("status %q: expected 0, got %f", s, got)
					}
				}
			}
		})
	}
}

func TestMetricsRegistered(t *testing.T) {
	// Initialise at least one series per metric so they appear in the gather
	// output (counters/histograms without observations are not reported).
	RecordTask("backend", "ok", 1.0)
	RecordCost("backend", 0.01)
	SetProcessStatus("backend", state.StatusIdle)

	metricFamilies, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	wantNames := map[string]bool{
		"swarm_task_total":            false,
		"swarm_task_duration_seconds": false,
		"swarm_process_status":        false,
		"swarm_session_cost_usd_total": false,
	}

	for _, mf := range metricFamilies {
		if _, ok := wantNames[mf.GetName()]; ok {
			wantNames[mf.GetName()] = true
		}
	}

	for name, found := range wantNames {
		if !found {
			t.Errorf("metric %q not found in default registry", name)
		}
	}
}

func TestRecordCost_IgnoresNonPositiveDeltas(t *testing.T) {
	before := readCounter(t, "ledger")
	RecordCost("ledger", 0.05)
	RecordCost("ledger", 0.10)
	after := readCounter(t, "ledger")

	delta := after - before
	if delta < 0.14 || delta > 0.16 {
		t.Errorf("expected cumulative cost delta ~0.15, got %f", delta)
	}

	RecordCost("ledger", 0)
	RecordCost("ledger", -1.0)

	afterNoop := readCounter(t, "ledger")
	if afterNoop != after {
		t.Errorf("expected no change for non-positive delta, got %f -> %f", after, afterNoop)
	}
}

func TestTaskDurationSeconds_RecordsObservations(t *testing.T) {
	RecordTask("lead", "ok", 5.0)
	RecordTask("lead", "error", 1.0)

	metricFamilies, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	var found bool
	for _, mf := range metricFamilies {
		if mf.GetName() != "swarm_task_duration_seconds" {
			continue
		}
		found = true
		var totalCount uint64
		for _, m := range mf.GetMetric() {
			totalCount += m.GetHistogram().GetSampleCount()
		}
		if totalCount < 2 {
			t.Errorf("expected at least 2 observations, got %d", totalCount)
		}
		break
	}
	if !found {
		t.Error("swarm_task_duration_seconds not found in gathered metrics")
	}
}

func readCounter(t *testing.T, instance string) float64 {
	t.Helper()
	c, err := SessionCostUSDTotal.GetMetricWithLabelValues(instance)
	if err != nil {
		t.Fatalf("failed to get counter: %v", err)
	}
	var m dto.Metric
	if err := c.(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}
