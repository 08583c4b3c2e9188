package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentswarm/swarm/pkg/claude"
)

func TestLogRequestAndResponse_HumanFraming(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(filepath.Join(dir, "session.log"), filepath.Join(dir, "session.log.json"),
		"lead", "lead_aaaaaaaa", "", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	l.LogRequest("backend")
	l.LogResponse("backend", 0.02, 1500)
	l.humanFile.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "session.log"))
	if err != nil {
		t.Fatalf("reading human log: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "lead -> backend:") {
		t.Errorf("expected request framing in log, got: %s", text)
	}
	if !strings.Contains(text, "($0.0200 - 1500ms) backend -> lead:") {
		t.Errorf("expected response framing in log, got: %s", text)
	}
}

func TestLogEvent_WritesJSONLineWithAttribution(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(filepath.Join(dir, "session.log"), filepath.Join(dir, "session.log.json"),
		"backend", "backend_bbbbbbbb", "lead", "lead_aaaaaaaa")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	msg, err := claude.ParseStreamMessage([]byte(`{"type":"result","result":"done","total_cost_usd":0.03}`))
	if err != nil {
		t.Fatalf("ParseStreamMessage: %v", err)
	}
	if err := l.LogEvent(msg); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
	l.jsonFile.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "session.log.json"))
	if err != nil {
		t.Fatalf("reading json log: %v", err)
	}

	var line jsonLine
	if err := json.Unmarshal(bytesTrimNewline(data), &line); err != nil {
		t.Fatalf("unmarshaling json log line: %v", err)
	}
	if line.Instance != "backend" {
		t.Errorf("instance = %q", line.Instance)
	}
	if line.CallingInstance != "lead" {
		t.Errorf("calling_instance = %q", line.CallingInstance)
	}

	var event struct {
		Type   string `json:"type"`
		Result string `json:"result"`
	}
	if err := json.Unmarshal(line.Event, &event); err != nil {
		t.Fatalf("unmarshaling event: %v", err)
	}
	if event.Type != "result" || event.Result != "done" {
		t.Errorf("event = %+v", event)
	}
}

func TestClose_WritesMetricsSnapshotLine(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(filepath.Join(dir, "session.log"), filepath.Join(dir, "session.log.json"),
		"lead", "lead_aaaaaaaa", "", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "session.log.json"))
	if err != nil {
		t.Fatalf("reading json log: %v", err)
	}

	var line jsonLine
	if err := json.Unmarshal(bytesTrimNewline(data), &line); err != nil {
		t.Fatalf("unmarshaling json log line: %v", err)
	}

	var event struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(line.Event, &event); err != nil {
		t.Fatalf("unmarshaling event: %v", err)
	}
	if event.Type != "metrics_snapshot" {
		t.Errorf("event type = %q, want %q", event.Type, "metrics_snapshot")
	}
}

func bytesTrimNewline(b []byte) []byte {
	scanner := bufio.NewScanner(strings.NewReader(string(b)))
	scanner.Scan()
	return scanner.Bytes()
}

func TestAggregateCost_ExcludesRootInstance(t *testing.T) {
	dir := t.TempDir()
	jsonLogPath := filepath.Join(dir, "session.log.json")

	lines := []string{
		`{"instance":"lead","event":{"type":"result","total_cost_usd":99.0}}`,
		`{"instance":"backend","event":{"type":"result","total_cost_usd":0.05}}`,
		`{"instance":"backend","event":{"type":"assistant","total_cost_usd":0}}`,
		`{"instance":"frontend","event":{"type":"result","total_cost_usd":0.03}}`,
	}
	if err := os.WriteFile(jsonLogPath, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	summary, err := AggregateCost(jsonLogPath, "lead")
	if err != nil {
		t.Fatalf("AggregateCost: %v", err)
	}

	if summary.TotalCostUSD < 0.079 || summary.TotalCostUSD > 0.081 {
		t.Errorf("TotalCostUSD = %f, want ~0.08", summary.TotalCostUSD)
	}
	if summary.PerInstance["lead"] != 0 {
		t.Errorf("expected root instance excluded, got %f", summary.PerInstance["lead"])
	}
	if summary.PerInstance["backend"] < 0.049 || summary.PerInstance["backend"] > 0.051 {
		t.Errorf("backend cost = %f, want ~0.05", summary.PerInstance["backend"])
	}
	if summary.InstanceCount != 3 {
		t.Errorf("InstanceCount = %d, want 3", summary.InstanceCount)
	}
}

func TestAggregateCost_MissingFileReturnsZeroSummary(t *testing.T) {
	summary, err := AggregateCost(filepath.Join(t.TempDir(), "missing.json"), "lead")
	if err != nil {
		t.Fatalf("AggregateCost: %v", err)
	}
	if summary.TotalCostUSD != 0 || summary.InstanceCount != 0 {
		t.Errorf("expected zero-value summary, got %+v", summary)
	}
}

func TestWriteSessionSummary_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session_summary.json")
	summary := CostSummary{
		TotalCostUSD:  0.08,
		PerInstance:   map[string]float64{"backend": 0.05, "frontend": 0.03},
		InstanceCount: 3,
		RootInstance:  "lead",
	}

	if err := WriteSessionSummary(path, summary); err != nil {
		t.Fatalf("WriteSessionSummary: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading summary: %v", err)
	}
	var got CostSummary
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshaling summary: %v", err)
	}
	if got.TotalCostUSD != 0.08 || got.InstanceCount != 3 {
		t.Errorf("got = %+v", got)
	}
}
