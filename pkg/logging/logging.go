// Package logging implements the dual human/JSON session logger and cost
// aggregator. Every instance's mcp-serve process opens its own Logger
// against the shared session.log / session.log.json pair; writes are
// append-only and line-oriented.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentswarm/swarm/pkg/claude"
)

// Logger writes one instance's attributed events to the shared session log
// pair. CallingInstance/CallingInstanceID are empty for the root instance.
type Logger struct {
	Instance          string
	InstanceID        string
	CallingInstance   string
	CallingInstanceID string

	mu        sync.Mutex
	human     *log.Logger
	humanFile *os.File
	jsonFile  *os.File
}

// jsonLine is one line of session.log.json.
type jsonLine struct {
	Timestamp         string          `json:"timestamp"`
	Instance          string          `json:"instance"`
	InstanceID        string          `json:"instance_id"`
	CallingInstance   string          `json:"calling_instance,omitempty"`
	CallingInstanceID string          `json:"calling_instance_id,omitempty"`
	Event             json.RawMessage `json:"event"`
}

// Open appends to the two log files at humanLogPath and jsonLogPath,
// creating them if absent.
func Open(humanLogPath, jsonLogPath, instance, instanceID, callingInstance, callingInstanceID string) (*Logger, error) {
	humanFile, err := os.OpenFile(humanLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", humanLogPath, err)
	}

	jsonFile, err := os.OpenFile(jsonLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		humanFile.Close()
		return nil, fmt.Errorf("opening %s: %w", jsonLogPath, err)
	}

	return &Logger{
		Instance:          instance,
		InstanceID:        instanceID,
		CallingInstance:   callingInstance,
		CallingInstanceID: callingInstanceID,
		human:             log.New(humanFile, "", log.LstdFlags),
		humanFile:         humanFile,
		jsonFile:          jsonFile,
	}, nil
}

// Close snapshots this process's Prometheus registry as a final
// metrics_snapshot line in session.log.json, then closes both underlying
// files. A stdio MCP server exposes no HTTP port for a live /metrics
// scrape, so this snapshot is the only place the registry's contents ever
// surface.
func (l *Logger) Close() error {
	l.writeMetricsSnapshot()

	l.mu.Lock()
	defer l.mu.Unlock()
	err1 := l.humanFile.Close()
	err2 := l.jsonFile.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func (l *Logger) writeMetricsSnapshot() {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return
	}
	metricsJSON, err := json.Marshal(families)
	if err != nil {
		return
	}

	snapshot := struct {
		Type    string          `json:"type"`
		Metrics json.RawMessage `json:"metrics"`
	}{Type: "metrics_snapshot", Metrics: metricsJSON}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	_ = l.writeJSON(raw)
}

// LogRequest records this instance invoking callee as a task.
func (l *Logger) LogRequest(callee string) {
	l.human.Printf("%s -> %s:", l.Instance, callee)
}

// LogResponse records callee's result returning to this instance.
func (l *Logger) LogResponse(callee string, costUSD, durationMS float64) {
	l.human.Printf("($%.4f - %.0fms) %s -> %s:", costUSD, durationMS, callee, l.Instance)
}

// LogEvent writes msg to session.log.json verbatim (pass-through of the
// provider's stream event) and, for assistant thinking/tool-call events,
// also writes a human-readable line attributed to this instance. A message
// with no raw line (the OpenAI backend's synthetic events) is encoded from
// its fields instead.
func (l *Logger) LogEvent(msg claude.StreamMessage) error {
	switch msg.Type {
	case claude.MessageTypeAssistant:
		switch msg.Subtype {
		case claude.SubtypeText:
			if msg.Text != "" {
				l.human.Printf("%s: %s", l.Instance, msg.Text)
			}
		case claude.SubtypeToolUse:
			l.human.Printf("%s: using tool %s", l.Instance, msg.ToolName)
		}
	case claude.MessageTypeResult:
		l.human.Printf("%s: result ($%.4f - %.0fms)", l.Instance, msg.TotalCost, msg.Duration)
	}

	raw := msg.Raw
	if len(raw) == 0 {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshaling event: %w", err)
		}
		raw = data
	}
	return l.writeJSON(raw)
}

func (l *Logger) writeJSON(event json.RawMessage) error {
	line := jsonLine{
		Timestamp:         time.Now().UTC().Format(time.RFC3339Nano),
		Instance:          l.Instance,
		InstanceID:        l.InstanceID,
		CallingInstance:   l.CallingInstance,
		CallingInstanceID: l.CallingInstanceID,
		Event:             event,
	}

	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("marshaling log line: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.jsonFile.Write(append(data, '\n'))
	return err
}
