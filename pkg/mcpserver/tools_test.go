package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/agentswarm/swarm/pkg/agent"
	"github.com/agentswarm/swarm/pkg/metrics"
	"github.com/agentswarm/swarm/pkg/state"

	"github.com/mark3labs/mcp-go/mcp"
)

// fakeExecutor is a test double implementing agent.Executor.
type fakeExecutor struct {
	result     agent.Result
	execErr    error
	sessionID  string
	workDir    string
	resetCalls int
	lastPrompt string
	lastOpts   agent.RunOptions
}

func (f *fakeExecutor) Execute(_ context.Context, prompt string, opts agent.RunOptions) (agent.Result, error) {
	f.lastPrompt = prompt
	f.lastOpts = opts
	return f.result, f.execErr
}

func (f *fakeExecutor) Reset() {
	f.resetCalls++
	f.sessionID = ""
}

func (f *fakeExecutor) SessionID() string        { return f.sessionID }
func (f *fakeExecutor) WorkingDirectory() string { return f.workDir }

func buildToolMap(ctx ServerContext) map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tools := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){}

	tt := taskTool(ctx)
	tools[tt.Tool.Name] = tt.Handler

	sit := sessionInfoTool(ctx)
	tools[sit.Tool.Name] = sit.Handler

	rst := resetSessionTool(ctx)
	tools[rst.Tool.Name] = rst.Handler

	return tools
}

func newCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("expected at least one content item")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func TestTaskTool_ReturnsFinalText(t *testing.T) {
	exec := &fakeExecutor{result: agent.Result{Text: "done with the task"}}
	tools := buildToolMap(ServerContext{InstanceName: "backend", Executor: exec})
	handler := tools["task"]

	result, err := handler(context.Background(), newCallToolRequest("task", map[string]any{
		"prompt": "implement the thing",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %v", result.Content)
	}
	if text := extractText(t, result); text != "done with the task" {
		t.Errorf("expected %q, got %q", "done with the task", text)
	}
	if exec.lastPrompt != "implement the thing" {
		t.Errorf("expected prompt %q, got %q", "implement the thing", exec.lastPrompt)
	}
}

func TestTaskTool_RecordsMetricsOnSuccess(t *testing.T) {
	exec := &fakeExecutor{result: agent.Result{Text: "done", CostUSD: 0.02}}
	tools := buildToolMap(ServerContext{InstanceName: "metrics-success", Executor: exec})
	handler := tools["task"]

	before := readCounterValue(t, "metrics-success")
	if _, err := handler(context.Background(), newCallToolRequest("task", map[string]any{"prompt": "go"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after := readCounterValue(t, "metrics-success")
	if after-before < 0.019 {
		t.Errorf("expected RecordCost to add ~0.02, got delta %f", after-before)
	}

	gauge, err := metrics.ProcessStatus.GetMetricWithLabelValues("metrics-success", string(state.StatusDone))
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	var m dto.Metric
	if err := gauge.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if m.GetGauge().GetValue() != 1 {
		t.Errorf("expected process_status{status=done}=1 after a successful task, got %f", m.GetGauge().GetValue())
	}
}

func TestTaskTool_RecordsErrorStatusOnExecutorError(t *testing.T) {
	exec := &fakeExecutor{execErr: fmt.Errorf("boom")}
	tools := buildToolMap(ServerContext{InstanceName: "metrics-error", Executor: exec})
	handler := tools["task"]

	if _, err := handler(context.Background(), newCallToolRequest("task", map[string]any{"prompt": "go"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gauge, err := metrics.ProcessStatus.GetMetricWithLabelValues("metrics-error", string(state.StatusError))
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	var m dto.Metric
	if err := gauge.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if m.GetGauge().GetValue() != 1 {
		t.Errorf("expected process_status{status=error}=1 after a failed task, got %f", m.GetGauge().GetValue())
	}
}

func readCounterValue(t *testing.T, instance string) float64 {
	t.Helper()
	c, err := metrics.SessionCostUSDTotal.GetMetricWithLabelValues(instance)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	var m dto.Metric
	if err := c.(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestTaskTool_DescriptionIncludesInstanceNameAndDescription(t *testing.T) {
	tool := taskTool(ServerContext{InstanceName: "backend", Description: "Handles the API layer."})
	want := "Execute a task using Agent backend. Handles the API layer."
	if tool.Tool.Description != want {
		t.Errorf("description = %q, want %q", tool.Tool.Description, want)
	}
}

func TestTaskTool_MissingPromptErrors(t *testing.T) {
	exec := &fakeExecutor{}
	tools := buildToolMap(ServerContext{Executor: exec})
	handler := tools["task"]

	result, err := handler(context.Background(), newCallToolRequest("task", map[string]any{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error for missing prompt")
	}
}

func TestTaskTool_PassesNewSessionAndSystemPrompt(t *testing.T) {
	exec := &fakeExecutor{result: agent.Result{Text: "ok"}}
	tools := buildToolMap(ServerContext{Executor: exec})
	handler := tools["task"]

	_, err := handler(context.Background(), newCallToolRequest("task", map[string]any{
		"prompt":        "go",
		"new_session":   true,
		"system_prompt": "Be terse.",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exec.lastOpts.NewSession {
		t.Error("expected NewSession to be true")
	}
	if exec.lastOpts.SystemPrompt != "Be terse." {
		t.Errorf("expected system_prompt %q, got %q", "Be terse.", exec.lastOpts.SystemPrompt)
	}
}

func TestTaskTool_ExecutorErrorSurfacesAsToolError(t *testing.T) {
	exec := &fakeExecutor{execErr: fmt.Errorf("sub-agent exited non-zero")}
	tools := buildToolMap(ServerContext{Executor: exec})
	handler := tools["task"]

	result, err := handler(context.Background(), newCallToolRequest("task", map[string]any{
		"prompt": "go",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error when executor returns an error")
	}
}

func TestTaskTool_ResultIsErrorSurfacesAsToolError(t *testing.T) {
	exec := &fakeExecutor{result: agent.Result{Text: "something went wrong", IsError: true}}
	tools := buildToolMap(ServerContext{Executor: exec})
	handler := tools["task"]

	result, err := handler(context.Background(), newCallToolRequest("task", map[string]any{
		"prompt": "go",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error when result.IsError is true")
	}
}

func TestSessionInfoTool_NoSession(t *testing.T) {
	exec := &fakeExecutor{workDir: "/repo/backend"}
	tools := buildToolMap(ServerContext{Executor: exec})
	handler := tools["session_info"]

	result, err := handler(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var info struct {
		HasSession       bool   `json:"has_session"`
		SessionID        string `json:"session_id"`
		WorkingDirectory string `json:"working_directory"`
	}
	if err := json.Unmarshal([]byte(extractText(t, result)), &info); err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if info.HasSession {
		t.Error("expected has_session false")
	}
	if info.WorkingDirectory != "/repo/backend" {
		t.Errorf("expected working_directory %q, got %q", "/repo/backend", info.WorkingDirectory)
	}
}

func TestSessionInfoTool_WithSession(t *testing.T) {
	exec := &fakeExecutor{sessionID: "sess-123", workDir: "/repo/backend"}
	tools := buildToolMap(ServerContext{Executor: exec})
	handler := tools["session_info"]

	result, err := handler(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var info struct {
		HasSession bool   `json:"has_session"`
		SessionID  string `json:"session_id"`
	}
	if err := json.Unmarshal([]byte(extractText(t, result)), &info); err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if !info.HasSession {
		t.Error("expected has_session true")
	}
	if info.SessionID != "sess-123" {
		t.Errorf("expected session_id %q, got %q", "sess-123", info.SessionID)
	}
}

func TestResetSessionTool_ClearsSessionAndReportsSuccess(t *testing.T) {
	exec := &fakeExecutor{sessionID: "sess-abc"}
	tools := buildToolMap(ServerContext{Executor: exec})
	handler := tools["reset_session"]

	result, err := handler(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(extractText(t, result)), &resp); err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if !resp.Success {
		t.Error("expected success true")
	}
	if resp.Message != "Session has been reset" {
		t.Errorf("unexpected message %q", resp.Message)
	}
	if exec.resetCalls != 1 {
		t.Errorf("expected Reset to be called once, got %d", exec.resetCalls)
	}
	if exec.sessionID != "" {
		t.Error("expected session id to be cleared")
	}
}
