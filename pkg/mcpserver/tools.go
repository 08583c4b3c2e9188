package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentswarm/swarm/pkg/agent"
	"github.com/agentswarm/swarm/pkg/metrics"
	"github.com/agentswarm/swarm/pkg/state"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterTools registers the three-tool facade on s.
func RegisterTools(s *server.MCPServer, ctx ServerContext) {
	s.AddTools(
		taskTool(ctx),
		sessionInfoTool(ctx),
		resetSessionTool(ctx),
	)
}

func taskTool(ctx ServerContext) server.ServerTool {
	description := fmt.Sprintf("Execute a task using Agent %s.", ctx.InstanceName)
	if ctx.Description != "" {
		description = fmt.Sprintf("%s %s", description, ctx.Description)
	}

	tool := mcp.NewTool("task",
		mcp.WithDescription(description),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("The task to send to the agent"),
		),
		mcp.WithBoolean("new_session",
			mcp.Description("Start a fresh conversation instead of resuming the previous one"),
		),
		mcp.WithString("system_prompt",
			mcp.Description("Additional system prompt for this call only"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	var lastCostUSD float64

	handler := func(tctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := request.RequireString("prompt")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var opts agent.RunOptions
		if v, err := optionalBool(request, "new_session"); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		} else {
			opts.NewSession = v
		}
		if v, err := optionalString(request, "system_prompt"); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		} else {
			opts.SystemPrompt = v
		}

		metrics.SetProcessStatus(ctx.InstanceName, state.StatusRunning)
		start := time.Now()
		result, err := ctx.Executor.Execute(tctx, prompt, opts)
		duration := time.Since(start).Seconds()

		if err != nil {
			metrics.RecordTask(ctx.InstanceName, "error", duration)
			metrics.SetProcessStatus(ctx.InstanceName, state.StatusError)
			return mcp.NewToolResultError(err.Error()), nil
		}
		if result.IsError {
			metrics.RecordTask(ctx.InstanceName, "error", duration)
			metrics.SetProcessStatus(ctx.InstanceName, state.StatusError)
			return mcp.NewToolResultError(result.Text), nil
		}

		metrics.RecordTask(ctx.InstanceName, "success", duration)
		metrics.RecordCost(ctx.InstanceName, result.CostUSD-lastCostUSD)
		lastCostUSD = result.CostUSD
		metrics.SetProcessStatus(ctx.InstanceName, state.StatusDone)
		return mcp.NewToolResultText(result.Text), nil
	}

	return server.ServerTool{Tool: tool, Handler: handler}
}

func sessionInfoTool(ctx ServerContext) server.ServerTool {
	tool := mcp.NewTool("session_info",
		mcp.WithDescription("Report whether this agent has an active session and its working directory"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	handler := func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := ctx.Executor.SessionID()
		resp := struct {
			HasSession       bool   `json:"has_session"`
			SessionID        string `json:"session_id,omitempty"`
			WorkingDirectory string `json:"working_directory"`
		}{
			HasSession:       sessionID != "",
			SessionID:        sessionID,
			WorkingDirectory: ctx.Executor.WorkingDirectory(),
		}

		data, err := json.Marshal(resp)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}

	return server.ServerTool{Tool: tool, Handler: handler}
}

func resetSessionTool(ctx ServerContext) server.ServerTool {
	tool := mcp.NewTool("reset_session",
		mcp.WithDescription("Clear the captured session id; the next task starts fresh"),
	)

	handler := func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx.Executor.Reset()
		metrics.SetProcessStatus(ctx.InstanceName, state.StatusIdle)
		resp := struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
		}{
			Success: true,
			Message: "Session has been reset",
		}
		data, err := json.Marshal(resp)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}

	return server.ServerTool{Tool: tool, Handler: handler}
}

func optionalString(request mcp.CallToolRequest, key string) (string, error) {
	args := request.GetArguments()
	v, ok := args[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string", key)
	}
	return s, nil
}

func optionalBool(request mcp.CallToolRequest, key string) (bool, error) {
	args := request.GetArguments()
	v, ok := args[key]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("parameter %q must be a boolean", key)
	}
	return b, nil
}
