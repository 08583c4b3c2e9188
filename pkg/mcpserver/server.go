// Package mcpserver implements the re-entrant stdio MCP facade: when
// the orchestrator binary is invoked in mcp-serve mode it wraps exactly one
// sub-agent instance and exposes it to its caller as three MCP tools.
package mcpserver

import (
	"github.com/agentswarm/swarm/pkg/agent"
	"github.com/agentswarm/swarm/pkg/project"

	"github.com/mark3labs/mcp-go/server"
)

// ServerContext carries the one sub-agent instance this process wraps.
type ServerContext struct {
	InstanceName string
	Description  string
	Executor     agent.Executor
}

// New returns the raw MCPServer with tools registered.
func New(ctx ServerContext) *server.MCPServer {
	s := server.NewMCPServer(
		project.Name,
		project.Version(),
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	RegisterTools(s, ctx)
	return s
}

// Serve binds the server to stdio and blocks until the transport closes.
func Serve(ctx ServerContext) error {
	return server.ServeStdio(New(ctx))
}
