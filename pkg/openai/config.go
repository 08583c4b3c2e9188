// Package openai implements the OpenAI-API-backed agent executor:
// a cached multi-turn conversation that resolves tool calls against the
// instance's own MCP peers (the same wiring document C5 emits for the
// Claude backend) and returns the provider's final text as the result.
package openai

import (
	"github.com/agentswarm/swarm/pkg/claude"
	"github.com/agentswarm/swarm/pkg/topology"
)

// Config is the fixed, per-instance configuration an Executor is built
// from.
type Config struct {
	InstanceName string
	InstanceID   string
	WorkDir      string

	Model              string
	APIVersion         topology.APIVersion
	Temperature        float64
	BaseURL            string
	APIKeyEnv          string
	AppendSystemPrompt string

	// MCPConfigPath is this instance's own wiring file (the same one C5
	// generated), read to discover its declared MCP peers.
	MCPConfigPath string

	// StatePath persists the captured conversation id, mirroring the
	// Claude backend's claude_session_id persistence.
	StatePath string

	// MaxTurns bounds the tool-calling loop; 0 defaults to 10.
	MaxTurns int

	// OnEvent, if set, receives a synthetic claude.StreamMessage per loop
	// turn for logging; reusing that envelope lets a single Logger
	// implementation serve both the Claude and OpenAI backends uniformly.
	OnEvent func(claude.StreamMessage)
}
