// Package wiring generates the per-instance MCP configuration documents
// that materialize every edge of the topology graph: one stdio server
// entry per outbound connection, re-entrantly invoking this binary in
// mcp-serve mode, plus the instance's own externally declared MCP peers.
package wiring

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/agentswarm/swarm/pkg/topology"
)

// ServerEntry is one mcpServers value: either a re-entrant stdio peer
// (this binary, mcp-serve mode) or an externally declared stdio/sse peer.
type ServerEntry struct {
	Type    string            `json:"type"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
}

// Document is one instance's wiring file.
type Document struct {
	MCPServers   map[string]ServerEntry `json:"mcpServers"`
	InstanceName string                 `json:"instance_name"`
	InstanceID   string                 `json:"instance_id"`
}

// NewInstanceID mints a fresh "<name>_<8 hex>" instance id.
func NewInstanceID(name string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return name + "_" + id[:8]
}

// EdgeArgs describes one outbound connection's re-entrant mcp-serve
// invocation, independent of how it's finally rendered to a string slice,
// so that callers (tests, the orchestrator) can inspect it structurally.
type EdgeArgs struct {
	CalleeName        string
	Directory         string
	ExtraDirs         []string
	Model             string
	Prompt            string
	Description       string
	AllowedTools      []string
	DisallowedTools   []string
	MCPConfigPath     string
	CallingInstance   string
	CallingInstanceID string
	InstanceID        string
	ClaudeSessionID   string
	Vibe              bool
}

// Render builds the args vector for a re-entrant `mcp-serve` invocation, in
// the order fixed by the wiring file format.
func (e EdgeArgs) Render() []string {
	args := []string{"mcp-serve", "--name", e.CalleeName, "--directory", e.Directory}
	for _, d := range e.ExtraDirs {
		args = append(args, "--add-dir", d)
	}
	args = append(args, "--model", e.Model, "--prompt", e.Prompt, "--description", e.Description)
	if len(e.AllowedTools) > 0 {
		args = append(args, "--allowed-tools", strings.Join(e.AllowedTools, ","))
	}
	if len(e.DisallowedTools) > 0 {
		args = append(args, "--disallowed-tools", strings.Join(e.DisallowedTools, ","))
	}
	args = append(args, "--mcp-config-path", e.MCPConfigPath,
		"--calling-instance", e.CallingInstance,
		"--calling-instance-id", e.CallingInstanceID,
		"--instance-id", e.InstanceID)
	if e.ClaudeSessionID != "" {
		args = append(args, "--claude-session-id", e.ClaudeSessionID)
	}
	if e.Vibe {
		args = append(args, "--vibe")
	}
	return args
}

// Generator builds wiring documents for every instance in a resolved
// topology.
type Generator struct {
	BinaryPath  string            // the orchestrator binary, invoked re-entrantly
	SessionDir  string            // session directory, where per-instance wiring files live
	InstanceIDs map[string]string // name -> instance_id, stable for the whole session
	// ClaudeSessionIDs carries, on restoration, each instance's previously
	// captured claude_session_id so that restored callees resume.
	ClaudeSessionIDs map[string]string
}

// MCPConfigPath returns the path of instance name's own wiring file.
func (g *Generator) MCPConfigPath(name string) string {
	return g.SessionDir + "/" + name + ".mcp.json"
}

// Generate builds the wiring document for every instance in resolved, keyed
// by instance name. It does not write them; Write does.
func (g *Generator) Generate(resolved *topology.Resolved) (map[string]*Document, error) {
	docs := make(map[string]*Document, len(resolved.Instances))

	for name, inst := range resolved.Instances {
		doc := &Document{
			MCPServers:   map[string]ServerEntry{},
			InstanceName: name,
			InstanceID:   g.InstanceIDs[name],
		}

		for _, calleeName := range inst.Connections {
			callee := resolved.Instances[calleeName]
			edge := EdgeArgs{
				CalleeName:        calleeName,
				Directory:         callee.Directory,
				ExtraDirs:         callee.Directories[1:],
				Model:             callee.EffectiveModel(),
				Prompt:            callee.Prompt,
				Description:       callee.Description,
				MCPConfigPath:     g.MCPConfigPath(calleeName),
				CallingInstance:   name,
				CallingInstanceID: g.InstanceIDs[name],
				InstanceID:        g.InstanceIDs[calleeName],
				ClaudeSessionID:   g.ClaudeSessionIDs[calleeName],
				Vibe:              callee.IsVibe(),
			}
			if !callee.IsVibe() {
				edge.AllowedTools = allowedToolsWithPeers(callee)
				edge.DisallowedTools = callee.DisallowedTools
			}

			doc.MCPServers[calleeName] = ServerEntry{
				Type:    "stdio",
				Command: g.BinaryPath,
				Args:    edge.Render(),
			}
		}

		for _, peer := range inst.MCPs {
			doc.MCPServers[peer.Name] = externalPeerEntry(peer)
		}

		docs[name] = doc
	}

	return docs, nil
}

// AllowedToolsForInstance is the instance's allowed_tools concatenated with
// one mcp__<peer> entry per outbound connection. Exported
// so the orchestrator can apply the identical rule when launching the root
// instance's own CLI process, which is not itself a wiring-generated edge.
func AllowedToolsForInstance(inst topology.ResolvedInstance) []string {
	return allowedToolsWithPeers(inst)
}

func allowedToolsWithPeers(inst topology.ResolvedInstance) []string {
	tools := append([]string(nil), inst.AllowedToolNames()...)
	for _, conn := range inst.Connections {
		tools = append(tools, "mcp__"+conn)
	}
	return tools
}

func externalPeerEntry(peer topology.MCPPeer) ServerEntry {
	switch peer.Type {
	case topology.MCPTypeSSE:
		return ServerEntry{Type: "sse", URL: peer.URL}
	default:
		return ServerEntry{Type: "stdio", Command: peer.Command, Args: peer.Args, Env: peer.Env}
	}
}

// ReadDocument loads a previously written wiring file, e.g. for the OpenAI
// backend to enumerate its own declared MCP peers.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading wiring file %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing wiring file %s: %w", path, err)
	}
	return &doc, nil
}

// Write serializes and writes every generated document to its
// "<instance>.mcp.json" path under the session directory.
func Write(sessionDir string, docs map[string]*Document) error {
	for name, doc := range docs {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding wiring for %s: %w", name, err)
		}
		path := sessionDir + "/" + name + ".mcp.json"
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing wiring file %s: %w", path, err)
		}
	}
	return nil
}

// instanceIDSuffix is exposed for tests asserting the "<name>_<8hex>" shape.
func instanceIDSuffix(id string) (string, bool) {
	idx := strings.LastIndex(id, "_")
	if idx < 0 {
		return "", false
	}
	suffix := id[idx+1:]
	if len(suffix) != 8 {
		return "", false
	}
	if _, err := strconv.ParseUint(suffix, 16, 32); err != nil {
		return "", false
	}
	return suffix, true
}
