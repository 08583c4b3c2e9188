package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentswarm/swarm/pkg/wiring"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// peerConn is one connected MCP peer, with its tool list cached at connect
// time ("starts a co-process ... enumerates its tools").
type peerConn struct {
	name   string
	client *client.Client
	tools  []mcp.Tool
}

// connectPeers reads the instance's own wiring document and connects to
// every declared MCP server (both re-entrant sub-agent edges and externally
// declared peers — both are plain mcpServers entries from this executor's
// point of view).
func connectPeers(ctx context.Context, mcpConfigPath string) (map[string]*peerConn, error) {
	if mcpConfigPath == "" {
		return map[string]*peerConn{}, nil
	}

	doc, err := wiring.ReadDocument(mcpConfigPath)
	if err != nil {
		return nil, err
	}

	peers := make(map[string]*peerConn, len(doc.MCPServers))
	for name, entry := range doc.MCPServers {
		c, err := dialPeer(ctx, entry)
		if err != nil {
			return nil, fmt.Errorf("connecting to peer %q: %w", name, err)
		}

		toolsResult, err := c.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			return nil, fmt.Errorf("listing tools for peer %q: %w", name, err)
		}

		peers[name] = &peerConn{name: name, client: c, tools: toolsResult.Tools}
	}

	return peers, nil
}

func dialPeer(ctx context.Context, entry wiring.ServerEntry) (*client.Client, error) {
	var (
		c   *client.Client
		err error
	)

	switch entry.Type {
	case "sse":
		c, err = client.NewSSEMCPClient(entry.URL)
	default:
		env := make([]string, 0, len(entry.Env))
		for k, v := range entry.Env {
			env = append(env, k+"="+v)
		}
		c, err = client.NewStdioMCPClient(entry.Command, env, entry.Args...)
	}
	if err != nil {
		return nil, err
	}

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{Name: "swarm", Version: "1.0.0"}
	if _, err := c.Initialize(ctx, initRequest); err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

// closeAll disconnects every peer; errors are ignored since this runs
// during teardown.
func closeAll(peers map[string]*peerConn) {
	for _, p := range peers {
		_ = p.client.Close()
	}
}

// qualifiedName returns the fully-qualified "<peer>__<tool>" name of one of
// this peer's tools, avoiding collisions between peers that expose the same
// bare tool name.
func (p *peerConn) qualifiedName(toolName string) string {
	return sanitizeName(p.name) + "__" + toolName
}

func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// findTool resolves a qualified tool name back to its peer and bare name.
func findTool(peers map[string]*peerConn, qualifiedName string) (*peerConn, string, bool) {
	for _, p := range peers {
		prefix := p.qualifiedName("")
		if strings.HasPrefix(qualifiedName, prefix) {
			bare := strings.TrimPrefix(qualifiedName, prefix)
			for _, t := range p.tools {
				if t.Name == bare {
					return p, bare, true
				}
			}
		}
	}
	return nil, "", false
}

// callTool invokes bareName on p and returns its text content, or the tool
// error message on failure (the provider surfaces it as a tool result, not
// a transport error — the loop continues so the model can react to it).
func callTool(ctx context.Context, p *peerConn, bareName string, args map[string]any) string {
	req := mcp.CallToolRequest{}
	req.Params.Name = bareName
	req.Params.Arguments = args

	result, err := p.client.CallTool(ctx, req)
	if err != nil {
		return fmt.Sprintf("tool call failed: %v", err)
	}

	var out strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			out.WriteString(tc.Text)
		}
	}
	if result.IsError && out.Len() == 0 {
		return "tool reported an error"
	}
	return out.String()
}

// parseArguments decodes a JSON arguments string into a map, tolerating an
// empty string (no arguments).
func parseArguments(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{}
	}
	return args
}
