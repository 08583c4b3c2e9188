package openai

import "github.com/mark3labs/mcp-go/mcp"

// oaiTool is one entry in a chat/completions request's "tools" array.
type oaiTool struct {
	Type     string              `json:"type"`
	Function oaiFunctionSchema   `json:"function"`
}

type oaiFunctionSchema struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// buildToolSchemas translates every connected peer's tools into the
// provider's function-tool format, qualifying names to avoid collisions.
func buildToolSchemas(peers map[string]*peerConn) []oaiTool {
	var tools []oaiTool
	for _, p := range peers {
		for _, t := range p.tools {
			tools = append(tools, oaiTool{
				Type: "function",
				Function: oaiFunctionSchema{
					Name:        p.qualifiedName(t.Name),
					Description: t.Description,
					Parameters:  toolInputSchema(t),
				},
			})
		}
	}
	return tools
}

func toolInputSchema(t mcp.Tool) any {
	return t.InputSchema
}
