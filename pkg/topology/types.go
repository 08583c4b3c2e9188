// Package topology parses and validates the declarative swarm document:
// the set of agent instances, their connections, and the per-instance
// provider/tooling configuration that the rest of the orchestrator
// materializes at run time.
package topology

// Provider identifies which backend an instance's agent executor uses.
type Provider string

const (
	ProviderClaude Provider = "claude"
	ProviderOpenAI Provider = "openai"
)

// APIVersion selects the OpenAI wire protocol an instance speaks.
type APIVersion string

const (
	APIVersionChatCompletion APIVersion = "chat_completion"
	APIVersionResponses      APIVersion = "responses"
)

// MCPType identifies the transport of an externally declared MCP peer.
type MCPType string

const (
	MCPTypeStdio MCPType = "stdio"
	MCPTypeSSE   MCPType = "sse"
)

// MCPPeer is an external MCP server an instance declares in its own `mcps` list.
type MCPPeer struct {
	Name    string            `yaml:"name"`
	Type    MCPType           `yaml:"type"`
	Command string            `yaml:"command,omitempty"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
	URL     string            `yaml:"url,omitempty"`
}

// Instance is one node of the swarm, as authored in the document.
type Instance struct {
	Name string `yaml:"-"`

	Description      string   `yaml:"description"`
	Directory        StringList `yaml:"directory"`
	Model            string   `yaml:"model"`
	Provider         Provider `yaml:"provider"`
	Connections      []string `yaml:"connections"`
	AllowedTools     []string `yaml:"allowed_tools"`
	Tools            []string `yaml:"tools"` // alias for allowed_tools
	DisallowedTools  []string `yaml:"disallowed_tools"`
	MCPs             []MCPPeer `yaml:"mcps"`
	Prompt           string   `yaml:"prompt"`
	Vibe             *bool    `yaml:"vibe"`
	Worktree         any      `yaml:"worktree"` // bool | string | nil

	// OpenAI-only fields.
	Temperature    *float64   `yaml:"temperature"`
	APIVersion     APIVersion `yaml:"api_version"`
	OpenAITokenEnv string     `yaml:"openai_token_env"`
	BaseURL        string     `yaml:"base_url"`
}

// StringList unmarshals either a single YAML scalar or a sequence into a []string.
type StringList []string

// Swarm is the top-level `swarm:` block.
type Swarm struct {
	Name      string              `yaml:"name"`
	Main      string              `yaml:"main"`
	Before    []string            `yaml:"before"`
	Instances map[string]Instance `yaml:"instances"`
}

// Document is the full parsed topology document.
type Document struct {
	Version int   `yaml:"version"`
	Swarm   Swarm `yaml:"swarm"`

	// BaseDir is the directory relative paths are resolved against. It is
	// the directory containing the document unless an explicit override was
	// supplied (the restore path threads the original start_directory
	// through here).
	BaseDir string `yaml:"-"`

	// SourcePath is the absolute path to the document on disk, if loaded
	// from a file.
	SourcePath string `yaml:"-"`
}

// ResolvedInstance is the materialized, validated form of an Instance: the
// primary directory has been split out, and the name is always set.
type ResolvedInstance struct {
	Instance
	Directories []string // absolute, at least one element
	Directory   string   // Directories[0]
}

// AllowedToolNames returns allowed_tools, falling back to the `tools` alias.
func (i Instance) AllowedToolNames() []string {
	if len(i.AllowedTools) > 0 {
		return i.AllowedTools
	}
	return i.Tools
}

// IsVibe reports whether the instance runs in permission-skipping mode.
// Default is false for claude, forced true for openai.
func (i Instance) IsVibe() bool {
	if i.Vibe != nil {
		return *i.Vibe
	}
	return i.Provider == ProviderOpenAI
}

// EffectiveModel returns the configured model, defaulting to "sonnet".
func (i Instance) EffectiveModel() string {
	if i.Model != "" {
		return i.Model
	}
	return "sonnet"
}

// EffectiveProvider defaults to claude.
func (i Instance) EffectiveProvider() Provider {
	if i.Provider == "" {
		return ProviderClaude
	}
	return i.Provider
}

// EffectiveTemperature defaults to 0.3.
func (i Instance) EffectiveTemperature() float64 {
	if i.Temperature != nil {
		return *i.Temperature
	}
	return 0.3
}

// EffectiveAPIVersion defaults to chat_completion.
func (i Instance) EffectiveAPIVersion() APIVersion {
	if i.APIVersion != "" {
		return i.APIVersion
	}
	return APIVersionChatCompletion
}

// EffectiveOpenAITokenEnv defaults to OPENAI_API_KEY.
func (i Instance) EffectiveOpenAITokenEnv() string {
	if i.OpenAITokenEnv != "" {
		return i.OpenAITokenEnv
	}
	return "OPENAI_API_KEY"
}

// WorktreeSpec describes the instance's `worktree:` field, normalized.
type WorktreeSpec struct {
	// Enabled is false when the field is absent or explicitly `false`.
	Enabled bool
	// Name is non-empty only when the field is a non-empty string.
	Name string
}

// WorktreeSetting normalizes the raw `worktree` field.
func (i Instance) WorktreeSetting() WorktreeSpec {
	switch v := i.Worktree.(type) {
	case bool:
		return WorktreeSpec{Enabled: v}
	case string:
		if v == "" {
			return WorktreeSpec{Enabled: false}
		}
		return WorktreeSpec{Enabled: true, Name: v}
	default:
		return WorktreeSpec{Enabled: false}
	}
}
