package topology

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML accepts either a single scalar or a sequence of scalars.
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var v string
		if err := value.Decode(&v); err != nil {
			return err
		}
		*s = StringList{v}
		return nil
	case yaml.SequenceNode:
		var v []string
		if err := value.Decode(&v); err != nil {
			return fmt.Errorf("directory: %w", err)
		}
		*s = v
		return nil
	default:
		return fmt.Errorf("directory must be a string or a list of strings")
	}
}

// strictStringSlice decodes a YAML node into a []string, rejecting scalars
// and mappings. Tool-list fields must always be arrays.
func strictStringSlice(node *yaml.Node, field string) ([]string, error) {
	if node == nil || node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%s must be an array", field)
	}
	var out []string
	if err := node.Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return out, nil
}

// instanceAlias mirrors Instance but lets us intercept the raw tool-list
// nodes before strict-typing them, and the raw worktree node before
// normalizing it.
type instanceAlias struct {
	Description     string     `yaml:"description"`
	Directory       StringList `yaml:"directory"`
	Model           string     `yaml:"model"`
	Provider        Provider   `yaml:"provider"`
	Connections     []string   `yaml:"connections"`
	AllowedTools    yaml.Node  `yaml:"allowed_tools"`
	Tools           yaml.Node  `yaml:"tools"`
	DisallowedTools yaml.Node  `yaml:"disallowed_tools"`
	MCPs            []MCPPeer  `yaml:"mcps"`
	Prompt          string     `yaml:"prompt"`
	Vibe            *bool      `yaml:"vibe"`
	Worktree        yaml.Node  `yaml:"worktree"`

	Temperature    *float64   `yaml:"temperature"`
	APIVersion     APIVersion `yaml:"api_version"`
	OpenAITokenEnv string     `yaml:"openai_token_env"`
	BaseURL        string     `yaml:"base_url"`
}

// UnmarshalYAML implements strict array typing for tool lists and decodes
// the polymorphic `worktree` field.
func (i *Instance) UnmarshalYAML(value *yaml.Node) error {
	var alias instanceAlias
	if err := value.Decode(&alias); err != nil {
		return err
	}

	allowed, err := strictStringSlice(&alias.AllowedTools, "allowed_tools")
	if err != nil {
		return err
	}
	tools, err := strictStringSlice(&alias.Tools, "tools")
	if err != nil {
		return err
	}
	disallowed, err := strictStringSlice(&alias.DisallowedTools, "disallowed_tools")
	if err != nil {
		return err
	}

	var worktree any
	if alias.Worktree.Kind != 0 {
		switch alias.Worktree.Kind {
		case yaml.ScalarNode:
			var b bool
			if err := alias.Worktree.Decode(&b); err == nil {
				worktree = b
			} else {
				var s string
				if err := alias.Worktree.Decode(&s); err != nil {
					return fmt.Errorf("worktree: %w", err)
				}
				worktree = s
			}
		default:
			return fmt.Errorf("worktree must be a boolean or a string")
		}
	}

	*i = Instance{
		Description:     alias.Description,
		Directory:       alias.Directory,
		Model:           alias.Model,
		Provider:        alias.Provider,
		Connections:     alias.Connections,
		AllowedTools:    allowed,
		Tools:           tools,
		DisallowedTools: disallowed,
		MCPs:            alias.MCPs,
		Prompt:          alias.Prompt,
		Vibe:            alias.Vibe,
		Worktree:        worktree,
		Temperature:     alias.Temperature,
		APIVersion:      alias.APIVersion,
		OpenAITokenEnv:  alias.OpenAITokenEnv,
		BaseURL:         alias.BaseURL,
	}
	return nil
}

// UnmarshalYAML decodes swarm.instances while stamping each Instance.Name
// from its map key, since YAML maps don't otherwise expose the key to the
// value's own UnmarshalYAML.
func (s *Swarm) UnmarshalYAML(value *yaml.Node) error {
	type alias struct {
		Name      string              `yaml:"name"`
		Main      string              `yaml:"main"`
		Before    []string            `yaml:"before"`
		Instances map[string]Instance `yaml:"instances"`
	}
	var a alias
	if err := value.Decode(&a); err != nil {
		return err
	}
	for name, inst := range a.Instances {
		inst.Name = name
		a.Instances[name] = inst
	}
	*s = Swarm{Name: a.Name, Main: a.Main, Before: a.Before, Instances: a.Instances}
	return nil
}

// Load reads and parses the topology document at path. baseDirOverride, if
// non-empty, is used instead of the document's own directory to resolve
// relative instance directories — the restore path supplies the original
// launch directory here so that a restored session resolves paths
// identically to the original run.
func Load(path string, baseDirOverride string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("reading config %s: %v", path, err)}
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("parsing config %s: %v", path, err)}
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	doc.SourcePath = absPath

	baseDir := baseDirOverride
	if baseDir == "" {
		baseDir = filepath.Dir(absPath)
	}
	doc.BaseDir = baseDir

	return &doc, nil
}

// expandHome expands a leading "~" to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding ~: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
	}
	return path, nil
}
