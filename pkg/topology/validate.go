package topology

import (
	"fmt"
	"os"
	"path/filepath"
)

// Resolved is the fully validated, materialized topology: every instance's
// directories resolved to absolute paths and existence-checked.
type Resolved struct {
	Doc       *Document
	Instances map[string]ResolvedInstance
}

// Validate applies every topology invariant in a fixed order:
// top-level shape -> per-instance shape -> provider coherence ->
// path existence -> graph validity (missing edges, then cycles). The first
// failing check raises a *ConfigError and no partial result is returned.
func Validate(doc *Document) (*Resolved, error) {
	if doc.Version != 1 {
		return nil, &ConfigError{Message: fmt.Sprintf("unsupported config version %d: only version 1 is supported", doc.Version)}
	}

	if doc.Swarm.Main == "" {
		return nil, &ConfigError{Message: "swarm.main is required"}
	}
	if _, ok := doc.Swarm.Instances[doc.Swarm.Main]; !ok {
		return nil, &ConfigError{Message: fmt.Sprintf("swarm.main references unknown instance %q", doc.Swarm.Main)}
	}
	if len(doc.Swarm.Instances) == 0 {
		return nil, &ConfigError{Message: "swarm.instances must declare at least one instance"}
	}

	// Per-instance shape: provider coherence and tool-list typing (typing
	// itself was already enforced during decode; here we check the
	// cross-field invariants that need the whole instance).
	for name, inst := range doc.Swarm.Instances {
		if inst.Description == "" {
			return nil, &ConfigError{Message: fmt.Sprintf("instance %q: description is required", name)}
		}
		if len(inst.Directory) == 0 {
			return nil, &ConfigError{Message: fmt.Sprintf("instance %q: at least one directory is required", name)}
		}
		provider := inst.EffectiveProvider()
		if provider != ProviderClaude && provider != ProviderOpenAI {
			return nil, &ConfigError{Message: fmt.Sprintf("instance %q: unknown provider %q", name, inst.Provider)}
		}
		if err := validateOpenAICoherence(name, inst, provider); err != nil {
			return nil, err
		}
		for _, peer := range inst.MCPs {
			if err := validateMCPPeer(name, peer); err != nil {
				return nil, err
			}
		}
	}

	// Path existence.
	resolvedInstances := make(map[string]ResolvedInstance, len(doc.Swarm.Instances))
	for name, inst := range doc.Swarm.Instances {
		dirs := make([]string, 0, len(inst.Directory))
		for _, d := range inst.Directory {
			expanded, err := expandHome(d)
			if err != nil {
				return nil, &ConfigError{Message: fmt.Sprintf("instance %q: %v", name, err)}
			}
			abs := expanded
			if !filepath.IsAbs(abs) {
				abs = filepath.Join(doc.BaseDir, abs)
			}
			info, err := os.Stat(abs)
			if err != nil || !info.IsDir() {
				return nil, &ConfigError{Message: fmt.Sprintf("instance %q: directory does not exist: %s", name, abs)}
			}
			dirs = append(dirs, abs)
		}
		resolvedInstances[name] = ResolvedInstance{
			Instance:    inst,
			Directories: dirs,
			Directory:   dirs[0],
		}
	}

	// Graph validity: missing edges first, then cycles.
	for name, inst := range doc.Swarm.Instances {
		for _, conn := range inst.Connections {
			if _, ok := doc.Swarm.Instances[conn]; !ok {
				return nil, &ConfigError{Message: fmt.Sprintf("instance %q: connection references unknown instance %q", name, conn)}
			}
		}
	}
	if path, found := findCycle(doc.Swarm.Instances); found {
		return nil, errCycle(path)
	}

	return &Resolved{Doc: doc, Instances: resolvedInstances}, nil
}

func validateOpenAICoherence(name string, inst Instance, provider Provider) error {
	isOpenAIField := inst.Temperature != nil || inst.APIVersion != "" || inst.OpenAITokenEnv != "" || inst.BaseURL != ""
	if provider != ProviderOpenAI {
		if isOpenAIField {
			return &ConfigError{Message: fmt.Sprintf("instance %q: openai-only fields set on a %q provider instance", name, provider)}
		}
		return nil
	}
	if inst.APIVersion != "" && inst.APIVersion != APIVersionChatCompletion && inst.APIVersion != APIVersionResponses {
		return &ConfigError{Message: fmt.Sprintf("instance %q: invalid api_version %q", name, inst.APIVersion)}
	}
	envVar := inst.EffectiveOpenAITokenEnv()
	if os.Getenv(envVar) == "" {
		return &ConfigError{Message: fmt.Sprintf("Environment variable '%s' is not set. OpenAI provider instances require an API key.", envVar)}
	}
	return nil
}

func validateMCPPeer(instanceName string, peer MCPPeer) error {
	if peer.Name == "" {
		return &ConfigError{Message: fmt.Sprintf("instance %q: mcp peer missing name", instanceName)}
	}
	switch peer.Type {
	case MCPTypeStdio:
		if peer.Command == "" {
			return &ConfigError{Message: fmt.Sprintf("instance %q: mcp peer %q: stdio type requires command", instanceName, peer.Name)}
		}
	case MCPTypeSSE:
		if peer.URL == "" {
			return &ConfigError{Message: fmt.Sprintf("instance %q: mcp peer %q: sse type requires url", instanceName, peer.Name)}
		}
	default:
		return &ConfigError{Message: fmt.Sprintf("instance %q: mcp peer %q: unknown type %q", instanceName, peer.Name, peer.Type)}
	}
	return nil
}
