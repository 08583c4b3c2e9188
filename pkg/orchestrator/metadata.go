package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/agentswarm/swarm/pkg/worktree"
)

// SessionMetadata is the persisted worktree mapping for a session,
// session_metadata.json): which directories were remapped to which
// worktrees, per instance, so a restored session rebuilds the same
// directory set without re-resolving git state.
type SessionMetadata struct {
	Enabled  bool                          `json:"enabled"`
	Name     string                        `json:"name,omitempty"`
	Mappings map[string][]worktree.Mapping `json:"mappings"`
}

func loadMetadata(path string) (SessionMetadata, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return SessionMetadata{Mappings: map[string][]worktree.Mapping{}}, nil
	}
	if err != nil {
		return SessionMetadata{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var m SessionMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return SessionMetadata{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if m.Mappings == nil {
		m.Mappings = map[string][]worktree.Mapping{}
	}
	return m, nil
}

func saveMetadata(path string, m SessionMetadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
