// Package orchestrator implements the top-level supervising algorithm
// parse and validate the topology, choose or restore a session,
// install signal handlers, run `before` commands, remap directories into
// worktrees, generate MCP wiring, launch the root agent in the foreground,
// and tear down on exit.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentswarm/swarm/pkg/logging"
	"github.com/agentswarm/swarm/pkg/openai"
	"github.com/agentswarm/swarm/pkg/proctrack"
	"github.com/agentswarm/swarm/pkg/project"
	"github.com/agentswarm/swarm/pkg/session"
	"github.com/agentswarm/swarm/pkg/state"
	"github.com/agentswarm/swarm/pkg/swarmerr"
	"github.com/agentswarm/swarm/pkg/topology"
	"github.com/agentswarm/swarm/pkg/wiring"
	"github.com/agentswarm/swarm/pkg/worktree"
)

// Options carries the parsed `start` subcommand flags.
type Options struct {
	ConfigPath      string
	Vibe            bool
	Prompt          string
	Debug           bool
	SessionID       string // non-empty restores a prior session
	WorktreeEnabled bool
	WorktreeName    string
	Verbose         bool

	// BinaryPath is this orchestrator binary's own path, invoked
	// re-entrantly by generated wiring files. Defaults to project.BinaryName
	// (the binary is expected on PATH).
	BinaryPath string
}

// Run executes the top-level session lifecycle and returns the process exit code.
func Run(opts Options) (int, error) {
	if opts.BinaryPath == "" {
		opts.BinaryPath = project.BinaryName
	}

	startedAt := time.Now()
	restoring := opts.SessionID != ""

	var (
		sess *session.Session
		doc  *topology.Document
		err  error
	)

	if restoring {
		sess, err = session.Resume(opts.SessionID)
		if err != nil {
			return 1, err
		}
		startDirBytes, err := os.ReadFile(sess.StartDirectoryPath())
		if err != nil {
			return 1, fmt.Errorf("reading start directory: %w", err)
		}
		startDir := string(startDirBytes)
		if err := os.Chdir(startDir); err != nil {
			return 1, fmt.Errorf("restoring launch directory %s: %w", startDir, err)
		}
		doc, err = topology.Load(sess.ConfigPath(), startDir)
		if err != nil {
			return 1, err
		}
	} else {
		absConfigPath, absErr := filepath.Abs(opts.ConfigPath)
		if absErr != nil {
			return 1, fmt.Errorf("resolving config path: %w", absErr)
		}
		doc, err = topology.Load(absConfigPath, "")
		if err != nil {
			return 1, err
		}
	}

	// Step 1: validate before any session directory is created, so a
	// rejected topology leaves nothing on disk (S1).
	resolved, err := topology.Validate(doc)
	if err != nil {
		return 1, err
	}

	// Step 2: choose or restore the session path.
	if !restoring {
		launchDir, wdErr := os.Getwd()
		if wdErr != nil {
			return 1, fmt.Errorf("getting working directory: %w", wdErr)
		}
		sess, err = session.New(launchDir, time.Now())
		if err != nil {
			return 1, err
		}
		if err := copyFile(doc.SourcePath, sess.ConfigPath()); err != nil {
			return 1, err
		}
		if err := os.WriteFile(sess.SwarmConfigPathFile(), []byte(doc.SourcePath), 0o644); err != nil {
			return 1, fmt.Errorf("writing swarm_config_path: %w", err)
		}
	}

	// Step 3: signal handlers, cooperative cleanup exactly once.
	ctx, stopSignals := installSignalHandlers()
	defer stopSignals()

	tracker := proctrack.New(sess.PIDsPath())

	// Step 4: `before` commands, new sessions only.
	if !restoring {
		launchDir, _ := os.Getwd()
		if err := runBeforeCommands(doc.Swarm.Before, launchDir); err != nil {
			return 1, err
		}
	}

	// Step 5: worktree remapping.
	metadataPath := sess.SessionMetadataPath()
	metadata, err := applyWorktrees(resolved, sess, opts, restoring, metadataPath)
	if err != nil {
		return 1, err
	}

	// Instance ids and, on restore, each instance's previously captured
	// claude_session_id, threaded by instance name.
	instanceIDs := make(map[string]string, len(resolved.Instances))
	claudeSessionIDs := map[string]string{}
	if restoring {
		claudeSessionIDs = loadClaudeSessionIDs(sess.StatePath())
	}
	for name := range resolved.Instances {
		instanceIDs[name] = wiring.NewInstanceID(name)
	}
	for name, id := range instanceIDs {
		rec := state.Record{InstanceName: name, InstanceID: id, Status: state.StatusIdle, ClaudeSessionID: claudeSessionIDs[name]}
		_ = state.Save(sess.StatePath(id), rec)
	}

	// Step 6: wiring generation, against the post-worktree instance configs.
	gen := &wiring.Generator{
		BinaryPath:       opts.BinaryPath,
		SessionDir:       sess.Path,
		InstanceIDs:      instanceIDs,
		ClaudeSessionIDs: claudeSessionIDs,
	}
	docs, err := gen.Generate(resolved)
	if err != nil {
		return 1, err
	}
	if err := wiring.Write(sess.Path, docs); err != nil {
		return 1, err
	}

	// Step 7: run symlink.
	if err := sess.CreateRunSymlink(); err != nil {
		return 1, err
	}

	// Step 8: launch the root agent in the foreground.
	rootName := resolved.Doc.Swarm.Main
	rootInst := resolved.Instances[rootName]
	exitCode, runErr := launchRoot(ctx, rootInst, gen.MCPConfigPath(rootName), claudeSessionIDs[rootName], opts, tracker)

	// Step 9: teardown.
	teardown(sess, rootName, tracker, metadata, startedAt)

	return exitCode, runErr
}

// launchRoot dispatches to the Claude or OpenAI root launcher per the root
// instance's effective provider.
func launchRoot(ctx context.Context, rootInst topology.ResolvedInstance, mcpConfigPath, resume string, opts Options, tracker *proctrack.Tracker) (int, error) {
	switch rootInst.EffectiveProvider() {
	case topology.ProviderOpenAI:
		cfg := openai.Config{
			InstanceName:       rootInst.Name,
			WorkDir:            rootInst.Directory,
			Model:              rootInst.EffectiveModel(),
			APIVersion:         rootInst.EffectiveAPIVersion(),
			Temperature:        rootInst.EffectiveTemperature(),
			BaseURL:            rootInst.BaseURL,
			APIKeyEnv:          rootInst.EffectiveOpenAITokenEnv(),
			AppendSystemPrompt: rootInst.Prompt,
			MCPConfigPath:      mcpConfigPath,
		}
		return runRootOpenAI(ctx, cfg, opts.Prompt)
	default:
		return runRootClaude(ctx, rootInst, mcpConfigPath, resume, opts.Prompt, opts.Vibe || rootInst.IsVibe(), tracker)
	}
}

// copyFile copies src to dst, creating dst's parent directory if needed.
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return nil
}

// loadClaudeSessionIDs reads every state record under stateDir and indexes
// each instance's previously captured claude_session_id by instance name.
func loadClaudeSessionIDs(stateDir string) map[string]string {
	out := map[string]string{}
	entries, err := os.ReadDir(stateDir)
	if err != nil {
		return out
	}
	for _, entry := range entries {
		rec, err := state.Load(filepath.Join(stateDir, entry.Name()))
		if err != nil || rec.InstanceName == "" {
			continue
		}
		out[rec.InstanceName] = rec.ClaudeSessionID
	}
	return out
}

// applyWorktrees runs C4 over every instance's directories when worktree
// mode is active (CLI-wide flag or a per-instance `worktree:` override),
// mutating resolved.Instances in place, and persists/reloads
// session_metadata.json.
func applyWorktrees(resolved *topology.Resolved, sess *session.Session, opts Options, restoring bool, metadataPath string) (SessionMetadata, error) {
	if restoring {
		metadata, err := loadMetadata(metadataPath)
		if err != nil {
			return metadata, err
		}
		for name, mappings := range metadata.Mappings {
			inst, ok := resolved.Instances[name]
			if !ok {
				continue
			}
			dirs := make([]string, len(mappings))
			for i, m := range mappings {
				dirs[i] = m.WorktreeDir
			}
			inst.Directories = dirs
			inst.Directory = dirs[0]
			resolved.Instances[name] = inst
		}
		return metadata, nil
	}

	metadata := SessionMetadata{Mappings: map[string][]worktree.Mapping{}}
	anyEnabled := opts.WorktreeEnabled
	mgr := worktree.New(sess.Home, sess.ID)

	for name, inst := range resolved.Instances {
		spec := inst.WorktreeSetting()
		enabled := opts.WorktreeEnabled || spec.Enabled
		if !enabled {
			continue
		}
		anyEnabled = true

		name2 := spec.Name
		if name2 == "" {
			name2 = opts.WorktreeName
		}
		if name2 == "" {
			name2 = "worktree-" + sess.ID
		}

		mappings := make([]worktree.Mapping, len(inst.Directories))
		dirs := make([]string, len(inst.Directories))
		for i, dir := range inst.Directories {
			m, err := mgr.Resolve(dir, name2)
			if err != nil {
				return metadata, fmt.Errorf("resolving worktree for instance %q: %w", name, err)
			}
			mappings[i] = m
			dirs[i] = m.WorktreeDir
		}
		inst.Directories = dirs
		inst.Directory = dirs[0]
		resolved.Instances[name] = inst
		metadata.Mappings[name] = mappings
	}

	metadata.Enabled = anyEnabled
	metadata.Name = opts.WorktreeName
	if err := saveMetadata(metadataPath, metadata); err != nil {
		return metadata, err
	}
	return metadata, nil
}

// teardown runs step 9: worktree cleanup with safety checks, tracked-child
// termination, run-symlink removal, and the cost-summary write. The
// session directory itself is preserved.
func teardown(sess *session.Session, rootInstanceName string, tracker *proctrack.Tracker, metadata SessionMetadata, startedAt time.Time) {
	for name, mappings := range metadata.Mappings {
		for _, m := range mappings {
			if !m.IsVCS {
				continue
			}
			repoRoot := m.OriginalDir
			if err := worktree.Remove(repoRoot, m); err != nil {
				if err == worktree.ErrNotClean {
					warning := &swarmerr.CleanupWarning{Message: fmt.Sprintf("instance %s: worktree %s left in place: %v", name, m.WorktreeDir, err)}
					fmt.Fprintln(os.Stdout, warning.Error())
				} else {
					fmt.Fprintf(os.Stderr, "instance %s: worktree cleanup: %v\n", name, err)
				}
			}
		}
	}

	if err := tracker.CleanupAll(); err != nil {
		fmt.Fprintf(os.Stderr, "process cleanup: %v\n", err)
	}

	summary, err := logging.AggregateCost(sess.LogJSONPath(), rootInstanceName)
	if err == nil {
		summary.DurationSeconds = time.Since(startedAt).Seconds()
		_ = logging.WriteSessionSummary(filepath.Join(sess.Path, "session_summary.json"), summary)
	}

	if err := sess.RemoveRunSymlink(); err != nil {
		fmt.Fprintf(os.Stderr, "removing run symlink: %v\n", err)
	}
}
