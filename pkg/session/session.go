// Package session derives and creates the deterministic on-disk layout for
// one orchestrator run: the session directory, its well-known files, and
// the run symlink that marks it active. It also publishes the session path
// to child processes via environment variables so that re-entrant
// `mcp-serve` invocations recover the same session.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentswarm/swarm/pkg/project"
)

const timestampLayout = "20060102_150405"

// Session is one materialized run directory.
type Session struct {
	ID          string
	ProjectSlug string
	Home        string
	Path        string
}

// Home resolves the swarm home directory, expanding CLAUDE_SWARM_HOME or
// falling back to ~/.claude-swarm.
func Home() (string, error) {
	home := os.Getenv(project.SwarmHomeEnv)
	if home == "" {
		home = project.DefaultSwarmHome
	}
	return expandHome(home)
}

func expandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		dir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		if path == "~" {
			return dir, nil
		}
		return filepath.Join(dir, strings.TrimPrefix(path, "~/")), nil
	}
	return path, nil
}

// Slug derives the project slug from an absolute launch directory: path
// separators and colons are collapsed to "+".
func Slug(launchDir string) string {
	replacer := strings.NewReplacer(string(filepath.Separator), "+", ":", "+")
	return replacer.Replace(launchDir)
}

// New allocates and creates a fresh session rooted at launchDir, identified
// by timestamp. It ensures the swarm home's .gitignore guard, creates the
// session directory tree, and publishes the session path and start
// directory via environment variables for this process and its children.
func New(launchDir string, timestamp time.Time) (*Session, error) {
	home, err := Home()
	if err != nil {
		return nil, err
	}
	if err := ensureGitignore(home); err != nil {
		return nil, err
	}

	id := timestamp.UTC().Format(timestampLayout)
	slug := Slug(launchDir)
	path := filepath.Join(home, "sessions", slug, id)

	s := &Session{ID: id, ProjectSlug: slug, Home: home, Path: path}
	if err := s.createDirs(); err != nil {
		return nil, err
	}
	if err := os.WriteFile(s.StartDirectoryPath(), []byte(launchDir), 0o644); err != nil {
		return nil, fmt.Errorf("writing start_directory: %w", err)
	}
	s.publishEnv(launchDir)
	return s, nil
}

// Resume locates an existing session by id or by an explicit path to its
// directory. When given a bare id, it searches every project slug under
// swarm home for a matching session directory.
func Resume(sessionIDOrPath string) (*Session, error) {
	home, err := Home()
	if err != nil {
		return nil, err
	}

	if filepath.IsAbs(sessionIDOrPath) || strings.Contains(sessionIDOrPath, string(filepath.Separator)) {
		info, err := os.Stat(sessionIDOrPath)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("session path does not exist: %s", sessionIDOrPath)
		}
		id := filepath.Base(sessionIDOrPath)
		slug := filepath.Base(filepath.Dir(sessionIDOrPath))
		s := &Session{ID: id, ProjectSlug: slug, Home: home, Path: sessionIDOrPath}
		s.restoreEnv()
		return s, nil
	}

	sessionsDir := filepath.Join(home, "sessions")
	entries, err := os.ReadDir(sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("reading sessions directory: %w", err)
	}
	for _, slugEntry := range entries {
		if !slugEntry.IsDir() {
			continue
		}
		candidate := filepath.Join(sessionsDir, slugEntry.Name(), sessionIDOrPath)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			s := &Session{ID: sessionIDOrPath, ProjectSlug: slugEntry.Name(), Home: home, Path: candidate}
			s.restoreEnv()
			return s, nil
		}
	}
	return nil, fmt.Errorf("no session found with id %q under %s", sessionIDOrPath, sessionsDir)
}

// FromEnv recovers the session a re-entrant mcp-serve invocation was
// launched into, using CLAUDE_SWARM_SESSION_PATH.
func FromEnv() (*Session, error) {
	path := os.Getenv(project.SessionPathEnv)
	if path == "" {
		return nil, fmt.Errorf("%s is not set; mcp-serve must be invoked by the orchestrator", project.SessionPathEnv)
	}
	home, err := Home()
	if err != nil {
		return nil, err
	}
	id := filepath.Base(path)
	slug := filepath.Base(filepath.Dir(path))
	return &Session{ID: id, ProjectSlug: slug, Home: home, Path: path}, nil
}

func (s *Session) createDirs() error {
	for _, dir := range []string{s.Path, s.StatePath(), s.PIDsPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

func (s *Session) publishEnv(launchDir string) {
	os.Setenv(project.SessionPathEnv, s.Path)
	os.Setenv(project.StartDirEnv, launchDir)
}

func (s *Session) restoreEnv() {
	os.Setenv(project.SessionPathEnv, s.Path)
}

func ensureGitignore(home string) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return fmt.Errorf("creating swarm home %s: %w", home, err)
	}
	path := filepath.Join(home, ".gitignore")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte("*\n"), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ConfigPath is the session's copy of the original topology document.
func (s *Session) ConfigPath() string { return filepath.Join(s.Path, "config.yml") }

// StartDirectoryPath records the original launch directory.
func (s *Session) StartDirectoryPath() string { return filepath.Join(s.Path, "start_directory") }

// SessionMetadataPath records the worktree mapping.
func (s *Session) SessionMetadataPath() string {
	return filepath.Join(s.Path, "session_metadata.json")
}

// SwarmConfigPathFile records the absolute path to the source topology.
func (s *Session) SwarmConfigPathFile() string {
	return filepath.Join(s.Path, "swarm_config_path")
}

// InstanceWiringPath is the per-instance MCP wiring document.
func (s *Session) InstanceWiringPath(instanceName string) string {
	return filepath.Join(s.Path, instanceName+".mcp.json")
}

// StatePath is the directory of per-instance state records, or, given an
// instance id, the path to that instance's own record.
func (s *Session) StatePath(instanceID ...string) string {
	if len(instanceID) == 0 {
		return filepath.Join(s.Path, "state")
	}
	return filepath.Join(s.Path, "state", instanceID[0]+".json")
}

// PIDsPath is the directory of tracked-child PID files, or, given a pid,
// the path to that pid's file.
func (s *Session) PIDsPath(pid ...string) string {
	if len(pid) == 0 {
		return filepath.Join(s.Path, "pids")
	}
	return filepath.Join(s.Path, "pids", pid[0])
}

// LogPath is the human-readable session log.
func (s *Session) LogPath() string { return filepath.Join(s.Path, "session.log") }

// LogJSONPath is the JSON-lines session log.
func (s *Session) LogJSONPath() string { return filepath.Join(s.Path, "session.log.json") }

// RunSymlinkPath is the run symlink for this session, active only while
// the session is running.
func (s *Session) RunSymlinkPath() string {
	return filepath.Join(s.Home, "run", s.ID)
}

// CreateRunSymlink points the run symlink at the session directory.
func (s *Session) CreateRunSymlink() error {
	dir := filepath.Dir(s.RunSymlinkPath())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}
	_ = os.Remove(s.RunSymlinkPath())
	if err := os.Symlink(s.Path, s.RunSymlinkPath()); err != nil {
		return fmt.Errorf("creating run symlink: %w", err)
	}
	return nil
}

// RemoveRunSymlink reclaims the run symlink on teardown; the session
// directory itself is preserved.
func (s *Session) RemoveRunSymlink() error {
	if err := os.Remove(s.RunSymlinkPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing run symlink: %w", err)
	}
	return nil
}
