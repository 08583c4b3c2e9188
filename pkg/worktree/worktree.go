// Package worktree remaps instance directories to isolated git worktrees
// for the duration of a session, so that concurrent agents never edit the
// same checkout. Cleanup is safety-gated: a worktree with uncommitted
// changes or unpushed commits is left intact.
package worktree

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Mapping records, for one original directory, where it was remapped to.
type Mapping struct {
	OriginalDir string `json:"original_dir"`
	WorktreeDir string `json:"worktree_dir"`
	Branch      string `json:"branch"`
	IsVCS       bool   `json:"is_vcs"`
}

// Manager creates and reuses worktrees under <swarmHome>/worktrees/<sessionID>/.
type Manager struct {
	swarmHome string
	sessionID string
}

// New returns a Manager rooted at the given session's worktree area.
func New(swarmHome, sessionID string) *Manager {
	return &Manager{swarmHome: swarmHome, sessionID: sessionID}
}

// IsGitRepo reports whether dir is inside a git repository.
func IsGitRepo(dir string) bool {
	cmd := exec.Command("git", "-C", dir, "rev-parse", "--git-dir")
	return cmd.Run() == nil
}

func repoRoot(dir string) (string, error) {
	cmd := exec.Command("git", "-C", dir, "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

func repoHash(absRepoPath string) string {
	sum := sha256.Sum256([]byte(absRepoPath))
	return hex.EncodeToString(sum[:])[:8]
}

func branchExists(repoDir, branch string) bool {
	cmd := exec.Command("git", "-C", repoDir, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return cmd.Run() == nil
}

func worktreeExists(repoDir, worktreePath string) bool {
	cmd := exec.Command("git", "-C", repoDir, "worktree", "list", "--porcelain")
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	target, err := filepath.Abs(worktreePath)
	if err != nil {
		target = worktreePath
	}
	for _, line := range strings.Split(string(output), "\n") {
		if strings.HasPrefix(line, "worktree ") {
			if strings.TrimPrefix(line, "worktree ") == target {
				return true
			}
		}
	}
	return false
}

// Resolve remaps dir to its worktree path for name, creating or reusing the
// underlying git worktree. Non-VCS directories pass through unchanged. The
// reuse key is (absolute-repo-path, worktree-name); path hashing only keeps
// the external directory name short and collision-resistant.
func (m *Manager) Resolve(dir, name string) (Mapping, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return Mapping{}, fmt.Errorf("resolving %s: %w", dir, err)
	}

	if !IsGitRepo(absDir) {
		return Mapping{OriginalDir: absDir, WorktreeDir: absDir, IsVCS: false}, nil
	}

	root, err := repoRoot(absDir)
	if err != nil {
		return Mapping{}, err
	}

	worktreeDir := filepath.Join(m.swarmHome, "worktrees", m.sessionID, filepath.Base(root)+"-"+repoHash(root), name)

	if worktreeExists(root, worktreeDir) {
		return Mapping{OriginalDir: absDir, WorktreeDir: worktreeDir, Branch: name, IsVCS: true}, nil
	}

	if err := os.MkdirAll(filepath.Dir(worktreeDir), 0o755); err != nil {
		return Mapping{}, fmt.Errorf("creating worktree parent: %w", err)
	}

	var cmd *exec.Cmd
	if branchExists(root, name) {
		cmd = exec.Command("git", "-C", root, "worktree", "add", worktreeDir, name)
	} else {
		cmd = exec.Command("git", "-C", root, "worktree", "add", "-b", name, worktreeDir)
	}
	if output, err := cmd.CombinedOutput(); err != nil {
		return Mapping{}, fmt.Errorf("creating worktree %s: %s: %w", worktreeDir, strings.TrimSpace(string(output)), err)
	}

	return Mapping{OriginalDir: absDir, WorktreeDir: worktreeDir, Branch: name, IsVCS: true}, nil
}

// HasUncommittedChanges reports whether dir's working tree has any
// modifications, staged or not.
func HasUncommittedChanges(dir string) (bool, error) {
	cmd := exec.Command("git", "-C", dir, "status", "--porcelain")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return false, fmt.Errorf("git status %s: %s: %w", dir, strings.TrimSpace(string(output)), err)
	}
	return strings.TrimSpace(string(output)) != "", nil
}

// HasUnpushedCommits reports whether branch in dir has commits its upstream
// does not. A branch with no configured upstream is treated as unpushed,
// since there is nowhere its history is preserved.
func HasUnpushedCommits(dir, branch string) (bool, error) {
	upstreamCmd := exec.Command("git", "-C", dir, "rev-parse", "--abbrev-ref", branch+"@{upstream}")
	if err := upstreamCmd.Run(); err != nil {
		return true, nil
	}
	cmd := exec.Command("git", "-C", dir, "rev-list", "--count", branch+"@{upstream}.."+branch)
	output, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("git rev-list %s: %w", dir, err)
	}
	return strings.TrimSpace(string(output)) != "0", nil
}

// ErrNotClean is returned by Remove when the worktree has uncommitted
// changes or unpushed commits and was therefore left intact.
var ErrNotClean = errors.New("worktree has uncommitted changes or unpushed commits")

// Remove deletes the worktree at m.WorktreeDir iff it is clean: no
// uncommitted changes and no unpushed commits. Otherwise it returns
// ErrNotClean and leaves the worktree in place; the caller is expected to
// log this as a CleanupWarning.
func Remove(repoRootDir string, m Mapping) error {
	if !m.IsVCS {
		return nil
	}
	dirty, err := HasUncommittedChanges(m.WorktreeDir)
	if err != nil {
		return err
	}
	unpushed, err := HasUnpushedCommits(m.WorktreeDir, m.Branch)
	if err != nil {
		return err
	}
	if dirty || unpushed {
		return ErrNotClean
	}

	cmd := exec.Command("git", "-C", repoRootDir, "worktree", "remove", m.WorktreeDir)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("removing worktree %s: %s: %w", m.WorktreeDir, strings.TrimSpace(string(output)), err)
	}

	// Remove the now-empty enclosing <repo-basename>-<hash> directory, if empty.
	parent := filepath.Dir(m.WorktreeDir)
	entries, err := os.ReadDir(parent)
	if err == nil && len(entries) == 0 {
		_ = os.Remove(parent)
	}
	return nil
}
