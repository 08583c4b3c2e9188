package project

var (
	buildTimestamp string
	gitSHA         string
	version        = "dev"
)

const (
	// Name is the name of this project.
	Name = "swarm"

	// Description is a short description of this project.
	Description = "Orchestrates a tree of AI-agent CLI processes that collaborate over MCP."

	// BinaryName is the executable name re-entrantly invoked as an MCP transport.
	BinaryName = "swarm"

	// SwarmHomeEnv overrides the base directory for all session state.
	SwarmHomeEnv = "CLAUDE_SWARM_HOME"

	// SessionPathEnv is set by the orchestrator before spawning children so that
	// re-entrant invocations recover the same session directory.
	SessionPathEnv = "CLAUDE_SWARM_SESSION_PATH"

	// StartDirEnv carries the original launch directory for restoration.
	StartDirEnv = "CLAUDE_SWARM_START_DIR"

	// DefaultSwarmHome is used when SwarmHomeEnv is unset.
	DefaultSwarmHome = "~/.claude-swarm"
)

// BuildTimestamp returns the build timestamp set at compile time.
func BuildTimestamp() string {
	return buildTimestamp
}

// GitSHA returns the git SHA set at compile time.
func GitSHA() string {
	return gitSHA
}

// SetBuildInfo overrides the build-time metadata. This is called by the cmd
// package to propagate ldflags set on main (via goreleaser or Dockerfile).
func SetBuildInfo(v, commit, date string) {
	if v != "" {
		version = v
	}
	if commit != "" {
		gitSHA = commit
	}
	if date != "" {
		buildTimestamp = date
	}
}

// Version returns the application version set at compile time.
func Version() string {
	return version
}
