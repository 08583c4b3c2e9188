package orchestrator

import (
	"errors"
	"os/exec"
	"strings"

	"github.com/agentswarm/swarm/pkg/swarmerr"
)

// runBeforeCommands executes each command sequentially in dir, in a shell;
// the first non-zero exit aborts the launch. Only run for
// new sessions, before any child process exists.
func runBeforeCommands(commands []string, dir string) error {
	for _, c := range commands {
		cmd := exec.Command("sh", "-c", c)
		cmd.Dir = dir
		output, err := cmd.CombinedOutput()
		if err != nil {
			exitCode := 1
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				exitCode = exitErr.ExitCode()
			}
			return &swarmerr.BeforeCommandError{Command: c, ExitCode: exitCode, Output: strings.TrimSpace(string(output))}
		}
	}
	return nil
}
