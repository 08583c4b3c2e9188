package orchestrator

import (
	"os"
	"path/filepath"
	"strconv"
)

// TrackedProcess is one live sub-process entry read from the session's
// pids directory, exposed as a seam for an external `ps`-equivalent tool
// (outside this module's CLI surface) to build on.
type TrackedProcess struct {
	PID   int
	Label string
}

// ListTrackedProcesses reads every pids/<pid> file under pidsDir. A
// missing directory yields an empty list, not an error.
func ListTrackedProcesses(pidsDir string) ([]TrackedProcess, error) {
	entries, err := os.ReadDir(pidsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []TrackedProcess
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		label, err := os.ReadFile(filepath.Join(pidsDir, entry.Name()))
		if err != nil {
			continue
		}
		out = append(out, TrackedProcess{PID: pid, Label: string(label)})
	}
	return out, nil
}
