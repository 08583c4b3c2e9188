package cmd

import "testing"

func TestNewStartCmd_ConfigFlagDefaultIsEmpty(t *testing.T) {
	cmd := newStartCmd()
	cmd.SetArgs([]string{"--config", ""})

	flag := cmd.Flags().Lookup("config")
	if flag == nil {
		t.Fatal("expected a --config flag")
	}
	if flag.DefValue != "" {
		t.Errorf("--config default = %q, want empty (start.go falls back to swarm.yml itself)", flag.DefValue)
	}
}

func TestNewStartCmd_WorktreeFlagTakesOptionalName(t *testing.T) {
	cmd := newStartCmd()
	flag := cmd.Flags().Lookup("worktree")
	if flag == nil {
		t.Fatal("expected a --worktree flag")
	}
	if flag.NoOptDefVal == "" {
		t.Error("expected --worktree to have a NoOptDefVal so it can be passed bare")
	}
	if flag.Shorthand != "w" {
		t.Errorf("--worktree shorthand = %q, want %q", flag.Shorthand, "w")
	}
}

func TestNewStartCmd_AcceptsAtMostOnePositionalArg(t *testing.T) {
	cmd := newStartCmd()
	if err := cmd.Args(cmd, []string{"a.yml", "b.yml"}); err == nil {
		t.Error("expected an error for two positional arguments")
	}
	if err := cmd.Args(cmd, []string{"a.yml"}); err != nil {
		t.Errorf("expected a single positional argument to be accepted, got %v", err)
	}
}
