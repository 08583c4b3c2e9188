package orchestrator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/agentswarm/swarm/pkg/agent"
	"github.com/agentswarm/swarm/pkg/claude"
	"github.com/agentswarm/swarm/pkg/openai"
	"github.com/agentswarm/swarm/pkg/proctrack"
	"github.com/agentswarm/swarm/pkg/topology"
	"github.com/agentswarm/swarm/pkg/wiring"
)

// claudeBinary is the Claude CLI executable name; tests reassign it to the
// path of a fake script.
var claudeBinary = "claude"

// runRootClaude launches the root instance's Claude CLI in the foreground,
// attached to the user's terminal, or running one non-interactive turn
// when prompt is set. It returns the process's exit code.
func runRootClaude(ctx context.Context, inst topology.ResolvedInstance, mcpConfigPath, resume, prompt string, vibe bool, tracker *proctrack.Tracker) (int, error) {
	o := claude.Options{
		Model:              inst.EffectiveModel(),
		AppendSystemPrompt: inst.Prompt,
		MCPConfigPath:      mcpConfigPath,
		ExtraDirs:          inst.Directories[1:],
		Vibe:               vibe,
		Resume:             resume,
	}
	if !vibe {
		o.AllowedTools = wiring.AllowedToolsForInstance(inst)
		o.DisallowedTools = inst.DisallowedTools
	}

	cmd := exec.CommandContext(ctx, claudeBinary, o.RootArgs(prompt)...)
	cmd.Dir = inst.Directory
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return 1, fmt.Errorf("starting root agent: %w", err)
	}
	if tracker != nil {
		_ = tracker.Track(cmd.Process.Pid, fmt.Sprintf("%s (claude, root)", inst.Name))
	}

	err := cmd.Wait()
	if tracker != nil {
		tracker.Untrack(cmd.Process.Pid)
	}
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 1, err
}

// runRootOpenAI drives the OpenAI tool-calling loop directly for the root
// instance: one turn when prompt is set, otherwise a line-oriented REPL
// reading prompts from stdin until it closes (the "no prompt supplied"
// case seeds a minimal ready-to-start continuation).
func runRootOpenAI(ctx context.Context, cfg openai.Config, prompt string) (int, error) {
	executor := openai.New(cfg)
	defer executor.Close()

	if prompt != "" {
		result, err := executor.Execute(ctx, prompt, agent.RunOptions{})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1, nil
		}
		fmt.Println(result.Text)
		return 0, nil
	}

	seed := "I am ready to start."
	if cfg.AppendSystemPrompt != "" {
		seed = cfg.AppendSystemPrompt + " I am ready to start."
	}
	result, err := executor.Execute(ctx, seed, agent.RunOptions{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	} else {
		fmt.Println(result.Text)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		result, err := executor.Execute(ctx, line, agent.RunOptions{})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		fmt.Println(result.Text)
	}
	return 0, nil
}
