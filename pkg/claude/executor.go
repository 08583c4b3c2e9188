package claude

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/agentswarm/swarm/pkg/agent"
	"github.com/agentswarm/swarm/pkg/state"
	"github.com/agentswarm/swarm/pkg/swarmerr"
)

// Config is the fixed, per-instance configuration an Executor is built
// from; it does not change across Execute calls.
type Config struct {
	InstanceName       string
	InstanceID         string
	WorkDir            string
	ExtraDirs          []string
	Model              string
	AppendSystemPrompt string
	AllowedTools       []string
	DisallowedTools    []string
	MCPConfigPath      string
	Vibe               bool
	// StatePath is where this instance's state record lives; the captured
	// claude_session_id is persisted here under lock.
	StatePath string
	// Resume, if set, seeds the executor with a previously captured
	// claude_session_id so the first Execute call resumes rather than
	// starting fresh.
	Resume string
	// OnEvent, if set, receives every parsed stream message for logging
	// it is called synchronously from Execute's goroutine.
	OnEvent func(StreamMessage)
}

// Executor runs the Claude CLI once per Execute call, implementing
// agent.Executor.
type Executor struct {
	cfg Config

	mu        sync.Mutex
	sessionID string
}

// New returns an Executor for one instance.
func New(cfg Config) *Executor {
	return &Executor{cfg: cfg, sessionID: cfg.Resume}
}

// SessionID returns the currently captured claude_session_id, or "".
func (e *Executor) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// WorkingDirectory returns the instance's primary directory.
func (e *Executor) WorkingDirectory() string {
	return e.cfg.WorkDir
}

// Reset clears the captured session id; the next Execute starts fresh.
func (e *Executor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessionID = ""
}

// Execute spawns one `claude --print --output-format stream-json` process,
// feeds it prompt, and parses its stdout as a line-delimited JSON stream.
func (e *Executor) Execute(ctx context.Context, prompt string, opts agent.RunOptions) (agent.Result, error) {
	resume := ""
	if !opts.NewSession {
		resume = e.SessionID()
	}

	appendPrompt := e.cfg.AppendSystemPrompt
	if opts.SystemPrompt != "" {
		if appendPrompt != "" {
			appendPrompt = appendPrompt + "\n" + opts.SystemPrompt
		} else {
			appendPrompt = opts.SystemPrompt
		}
	}

	o := Options{
		Model:              e.cfg.Model,
		AppendSystemPrompt: appendPrompt,
		AllowedTools:       e.cfg.AllowedTools,
		DisallowedTools:    e.cfg.DisallowedTools,
		MCPConfigPath:      e.cfg.MCPConfigPath,
		WorkDir:            e.cfg.WorkDir,
		ExtraDirs:          e.cfg.ExtraDirs,
		Vibe:               e.cfg.Vibe,
		Resume:             resume,
	}

	cmd := exec.CommandContext(ctx, "claude", o.args(prompt)...)
	cmd.Dir = e.cfg.WorkDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return agent.Result{}, fmt.Errorf("creating stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return agent.Result{}, fmt.Errorf("starting claude: %w", err)
	}

	var result agent.Result
	var sawResult bool

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		msg, parseErr := ParseStreamMessage(line)
		if parseErr != nil {
			// Tolerant of malformed lines while still awaiting the result.
			continue
		}

		if msg.Type == MessageTypeSystem && msg.SessionID != "" {
			e.mu.Lock()
			e.sessionID = msg.SessionID
			e.mu.Unlock()
			if e.cfg.StatePath != "" {
				_ = state.UpdateClaudeSessionID(e.cfg.StatePath, e.cfg.InstanceName, e.cfg.InstanceID, msg.SessionID)
			}
		}

		if e.cfg.OnEvent != nil {
			e.cfg.OnEvent(msg)
		}

		if msg.Type == MessageTypeResult {
			result = agent.Result{
				Text:       msg.Result,
				CostUSD:    msg.TotalCost,
				DurationMS: msg.Duration,
				SessionID:  e.SessionID(),
				IsError:    msg.IsError,
			}
			sawResult = true
		}
	}

	waitErr := cmd.Wait()
	if waitErr != nil {
		return agent.Result{}, &swarmerr.ExecutionError{Stderr: strings.TrimSpace(stderr.String())}
	}
	if !sawResult {
		return agent.Result{}, &swarmerr.ParseError{Message: "claude stdout ended without a result event"}
	}
	return result, nil
}
