// Package agent defines the provider-polymorphic executor interface that
// both the Claude-CLI backend and the OpenAI-API backend implement: run
// one sub-agent for one task, stream structured events, capture session id
// and cost.
package agent

import "context"

// Result is the outcome of one Execute call.
type Result struct {
	Text       string
	CostUSD    float64
	DurationMS float64
	SessionID  string
	IsError    bool
}

// RunOptions carries the per-call overrides a `task` invocation may supply.
type RunOptions struct {
	// NewSession forces a fresh conversation even if a session id is known.
	NewSession bool
	// SystemPrompt, if set, is appended to the instance's own system prompt
	// for this call only.
	SystemPrompt string
}

// Executor runs one sub-agent for one task. Implementations are not safe
// for concurrent Execute calls against the same instance: the MCP server
// facade that owns an Executor is single-threaded per instance.
type Executor interface {
	// Execute runs prompt to completion and returns its terminal result.
	Execute(ctx context.Context, prompt string, opts RunOptions) (Result, error)
	// Reset clears any captured session id; the next Execute starts fresh.
	Reset()
	// SessionID returns the currently captured session id, or "" if none.
	SessionID() string
	// WorkingDirectory returns the instance's primary working directory.
	WorkingDirectory() string
}

// Closer is implemented by Executors that hold resources needing explicit
// teardown (the OpenAI backend's connected MCP peers). The Claude-CLI
// backend has nothing to close and does not implement it.
type Closer interface {
	Close()
}

// CloseIfCloser closes e if it implements Closer, a no-op otherwise. Callers
// tearing down a generically-typed Executor use this instead of a type
// switch per backend.
func CloseIfCloser(e Executor) {
	if c, ok := e.(Closer); ok {
		c.Close()
	}
}
