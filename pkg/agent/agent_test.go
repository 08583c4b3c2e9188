package agent

import (
	"context"
	"testing"
)

type closingExecutor struct {
	closed bool
}

func (e *closingExecutor) Execute(context.Context, string, RunOptions) (Result, error) {
	return Result{}, nil
}
func (e *closingExecutor) Reset()                   {}
func (e *closingExecutor) SessionID() string        { return "" }
func (e *closingExecutor) WorkingDirectory() string { return "" }
func (e *closingExecutor) Close()                   { e.closed = true }

type plainExecutor struct{}

func (e *plainExecutor) Execute(context.Context, string, RunOptions) (Result, error) {
	return Result{}, nil
}
func (e *plainExecutor) Reset()                   {}
func (e *plainExecutor) SessionID() string        { return "" }
func (e *plainExecutor) WorkingDirectory() string { return "" }

func TestCloseIfCloser_ClosesWhenImplemented(t *testing.T) {
	e := &closingExecutor{}
	CloseIfCloser(e)
	if !e.closed {
		t.Error("expected Close to be called")
	}
}

func TestCloseIfCloser_NoopWhenNotImplemented(t *testing.T) {
	// Must not panic when the Executor has no Close method.
	CloseIfCloser(&plainExecutor{})
}
