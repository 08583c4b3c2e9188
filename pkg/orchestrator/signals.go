package orchestrator

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// installSignalHandlers returns a context cancelled exactly once when INT,
// TERM, or QUIT is received ("each triggers cooperative
// cleanup exactly once"), and a stop function that releases the
// registration and is safe to call unconditionally on the normal exit path.
func installSignalHandlers() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var once sync.Once
	go func() {
		select {
		case <-ch:
			once.Do(cancel)
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(ch)
		once.Do(cancel)
	}
}
