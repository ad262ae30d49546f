// Package operations implements the external operation runners behind the
// engine's submit/poll contract: LLM generation and media processing, plus
// the dispatcher that routes requests by kind.
package operations

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eleven-am/strand/internal/ports"
)

// asyncRunner turns a synchronous call into the submit/poll contract: Submit
// launches the work on a goroutine and Poll reads its latest state. Work is
// detached from the submitting context; only the per-operation timeout stops
// it.
type asyncRunner struct {
	mu      sync.Mutex
	updates map[string]ports.OperationUpdate
}

func newAsyncRunner() asyncRunner {
	return asyncRunner{updates: make(map[string]ports.OperationUpdate)}
}

func (a *asyncRunner) launch(ctx context.Context, timeout time.Duration, fn func(context.Context) (string, error)) string {
	handle := uuid.New().String()
	a.set(handle, ports.OperationUpdate{State: ports.OperationPending})

	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	start := time.Now()

	go func() {
		defer cancel()

		output, err := fn(opCtx)
		update := ports.OperationUpdate{Duration: time.Since(start)}
		switch {
		case err == nil:
			update.State = ports.OperationCompleted
			update.Output = output
		case errors.Is(err, context.DeadlineExceeded):
			update.State = ports.OperationTimedOut
			update.Error = fmt.Sprintf("operation timed out after %s", timeout)
		default:
			update.State = ports.OperationFailed
			update.Error = err.Error()
		}
		a.set(handle, update)
	}()

	return handle
}

// poll reports the operation's current state. A terminal state is returned
// exactly once; the handle is released on that read.
func (a *asyncRunner) poll(handle string) (ports.OperationUpdate, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	update, ok := a.updates[handle]
	if !ok {
		return ports.OperationUpdate{}, fmt.Errorf("unknown operation handle %q", handle)
	}
	if update.State.Terminal() {
		delete(a.updates, handle)
	}
	return update, nil
}

func (a *asyncRunner) set(handle string, update ports.OperationUpdate) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.updates[handle] = update
}
