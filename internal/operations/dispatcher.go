package operations

import (
	"context"
	"fmt"
	"sync"

	"github.com/eleven-am/strand/internal/ports"
)

var _ ports.OperationRunner = (*Dispatcher)(nil)

// Dispatcher routes operation requests to the runner registered for their
// kind and remembers which runner owns each outstanding handle so polls come
// back to the right place.
type Dispatcher struct {
	routes map[ports.OperationKind]ports.OperationRunner

	mu       sync.Mutex
	byHandle map[string]ports.OperationRunner
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		routes:   make(map[ports.OperationKind]ports.OperationRunner),
		byHandle: make(map[string]ports.OperationRunner),
	}
}

// Register binds a runner to an operation kind. Later registrations for the
// same kind win; registration is not safe concurrently with Submit.
func (d *Dispatcher) Register(kind ports.OperationKind, runner ports.OperationRunner) *Dispatcher {
	d.routes[kind] = runner
	return d
}

func (d *Dispatcher) Submit(ctx context.Context, req ports.OperationRequest) (string, error) {
	runner, ok := d.routes[req.Kind]
	if !ok {
		return "", fmt.Errorf("no runner registered for %q operations", req.Kind)
	}

	handle, err := runner.Submit(ctx, req)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	d.byHandle[handle] = runner
	d.mu.Unlock()
	return handle, nil
}

func (d *Dispatcher) Poll(ctx context.Context, handle string) (ports.OperationUpdate, error) {
	d.mu.Lock()
	runner, ok := d.byHandle[handle]
	d.mu.Unlock()
	if !ok {
		return ports.OperationUpdate{}, fmt.Errorf("unknown operation handle %q", handle)
	}

	update, err := runner.Poll(ctx, handle)
	if err != nil || update.State.Terminal() {
		d.mu.Lock()
		delete(d.byHandle, handle)
		d.mu.Unlock()
	}
	return update, err
}
