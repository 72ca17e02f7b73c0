package codec

import (
	"context"
	"encoding/gob"
	"fmt"
	"sync"
)

// TaskFunc is the shape of a dispatchable task. Both the dispatching process
// and the remote handler must register the same task under the same name,
// typically by importing a shared task package.
type TaskFunc func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

type registry struct {
	mu    sync.RWMutex
	tasks map[string]TaskFunc
}

var defaultRegistry = &registry{tasks: make(map[string]TaskFunc)}

// Register makes a task dispatchable under the given name. Registering the
// same name twice replaces the previous function; names are matched exactly.
func Register(name string, fn TaskFunc) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.tasks[name] = fn
}

// Resolve looks up a registered task by name.
func Resolve(name string) (TaskFunc, error) {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	fn, ok := defaultRegistry.tasks[name]
	if !ok {
		return nil, fmt.Errorf("task %q is not registered", name)
	}
	return fn, nil
}

// Registered reports whether a task name is known to this process.
func Registered(name string) bool {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	_, ok := defaultRegistry.tasks[name]
	return ok
}

// RegisterType records a concrete argument or result type with the underlying
// gob encoder. Callers passing values of non-builtin types through task
// arguments must register them on both sides of the wire.
func RegisterType(v any) {
	gob.Register(v)
}
