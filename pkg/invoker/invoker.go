// Package invoker abstracts triggering the remote compute backend. Invocation
// is fire-and-forget: the backend executes independently and reports through
// the object store, never back through the invoker.
package invoker

import (
	"context"
	"fmt"
)

// Invoker triggers one asynchronous execution of the named remote function
// with the given event payload. Errors are reported immediately and are never
// retried here; the caller owns retry policy.
type Invoker interface {
	InvokeAsync(ctx context.Context, functionName string, event []byte) error
}

// InvocationError reports a failed trigger of the remote backend. It is
// terminal for the dispatch that produced it.
type InvocationError struct {
	FunctionName string
	Err          error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke %s: %v", e.FunctionName, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }
