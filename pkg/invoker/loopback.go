package invoker

import (
	"context"

	"github.com/oriys/quasar/internal/logging"
	"github.com/oriys/quasar/pkg/handler"
	"github.com/oriys/quasar/pkg/objstore"
)

// LoopbackInvoker runs the remote handler in-process against the same store
// the dispatcher polls. It preserves the asynchronous shape of the protocol
// (the handler runs on its own goroutine and reports through the store), so
// the lifecycle controller behaves identically in local mode and tests.
type LoopbackInvoker struct {
	handler *handler.Handler
}

// NewLoopbackInvoker creates a loopback invoker executing against the store.
func NewLoopbackInvoker(store objstore.Store) *LoopbackInvoker {
	return &LoopbackInvoker{handler: handler.New(store)}
}

func (i *LoopbackInvoker) InvokeAsync(ctx context.Context, functionName string, event []byte) error {
	parsed, err := handler.ParseEvent(event)
	if err != nil {
		return &InvocationError{FunctionName: functionName, Err: err}
	}

	// Detach from the caller's context: the remote side outlives local
	// cancellation, exactly as a real Lambda execution would.
	go func() {
		if err := i.handler.Handle(context.Background(), parsed); err != nil {
			logging.Op().Error("loopback handler failed", "invocation", parsed.InvocationID, "error", err)
		}
	}()
	return nil
}
