// Package handler implements the remote side of the dispatch protocol: it
// consumes an invocation event, runs the task, and terminates with exactly
// one write under the invocation's result or exception key.
package handler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/oriys/quasar/internal/logging"
	"github.com/oriys/quasar/internal/observability"
	"github.com/oriys/quasar/pkg/codec"
	"github.com/oriys/quasar/pkg/objstore"
)

// Handler executes invocation events against an object store.
type Handler struct {
	store objstore.Store
}

// New creates a handler bound to a store.
func New(store objstore.Store) *Handler {
	return &Handler{store: store}
}

// Handle runs one invocation end to end. Any failure after the input payload
// has been fetched is converted into an exception-key write rather than a
// returned error, so the dispatcher observes Failed instead of a timeout.
// The returned error covers only infrastructure failures that prevented any
// terminal write at all.
func (h *Handler) Handle(ctx context.Context, event *Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	ctx = observability.Extract(ctx, event.Trace)
	ctx, span := observability.StartSpan(ctx, "handler.execute",
		observability.AttrInvocationID.String(event.InvocationID))
	defer span.End()

	keys := objstore.KeysFor(event.InvocationID)
	log := logging.Op().With("invocation", event.InvocationID)

	data, found, err := h.store.TryGet(ctx, keys.Input)
	if err != nil {
		observability.SetSpanError(span, err)
		return fmt.Errorf("fetch input payload: %w", err)
	}
	if !found {
		// The dispatcher uploads the input before invoking, so a missing
		// payload means the keys were cleaned up underneath us (cancelled
		// dispatch). Report it as an exception so a still-polling
		// dispatcher terminates.
		return h.writeException(ctx, keys, &codec.Exception{
			Type:    "InputMissing",
			Message: fmt.Sprintf("input payload %s not found", keys.Input),
		})
	}

	name, args, kwargs, err := codec.Decode(data)
	if err != nil {
		observability.SetSpanError(span, err)
		return h.writeException(ctx, keys, &codec.Exception{
			Type:    "PayloadCorrupt",
			Message: err.Error(),
		})
	}

	fn, err := codec.Resolve(name)
	if err != nil {
		observability.SetSpanError(span, err)
		return h.writeException(ctx, keys, &codec.Exception{
			Type:    "TaskNotRegistered",
			Message: err.Error(),
		})
	}

	// The task runs under its own deadline; terminal writes must still go
	// out after it expires, so they use the parent context.
	taskCtx := ctx
	if event.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, time.Duration(event.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	value, exc := runTask(taskCtx, name, fn, args, kwargs)
	if exc != nil {
		log.Warn("task raised", "task", name, "type", exc.Type, "error", exc.Message)
		observability.SetSpanError(span, exc)
		return h.writeException(ctx, keys, exc)
	}

	encoded, err := codec.EncodeResult(value)
	if err != nil {
		observability.SetSpanError(span, err)
		return h.writeException(ctx, keys, &codec.Exception{
			Type:    "ResultNotEncodable",
			Message: err.Error(),
		})
	}
	if err := h.store.Put(ctx, keys.Result, encoded); err != nil {
		observability.SetSpanError(span, err)
		return fmt.Errorf("write result: %w", err)
	}

	log.Info("task succeeded", "task", name, "result_bytes", len(encoded))
	observability.SetSpanOK(span)
	return nil
}

// runTask executes the task with panic recovery so a crashing task still
// terminates with an exception write.
func runTask(ctx context.Context, name string, fn codec.TaskFunc, args []any, kwargs map[string]any) (value any, exc *codec.Exception) {
	defer func() {
		if r := recover(); r != nil {
			exc = &codec.Exception{
				Type:    "panic",
				Message: fmt.Sprintf("task %s panicked: %v", name, r),
				Trace:   string(debug.Stack()),
			}
		}
	}()

	v, err := fn(ctx, args, kwargs)
	if err != nil {
		return nil, &codec.Exception{
			Type:    fmt.Sprintf("%T", err),
			Message: err.Error(),
		}
	}
	return v, nil
}

// writeException is the single terminal-write path for failures. The write
// itself failing is the unavoidable partial-failure mode the dispatcher
// tolerates as a timeout.
func (h *Handler) writeException(ctx context.Context, keys objstore.Keys, exc *codec.Exception) error {
	data, err := codec.EncodeException(exc)
	if err != nil {
		return fmt.Errorf("encode exception: %w", err)
	}
	if err := h.store.Put(ctx, keys.Exception, data); err != nil {
		return fmt.Errorf("write exception: %w", err)
	}
	return nil
}
