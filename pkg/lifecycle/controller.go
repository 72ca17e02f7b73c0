// Package lifecycle drives one remote task execution from payload upload
// through invocation, polling, and terminal outcome. One Controller instance
// owns one invocation-id key namespace; many controllers run concurrently
// without coordination because their key sets never intersect.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/oriys/quasar/internal/logging"
	"github.com/oriys/quasar/internal/metrics"
	"github.com/oriys/quasar/internal/observability"
	"github.com/oriys/quasar/pkg/codec"
	"github.com/oriys/quasar/pkg/handler"
	"github.com/oriys/quasar/pkg/invoker"
	"github.com/oriys/quasar/pkg/objstore"
)

// Invocation names one task execution. ID namespaces every store key the
// execution touches and must be unique across concurrently live dispatches.
type Invocation struct {
	ID     string
	Task   string
	Args   []any
	Kwargs map[string]any
}

// Options is the backend strategy for a controller: where payloads live, how
// the remote side is triggered, and the timing policy.
type Options struct {
	Store        objstore.Store
	Invoker      invoker.Invoker
	FunctionName string

	// Bucket is forwarded in the invocation event for S3-backed stores.
	Bucket string

	// Resource spec forwarded to the remote side.
	MemoryMB int

	// Timeout is the task's execution ceiling. Grace extends the local
	// poll deadline past it to absorb store propagation delay.
	Timeout time.Duration
	Grace   time.Duration

	PollInterval time.Duration

	// Cleanup deletes the invocation's keys once a terminal state is
	// reached.
	Cleanup bool
}

// Controller is the execution lifecycle state machine for one invocation.
type Controller struct {
	inv  Invocation
	opts Options
	keys objstore.Keys

	mu          sync.Mutex
	state       State
	outcome     Outcome
	started     bool
	submittedAt time.Time
	deadline    time.Time
	pollCycles  int

	// consecutive TryGet failures; nonzero at the deadline turns a
	// timeout into a store-failure report.
	storeErrStreak int
	lastStoreErr   error
}

// New creates a controller in StateCreated. It validates the strategy, not
// the payload; encoding happens at Submit.
func New(inv Invocation, opts Options) (*Controller, error) {
	if inv.ID == "" {
		return nil, fmt.Errorf("invocation id must not be empty")
	}
	if inv.Task == "" {
		return nil, fmt.Errorf("task name must not be empty")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store must not be nil")
	}
	if opts.Invoker == nil {
		return nil, fmt.Errorf("invoker must not be nil")
	}
	if opts.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive")
	}
	if opts.Grace < 0 {
		return nil, fmt.Errorf("grace must not be negative")
	}
	return &Controller{
		inv:   inv,
		opts:  opts,
		keys:  objstore.KeysFor(inv.ID),
		state: StateCreated,
	}, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Outcome returns the terminal outcome. Before a terminal state it reports
// the current state with no value or error.
func (c *Controller) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Terminal() {
		return Outcome{State: c.state}
	}
	return c.outcome
}

// Submit encodes the payload, uploads it, and triggers the remote function.
// Encoding failures terminate the dispatch before any network call. Within
// one invocation the ordering is strict: upload precedes trigger precedes the
// first poll.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateCreated {
		s := c.state
		c.mu.Unlock()
		return fmt.Errorf("submit in state %s", s)
	}
	c.mu.Unlock()

	log := logging.Op().With("invocation", c.inv.ID, "task", c.inv.Task)

	payload, err := codec.Encode(c.inv.Task, c.inv.Args, c.inv.Kwargs)
	if err != nil {
		terr := &Error{Kind: KindSerialization, Err: err}
		c.setTerminal(StateFailed, Outcome{State: StateFailed, Err: terr})
		log.Error("payload encoding failed", "error", err)
		return terr
	}
	metrics.DispatchStarted(len(payload))
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()

	if err := c.opts.Store.Put(ctx, c.keys.Input, payload); err != nil {
		terr := &Error{Kind: KindStore, Err: err}
		c.setTerminal(StateInvocationError, Outcome{State: StateInvocationError, Err: terr})
		log.Error("input upload failed", "error", err)
		return terr
	}

	event := &handler.Event{
		InvocationID:   c.inv.ID,
		InputKey:       c.keys.Input,
		Bucket:         c.opts.Bucket,
		MemoryMB:       c.opts.MemoryMB,
		TimeoutSeconds: int(c.opts.Timeout / time.Second),
		Trace:          observability.Inject(ctx),
	}
	eventBytes, err := event.Marshal()
	if err != nil {
		terr := &Error{Kind: KindSerialization, Err: err}
		c.setTerminal(StateFailed, Outcome{State: StateFailed, Err: terr})
		return terr
	}

	if err := c.opts.Invoker.InvokeAsync(ctx, c.opts.FunctionName, eventBytes); err != nil {
		terr := &Error{Kind: KindInvocation, Err: err}
		c.setTerminal(StateInvocationError, Outcome{State: StateInvocationError, Err: terr})
		log.Error("remote trigger failed", "function", c.opts.FunctionName, "error", err)
		return terr
	}

	now := time.Now()
	c.mu.Lock()
	c.state = StateSubmitted
	c.submittedAt = now
	c.deadline = now.Add(c.opts.Timeout + c.opts.Grace)
	c.mu.Unlock()

	log.Debug("dispatch submitted", "function", c.opts.FunctionName, "payload_bytes", len(payload), "deadline", c.deadline)
	return nil
}

// PollOnce performs one poll cycle: result key first, then exception key,
// then the deadline. Transient store failures are absorbed into the cadence;
// they only surface if they persist through the deadline. Returns true once a
// terminal state is reached.
func (c *Controller) PollOnce(ctx context.Context) bool {
	c.mu.Lock()
	switch {
	case c.state.Terminal():
		c.mu.Unlock()
		return true
	case c.state == StateCreated:
		c.mu.Unlock()
		return false
	}
	c.state = StatePolling
	c.pollCycles++
	deadline := c.deadline
	c.mu.Unlock()

	metrics.PollCycle()
	log := logging.Op().With("invocation", c.inv.ID)

	data, found, err := c.opts.Store.TryGet(ctx, c.keys.Result)
	if err != nil {
		return c.notePollError(log, err, deadline)
	}
	if found {
		c.checkBothKeys(ctx, log)
		value, derr := codec.DecodeResult(data)
		if derr != nil {
			c.setTerminal(StateFailed, Outcome{State: StateFailed, Err: &Error{Kind: KindResultCorrupt, Err: derr}})
			log.Error("result key undecodable", "error", derr)
			return true
		}
		c.mu.Lock()
		c.storeErrStreak = 0
		c.mu.Unlock()
		c.setTerminal(StateSucceeded, Outcome{State: StateSucceeded, Value: value})
		return true
	}

	data, found, err = c.opts.Store.TryGet(ctx, c.keys.Exception)
	if err != nil {
		return c.notePollError(log, err, deadline)
	}
	if found {
		exc, derr := codec.DecodeException(data)
		if derr != nil {
			c.setTerminal(StateFailed, Outcome{State: StateFailed, Err: &Error{Kind: KindResultCorrupt, Err: derr}})
			log.Error("exception key undecodable", "error", derr)
			return true
		}
		c.setTerminal(StateFailed, Outcome{State: StateFailed, Err: &Error{Kind: KindRemote, Remote: exc}})
		return true
	}

	c.mu.Lock()
	c.storeErrStreak = 0
	c.mu.Unlock()
	return c.checkDeadline(log, deadline, nil)
}

func (c *Controller) notePollError(log *slog.Logger, err error, deadline time.Time) bool {
	metrics.StorePollError()
	c.mu.Lock()
	c.storeErrStreak++
	c.lastStoreErr = err
	streak := c.storeErrStreak
	c.mu.Unlock()
	log.Warn("store poll failed, retrying on cadence", "streak", streak, "error", err)
	return c.checkDeadline(log, deadline, err)
}

// checkDeadline declares TimedOut once the deadline has passed. A timeout is
// only declared at or after the deadline, never before. It says nothing about
// remote state: the remote side may still be running.
func (c *Controller) checkDeadline(log *slog.Logger, deadline time.Time, lastErr error) bool {
	if time.Now().Before(deadline) {
		return false
	}

	c.mu.Lock()
	streak := c.storeErrStreak
	storeErr := c.lastStoreErr
	c.mu.Unlock()

	if streak > 0 && storeErr != nil {
		// The store was unreachable up to the deadline; report that
		// rather than a silent-backend timeout.
		c.setTerminal(StateTimedOut, Outcome{State: StateTimedOut, Err: &Error{Kind: KindStore, Err: storeErr}})
		log.Error("deadline reached with store unreachable", "error", storeErr)
		return true
	}
	c.setTerminal(StateTimedOut, Outcome{State: StateTimedOut, Err: &Error{
		Kind: KindTimedOut,
		Err:  fmt.Errorf("no terminal key observed within %v", c.opts.Timeout+c.opts.Grace),
	}})
	log.Warn("dispatch timed out", "timeout", c.opts.Timeout, "grace", c.opts.Grace)
	return true
}

// checkBothKeys reports the result+exception contract violation. The result
// still wins deterministically; this is observability only.
func (c *Controller) checkBothKeys(ctx context.Context, log *slog.Logger) {
	_, excFound, err := c.opts.Store.TryGet(ctx, c.keys.Exception)
	if err == nil && excFound {
		metrics.BothKeysAnomaly()
		log.Warn("both result and exception keys present, result wins")
	}
}

// Wait submits if needed and drives the poll loop to a terminal outcome. On
// context cancellation polling stops and, with cleanup enabled, the input key
// is deleted best-effort; the remote side may still write terminal keys that
// then become orphans.
func (c *Controller) Wait(ctx context.Context) (Outcome, error) {
	ctx, span := observability.StartSpan(ctx, "dispatch",
		observability.AttrInvocationID.String(c.inv.ID),
		observability.AttrTask.String(c.inv.Task),
		observability.AttrFunction.String(c.opts.FunctionName),
	)
	defer span.End()

	if c.State() == StateCreated {
		if err := c.Submit(ctx); err != nil {
			c.finishMetrics(span)
			return c.Outcome(), nil
		}
	}

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.cancel()
			observability.SetSpanError(span, ctx.Err())
			return c.Outcome(), ctx.Err()
		case <-ticker.C:
			if c.PollOnce(ctx) {
				c.finish(ctx, span)
				return c.Outcome(), nil
			}
		}
	}
}

// cancel stops the dispatch before a terminal state. Only the input key is
// deleted; result/exception keys written after this are orphaned writes.
func (c *Controller) cancel() {
	if !c.opts.Cleanup {
		return
	}
	ctx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := c.opts.Store.Delete(ctx, c.keys.Input); err != nil {
		logging.Op().Warn("cancel cleanup failed", "invocation", c.inv.ID, "key", c.keys.Input, "error", err)
	}
}

func (c *Controller) finish(ctx context.Context, span trace.Span) {
	if c.opts.Cleanup {
		c.cleanup(ctx)
	}
	c.finishMetrics(span)
}

// cleanup removes the invocation's key namespace. Failures are logged, never
// escalated: a Succeeded or Failed outcome is already decided.
func (c *Controller) cleanup(ctx context.Context) {
	log := logging.Op().With("invocation", c.inv.ID)
	for _, key := range []string{c.keys.Input, c.keys.Result, c.keys.Exception} {
		if err := c.opts.Store.Delete(ctx, key); err != nil {
			log.Warn("cleanup failed", "key", key, "error", err)
		}
	}
}

func (c *Controller) finishMetrics(span trace.Span) {
	c.mu.Lock()
	out := c.outcome
	elapsed := time.Duration(0)
	if !c.submittedAt.IsZero() {
		elapsed = time.Since(c.submittedAt)
	}
	cycles := c.pollCycles
	started := c.started
	c.mu.Unlock()

	if started {
		metrics.DispatchFinished(out.State.String(), elapsed)
	}
	span.SetAttributes(
		observability.AttrOutcome.String(out.State.String()),
		observability.AttrPollCycles.Int(cycles),
	)
	if out.Err != nil {
		observability.SetSpanError(span, out.Err)
	} else if out.State == StateSucceeded {
		observability.SetSpanOK(span)
	}
}

// setTerminal transitions into a terminal state exactly once; later attempts
// are ignored so an invocation id can never report two outcomes.
func (c *Controller) setTerminal(state State, out Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Terminal() {
		return
	}
	c.state = state
	c.outcome = out
}
