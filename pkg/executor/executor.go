// Package executor is the engine-facing surface: execute one registered task
// on the remote backend and return its value or a structured error. Each call
// runs an independent lifecycle controller; the executor only supplies the
// shared backend strategy and bounds concurrency.
package executor

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/oriys/quasar/internal/config"
	"github.com/oriys/quasar/internal/dispatch"
	"github.com/oriys/quasar/internal/logging"
	"github.com/oriys/quasar/internal/observability"
	"github.com/oriys/quasar/pkg/awsutil"
	"github.com/oriys/quasar/pkg/invoker"
	"github.com/oriys/quasar/pkg/lifecycle"
	"github.com/oriys/quasar/pkg/objstore"
)

// Executor dispatches tasks to the configured backend.
type Executor struct {
	cfg     *config.Config
	store   objstore.Store
	invoker invoker.Invoker
	pool    *dispatch.Pool
}

// New validates the configuration and wires the backend clients. Invalid
// configuration fails here, never mid-dispatch.
func New(ctx context.Context, cfg *config.Config) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid executor config: %w", err)
	}
	logging.SetLevelFromString(cfg.LogLevel)
	if err := observability.Init(ctx, cfg.Telemetry); err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	inv, err := buildInvoker(ctx, cfg, store)
	if err != nil {
		return nil, err
	}

	return &Executor{
		cfg:     cfg,
		store:   store,
		invoker: inv,
		pool:    dispatch.New(cfg.MaxConcurrent),
	}, nil
}

func buildStore(ctx context.Context, cfg *config.Config) (objstore.Store, error) {
	if cfg.Store.Type == "s3" {
		awsCfg, err := awsutil.Load(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		return objstore.NewS3StoreWithClient(s3.NewFromConfig(awsCfg), cfg.Store.Bucket), nil
	}
	return objstore.New(ctx, cfg.Store)
}

func buildInvoker(ctx context.Context, cfg *config.Config, store objstore.Store) (invoker.Invoker, error) {
	switch cfg.Invoker {
	case "lambda":
		awsCfg, err := awsutil.Load(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		return invoker.NewLambdaInvokerWithClient(lambda.NewFromConfig(awsCfg)), nil
	case "loopback":
		return invoker.NewLoopbackInvoker(store), nil
	default:
		return nil, fmt.Errorf("unknown invoker type: %s", cfg.Invoker)
	}
}

// DispatchOption customizes a single Execute call.
type DispatchOption func(*dispatchSettings)

type dispatchSettings struct {
	dispatchID string
	taskID     string
}

// WithDispatchID pins the workflow dispatch id instead of generating one.
func WithDispatchID(id string) DispatchOption {
	return func(s *dispatchSettings) { s.dispatchID = id }
}

// WithTaskID pins the task (node) id within the dispatch.
func WithTaskID(id string) DispatchOption {
	return func(s *dispatchSettings) { s.taskID = id }
}

// Execute runs one registered task remotely and blocks until a terminal
// outcome. On success it returns the task's value; otherwise a
// *lifecycle.Error carrying the failure kind and, for remote failures, the
// remote traceback. Context cancellation stops polling without asserting
// anything about remote state.
func (e *Executor) Execute(ctx context.Context, task string, args []any, kwargs map[string]any, opts ...DispatchOption) (any, error) {
	settings := dispatchSettings{}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.dispatchID == "" {
		settings.dispatchID = uuid.NewString()
	}
	if settings.taskID == "" {
		settings.taskID = "0"
	}

	ctrl, err := e.controller(settings, task, args, kwargs)
	if err != nil {
		return nil, err
	}

	var out lifecycle.Outcome
	var waitErr error
	if err := e.pool.Do(ctx, func(ctx context.Context) error {
		out, waitErr = ctrl.Wait(ctx)
		return nil
	}); err != nil {
		return nil, err
	}
	if waitErr != nil {
		return nil, waitErr
	}
	if out.State == lifecycle.StateSucceeded {
		return out.Value, nil
	}
	return nil, out.Err
}

func (e *Executor) controller(settings dispatchSettings, task string, args []any, kwargs map[string]any) (*lifecycle.Controller, error) {
	inv := lifecycle.Invocation{
		ID:     settings.dispatchID + "-" + settings.taskID,
		Task:   task,
		Args:   args,
		Kwargs: kwargs,
	}
	return lifecycle.New(inv, lifecycle.Options{
		Store:        e.store,
		Invoker:      e.invoker,
		FunctionName: e.cfg.Lambda.FunctionName,
		Bucket:       e.cfg.Store.Bucket,
		MemoryMB:     e.cfg.Lambda.MemoryMB,
		Timeout:      e.cfg.TaskTimeout(),
		Grace:        e.cfg.Poll.Grace,
		PollInterval: e.cfg.Poll.Interval,
		Cleanup:      e.cfg.Cleanup,
	})
}

// Close drains in-flight dispatches and flushes telemetry.
func (e *Executor) Close(ctx context.Context) error {
	e.pool.Close()
	return observability.Shutdown(ctx)
}
