package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/oriys/quasar/internal/config"
	"github.com/oriys/quasar/pkg/codec"
	"github.com/oriys/quasar/pkg/lifecycle"
)

func init() {
	codec.Register("exec-double", func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		n, ok := args[0].(int)
		if !ok {
			return nil, fmt.Errorf("want int, got %T", args[0])
		}
		return n * 2, nil
	})
	codec.Register("exec-fail", func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
}

func loopbackConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Store.Type = "memory"
	cfg.Invoker = "loopback"
	cfg.Lambda.TimeoutSeconds = 5
	cfg.Poll.Interval = 5 * time.Millisecond
	cfg.Poll.Grace = 100 * time.Millisecond
	return cfg
}

func newLoopbackExecutor(t *testing.T) *Executor {
	t.Helper()
	e, err := New(context.Background(), loopbackConfig())
	if err != nil {
		t.Fatalf("New executor: %v", err)
	}
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"lambda invoker without function name", func(c *config.Config) {
			c.Invoker = "lambda"
			c.Lambda.FunctionName = ""
		}},
		{"s3 store without bucket", func(c *config.Config) {
			c.Store.Type = "s3"
			c.Store.Bucket = ""
		}},
		{"unknown invoker", func(c *config.Config) { c.Invoker = "carrier-pigeon" }},
		{"zero concurrency", func(c *config.Config) { c.MaxConcurrent = 0 }},
	}
	for _, tc := range cases {
		cfg := loopbackConfig()
		tc.mutate(cfg)
		if _, err := New(context.Background(), cfg); err == nil {
			t.Errorf("%s: expected constructor error", tc.name)
		}
	}
}

func TestExecuteLoopbackSuccess(t *testing.T) {
	e := newLoopbackExecutor(t)

	value, err := e.Execute(context.Background(), "exec-double", []any{21}, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if value != 42 {
		t.Errorf("expected 42, got %v", value)
	}
}

func TestExecuteLoopbackRemoteFailure(t *testing.T) {
	e := newLoopbackExecutor(t)

	_, err := e.Execute(context.Background(), "exec-fail", nil, nil)
	if err == nil {
		t.Fatal("expected remote failure")
	}
	var terr *lifecycle.Error
	if !errors.As(err, &terr) || terr.Kind != lifecycle.KindRemote {
		t.Fatalf("expected KindRemote, got %v", err)
	}
	if terr.Remote == nil || terr.Remote.Message != "boom" {
		t.Errorf("remote exception not carried: %+v", terr.Remote)
	}
}

func TestExecuteUnregisteredTask(t *testing.T) {
	e := newLoopbackExecutor(t)

	_, err := e.Execute(context.Background(), "executor-no-such-task", nil, nil)
	if err == nil {
		t.Fatal("expected error for unregistered task")
	}
	var terr *lifecycle.Error
	if !errors.As(err, &terr) || terr.Kind != lifecycle.KindSerialization {
		t.Fatalf("expected KindSerialization, got %v", err)
	}
}

func TestConcurrentExecutes(t *testing.T) {
	cfg := loopbackConfig()
	cfg.MaxConcurrent = 4
	e, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New executor: %v", err)
	}
	defer e.Close(context.Background())

	const n = 12
	var wg sync.WaitGroup
	results := make([]any, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.Execute(context.Background(), "exec-double", []any{i}, nil,
				WithDispatchID(fmt.Sprintf("batch-%d", i)))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Errorf("dispatch %d failed: %v", i, errs[i])
			continue
		}
		if results[i] != i*2 {
			t.Errorf("dispatch %d: expected %d, got %v", i, i*2, results[i])
		}
	}
}

func TestExecuteContextCancellation(t *testing.T) {
	cfg := loopbackConfig()
	// A task that outlives the caller's patience.
	codec.Register("exec-sleep", func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		select {
		case <-time.After(2 * time.Second):
			return "done", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	e, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New executor: %v", err)
	}
	defer e.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = e.Execute(ctx, "exec-sleep", nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline error, got %v", err)
	}
}
