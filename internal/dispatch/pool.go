// Package dispatch bounds how many task dispatches are in flight at once.
// Each dispatch spends most of its life sleeping between polls, so the bound
// is on outstanding dispatches, not OS threads; the runtime multiplexes the
// waiting goroutines.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool is a counting semaphore over in-flight dispatches.
type Pool struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// New creates a pool admitting up to max concurrent dispatches.
func New(max int) *Pool {
	if max < 1 {
		max = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(max))}
}

// Do runs fn once a slot is free, blocking until admission or context
// cancellation. The slot is held for the duration of fn.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("dispatch pool is closed")
	}
	p.wg.Add(1)
	p.mu.Unlock()
	defer p.wg.Done()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire dispatch slot: %w", err)
	}
	defer p.sem.Release(1)

	return fn(ctx)
}

// Close stops admitting new dispatches and waits for in-flight ones to
// finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
}
