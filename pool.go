package mvi

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool is a bounded execution context for features. A single-shot feature
// pinned to a pool holds one slot per invocation; a streaming feature holds
// one slot for as long as it runs.
//
// Features without a pool run on the dispatcher goroutine started for them.
type Pool struct {
	name   string
	size   int64
	sem    *semaphore.Weighted
	closed atomic.Bool

	// Metrics for pool usage
	acquired  atomic.Uint64
	active    atomic.Int64
	completed atomic.Uint64
}

// PoolStats is a snapshot of pool usage.
type PoolStats struct {
	Name      string
	Size      int64
	Active    int64
	Acquired  uint64
	Completed uint64
}

// NewPool creates a pool with size slots. Sizes below one are raised to one.
func NewPool(name string, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		name: name,
		size: int64(size),
		sem:  semaphore.NewWeighted(int64(size)),
	}
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.name
}

// Do waits for a free slot and runs fn on the calling goroutine while holding it.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	p.acquired.Add(1)
	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		p.completed.Add(1)
	}()

	return fn(ctx)
}

// Close rejects further work. Work already holding a slot is not interrupted.
func (p *Pool) Close() {
	p.closed.Store(true)
}

// Stats returns a copy of the current pool metrics
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Name:      p.name,
		Size:      p.size,
		Active:    p.active.Load(),
		Acquired:  p.acquired.Load(),
		Completed: p.completed.Load(),
	}
}
