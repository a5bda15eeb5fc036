// Package permit provides fixed-capacity concurrency limiters for the
// pipeline's three operation classes: bulk HTTP calls, LLM calls, and
// in-flight prospects.
package permit

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool is a fixed-size permit pool. Acquire blocks until a permit is free;
// Release must be called exactly once per successful Acquire, including on
// error paths. Each run constructs its own pools — there are no process-wide
// singletons.
type Pool struct {
	sem  *semaphore.Weighted
	size int

	mu    sync.Mutex
	inUse int64
	peak  int64
}

// NewPool creates a pool with the given number of permits. Size must be
// at least 1.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Acquire blocks until a permit is available or the context is done.
func (p *Pool) Acquire(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.mu.Lock()
	p.inUse++
	if p.inUse > p.peak {
		p.peak = p.inUse
	}
	p.mu.Unlock()
	return nil
}

// Release returns a permit to the pool.
func (p *Pool) Release() {
	p.mu.Lock()
	p.inUse--
	p.mu.Unlock()
	p.sem.Release(1)
}

// With runs fn while holding a permit. The permit is released when fn
// returns, regardless of outcome.
func (p *Pool) With(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.Acquire(ctx); err != nil {
		return err
	}
	defer p.Release()
	return fn(ctx)
}

// Size returns the pool capacity.
func (p *Pool) Size() int {
	return p.size
}

// InUse returns the number of permits currently held.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.inUse)
}

// Peak returns the highest number of permits held simultaneously since the
// pool was created. Used by tests to verify concurrency bounds.
func (p *Pool) Peak() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.peak)
}
