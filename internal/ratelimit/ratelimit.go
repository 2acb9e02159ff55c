package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

type RateLimiter interface {
	Wait(ctx context.Context) error
}

// Gate is a counting gate bounding simultaneous operations. Acquire blocks
// until a slot frees.
type Gate struct {
	sem  *semaphore.Weighted
	size int64
	held atomic.Int64
}

func NewGate(size int) *Gate {
	if size < 1 {
		size = 1
	}
	return &Gate{
		sem:  semaphore.NewWeighted(int64(size)),
		size: int64(size),
	}
}

func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.held.Add(1)
	return nil
}

func (g *Gate) Release() {
	g.held.Add(-1)
	g.sem.Release(1)
}

// Saturated reports whether every slot is currently held.
func (g *Gate) Saturated() bool {
	return g.held.Load() >= g.size
}

func (g *Gate) InFlight() int {
	return int(g.held.Load())
}

func (g *Gate) Size() int {
	return int(g.size)
}

// FixedBackoff waits a constant delay on every call.
type FixedBackoff struct {
	delay time.Duration
}

func NewFixedBackoff(delay time.Duration) *FixedBackoff {
	return &FixedBackoff{delay: delay}
}

func (b *FixedBackoff) Wait(ctx context.Context) error {
	if b.delay <= 0 {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.delay):
	}

	return nil
}

func (b *FixedBackoff) Delay() time.Duration {
	return b.delay
}
