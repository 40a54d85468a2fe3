// Package limiter provides the process-wide ceiling on in-flight network
// operations. Socket probes, external validation calls and fallback
// candidate probes all draw from the same Limiter.
package limiter

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultCapacity matches the number of concurrent checks the bot ran with.
const DefaultCapacity = 20

// Limiter is a fixed-size weighted semaphore that also tracks how many
// units are in use and the highest value observed.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int64
	inFlight atomic.Int64
	peak     atomic.Int64
}

// New returns a Limiter with the given capacity. Non-positive values fall
// back to DefaultCapacity.
func New(capacity int) *Limiter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Limiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// Acquire blocks until a unit is free or ctx is done. The returned release
// func must be called exactly once; it is safe to defer.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	n := l.inFlight.Add(1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}

	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			l.inFlight.Add(-1)
			l.sem.Release(1)
		}
	}, nil
}

// Do runs fn while holding one unit.
func (l *Limiter) Do(ctx context.Context, fn func(context.Context) error) error {
	release, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// Capacity returns the configured ceiling.
func (l *Limiter) Capacity() int { return int(l.capacity) }

// InFlight returns the number of units currently held.
func (l *Limiter) InFlight() int { return int(l.inFlight.Load()) }

// Peak returns the highest InFlight value seen.
func (l *Limiter) Peak() int { return int(l.peak.Load()) }
