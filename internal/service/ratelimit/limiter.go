// Package ratelimit implements keyed token buckets.
package ratelimit

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrNoRefill is returned by Wait when a bucket is empty and never refills.
var ErrNoRefill = errors.New("ratelimit: bucket empty and refill rate is zero")

type entry struct {
	lim      *rate.Limiter
	capacity float64
	refill   float64
}

// Limiter holds one rate.Limiter per key.
type Limiter struct {
	mu  sync.Mutex
	m   map[string]*entry
	now func() time.Time
}

func New() *Limiter { return &Limiter{m: make(map[string]*entry), now: time.Now} }

func burstOf(capacity float64) int {
	b := int(math.Floor(capacity))
	if b < 1 {
		b = 1
	}
	return b
}

// limiter returns the bucket for key, resizing it when the caller's
// parameters changed since the last call.
func (l *Limiter) limiter(key string, capacity, refillPerSec float64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.m[key]
	if !ok {
		e = &entry{
			lim:      rate.NewLimiter(rate.Limit(refillPerSec), burstOf(capacity)),
			capacity: capacity,
			refill:   refillPerSec,
		}
		l.m[key] = e
		return e.lim
	}
	now := l.now()
	if e.refill != refillPerSec {
		e.lim.SetLimitAt(now, rate.Limit(refillPerSec))
		e.refill = refillPerSec
	}
	if e.capacity != capacity {
		e.lim.SetBurstAt(now, burstOf(capacity))
		e.capacity = capacity
	}
	return e.lim
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	return l.limiter(key, capacity, refillPerSec).AllowN(l.now(), 1)
}

// Wait blocks until a token for key is available or ctx is done. A
// reservation abandoned on cancellation gives its token back.
func (l *Limiter) Wait(ctx context.Context, key string, capacity, refillPerSec float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lim := l.limiter(key, capacity, refillPerSec)
	now := l.now()
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return ErrNoRefill
	}
	delay := r.DelayFrom(now)
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
