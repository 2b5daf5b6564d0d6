// Package ratelimit implements the single global admission gate shared
// by every worker: a token bucket refilled at the configured rate over a
// one second period, with an optional linear ramp from zero to the
// target rate over the ramp window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is safe for concurrent use. Token bookkeeping is guarded by a
// single mutex so two workers can never spend the same token.
type Limiter struct {
	mu     sync.Mutex
	target float64 // steady-state tokens per second
	ramp   time.Duration

	start  time.Time
	last   time.Time
	tokens float64
}

// NewLimiter creates a limiter admitting up to rate requests per second
// once the ramp window has passed. The clock starts on the first
// Acquire unless Start is called explicitly.
func NewLimiter(rate float64, ramp time.Duration) *Limiter {
	return &Limiter{target: rate, ramp: ramp}
}

// Start fixes the ramp origin. Safe to call once before the workers spin up.
func (l *Limiter) Start(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.start.IsZero() {
		l.start = now
		l.last = now
	}
}

// RateAt reports the admitted rate at the given instant: linear from 0
// to target across the ramp window, then the target.
func (l *Limiter) RateAt(now time.Time) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rateAtLocked(now)
}

func (l *Limiter) rateAtLocked(now time.Time) float64 {
	if l.ramp <= 0 || l.start.IsZero() {
		return l.target
	}
	elapsed := now.Sub(l.start)
	if elapsed >= l.ramp {
		return l.target
	}
	return l.target * (float64(elapsed) / float64(l.ramp))
}

// refillLocked accrues tokens for the time since the last refill. The
// ramp is linear, so the trapezoid of the endpoint rates is exact.
func (l *Limiter) refillLocked(now time.Time) {
	if l.start.IsZero() {
		l.start = now
		l.last = now
		return
	}
	dt := now.Sub(l.last).Seconds()
	if dt <= 0 {
		return
	}
	avgRate := (l.rateAtLocked(l.last) + l.rateAtLocked(now)) / 2
	l.tokens += avgRate * dt
	// One-second period: never bank more than a second of capacity.
	// A sub-1 rate still needs room for one whole token, or admission
	// could never trigger.
	limit := l.target
	if limit < 1 {
		limit = 1
	}
	if l.tokens > limit {
		l.tokens = limit
	}
	l.last = now
}

// Acquire blocks until a token is available or ctx is done. This is a
// worker suspension point: cancellation must be observed promptly, so
// waits are capped and re-checked rather than computed once.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		l.refillLocked(now)
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		wait := l.waitHintLocked(now)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Limiter) waitHintLocked(now time.Time) time.Duration {
	const (
		minWait = time.Millisecond
		maxWait = 100 * time.Millisecond
	)
	rate := l.rateAtLocked(now)
	if rate <= 0 {
		return maxWait
	}
	deficit := 1 - l.tokens
	wait := time.Duration(deficit / rate * float64(time.Second))
	if wait < minWait {
		return minWait
	}
	if wait > maxWait {
		// Re-evaluate during the ramp; the admitted rate may have grown.
		return maxWait
	}
	return wait
}
