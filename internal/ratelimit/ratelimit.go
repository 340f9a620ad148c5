package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// SimpleRateLimiter spaces actions by a jittered delay between min and max.
// A zero delay disables waiting.
type SimpleRateLimiter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
	jitter     bool
}

func NewSimpleRateLimiter(minDelay, maxDelay time.Duration) *SimpleRateLimiter {
	return &SimpleRateLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		jitter:   true,
	}
}

func (r *SimpleRateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := time.Since(r.lastAction)
	delay := r.calculateDelay()

	if elapsed < delay {
		timer := time.NewTimer(delay - elapsed)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	r.lastAction = time.Now()
	return nil
}

func (r *SimpleRateLimiter) Delays() (time.Duration, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.minDelay, r.maxDelay
}

func (r *SimpleRateLimiter) calculateDelay() time.Duration {
	if !r.jitter || r.maxDelay <= r.minDelay {
		return r.minDelay
	}

	delta := r.maxDelay - r.minDelay
	jitter := time.Duration(rand.Int63n(int64(delta)))
	return r.minDelay + jitter
}

// AdaptiveRateLimiter widens the delay after a run of consecutive errors and
// falls back to the configured delay once requests succeed again.
type AdaptiveRateLimiter struct {
	*SimpleRateLimiter
	baseMin       time.Duration
	baseMax       time.Duration
	errorCount    int
	maxErrorCount int
	backoffFactor float64
	backoffFloor  time.Duration
	ceiling       time.Duration
}

func NewAdaptiveRateLimiter(minDelay, maxDelay time.Duration) *AdaptiveRateLimiter {
	return &AdaptiveRateLimiter{
		SimpleRateLimiter: NewSimpleRateLimiter(minDelay, maxDelay),
		baseMin:           minDelay,
		baseMax:           maxDelay,
		maxErrorCount:     3,
		backoffFactor:     2,
		backoffFloor:      500 * time.Millisecond,
		ceiling:           30 * time.Second,
	}
}

func (a *AdaptiveRateLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorCount = 0
	a.minDelay = a.baseMin
	a.maxDelay = a.baseMax
}

func (a *AdaptiveRateLimiter) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorCount++
	if a.errorCount < a.maxErrorCount {
		return
	}

	newMin := time.Duration(float64(a.minDelay) * a.backoffFactor)
	newMax := time.Duration(float64(a.maxDelay) * a.backoffFactor)
	if newMin < a.backoffFloor {
		newMin = a.backoffFloor
	}
	if newMax < newMin {
		newMax = newMin
	}
	if newMin > a.ceiling {
		newMin = a.ceiling
	}
	if newMax > a.ceiling {
		newMax = a.ceiling
	}

	a.minDelay = newMin
	a.maxDelay = newMax
	a.errorCount = 0
}
