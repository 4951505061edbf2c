// Package ratelimit implements the admission control used in front of the
// summarization API: a fixed-window token bucket bounding both request count
// and token spend per minute.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	// window is the fixed refill window. Both budgets reset fully at the
	// window boundary rather than refilling smoothly, so bursts right after
	// a reset are allowed.
	window = 60 * time.Second

	// retryWait is how long a blocked caller sleeps between admission attempts.
	retryWait = 200 * time.Millisecond
)

// Limiter is a fixed-window token bucket. It is safe for concurrent use;
// a single mutex guards both counters and the refill timestamp.
type Limiter struct {
	mu sync.Mutex

	maxRequests int
	maxTokens   int

	remainingRequests int
	remainingTokens   int
	lastRefill        time.Time

	now  func() time.Time
	wait time.Duration
}

// New creates a Limiter allowing rpm requests and tpm tokens per window.
func New(rpm, tpm int) *Limiter {
	l := &Limiter{
		maxRequests:       rpm,
		maxTokens:         tpm,
		remainingRequests: rpm,
		remainingTokens:   tpm,
		now:               time.Now,
		wait:              retryWait,
	}
	l.lastRefill = l.now()
	return l
}

// Acquire blocks until the current window has budget for one request costing
// cost tokens, then consumes it. It returns early with the context's error
// when the caller cancels. Acquire never fails for lack of budget; it waits.
func (l *Limiter) Acquire(ctx context.Context, cost int) error {
	for {
		if l.tryAcquire(cost) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.wait):
		}
	}
}

func (l *Limiter) tryAcquire(cost int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillIfDue()

	if l.remainingRequests > 0 && l.remainingTokens >= cost {
		l.remainingRequests--
		l.remainingTokens -= cost
		return true
	}
	return false
}

// refillIfDue resets both budgets when a full window has elapsed.
// Caller must hold l.mu.
func (l *Limiter) refillIfDue() {
	now := l.now()
	if now.Sub(l.lastRefill) >= window {
		l.remainingRequests = l.maxRequests
		l.remainingTokens = l.maxTokens
		l.lastRefill = now
	}
}

// Remaining reports the current request and token budget. Intended for
// logging and tests.
func (l *Limiter) Remaining() (requests, tokens int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remainingRequests, l.remainingTokens
}
