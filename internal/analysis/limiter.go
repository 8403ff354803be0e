package analysis

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket bounding outbound remote provider calls.
// Safe for concurrent acquisition.
type RateLimiter struct {
	mu          sync.Mutex
	tokens      int
	capacity    int
	refillEvery time.Duration
	lastRefill  time.Time
}

// NewRateLimiter creates a bucket that starts full with the given capacity
// and refills one token per refillEvery.
func NewRateLimiter(capacity int, refillEvery time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:      capacity,
		capacity:    capacity,
		refillEvery: refillEvery,
		lastRefill:  time.Now(),
	}
}

// TryAcquire takes a token if one is available without blocking.
func (l *RateLimiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill(time.Now())
	if l.tokens > 0 {
		l.tokens--
		return true
	}
	return false
}

// Acquire blocks until a token is available or ctx is cancelled.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	for {
		if l.TryAcquire() {
			return nil
		}
		if err := sleep(ctx, l.refillEvery); err != nil {
			return err
		}
	}
}

// refill credits tokens for elapsed time. Caller must hold mu.
func (l *RateLimiter) refill(now time.Time) {
	if l.refillEvery <= 0 {
		l.tokens = l.capacity
		return
	}
	elapsed := now.Sub(l.lastRefill)
	credits := int(elapsed / l.refillEvery)
	if credits <= 0 {
		return
	}
	l.tokens += credits
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
	l.lastRefill = l.lastRefill.Add(time.Duration(credits) * l.refillEvery)
}
