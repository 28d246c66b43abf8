package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// TokenBucket implements a token bucket rate limiter. The bucket refills to
// full capacity once per refill period, which allows short bursts that the
// sliding window would spread out.
type TokenBucket struct {
	capacity     int
	tokens       int
	refillPeriod time.Duration
	lastRefill   time.Time
	mu           sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter
func NewTokenBucket(capacity int, refillPeriod time.Duration) (*TokenBucket, error) {
	if capacity <= 0 {
		return nil, errors.New("ratelimit: capacity must be positive")
	}
	if refillPeriod <= 0 {
		return nil, errors.New("ratelimit: refill period must be positive")
	}
	return &TokenBucket{
		capacity:     capacity,
		tokens:       capacity,
		refillPeriod: refillPeriod,
		lastRefill:   time.Now(),
	}, nil
}

// Allow checks if a request can proceed without blocking
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Acquire blocks until a token is available or ctx is cancelled
func (tb *TokenBucket) Acquire(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}

		tb.mu.Lock()
		wait := tb.refillPeriod - time.Since(tb.lastRefill)
		tb.mu.Unlock()
		if wait <= 0 {
			wait = 50 * time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = time.Now()
}

// refillLocked adds tokens based on elapsed time
func (tb *TokenBucket) refillLocked() {
	now := time.Now()
	if now.Sub(tb.lastRefill) >= tb.refillPeriod {
		tb.tokens = tb.capacity
		tb.lastRefill = now
	}
}
