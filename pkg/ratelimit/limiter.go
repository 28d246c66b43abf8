package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting conversion calls
type Limiter interface {
	// Acquire blocks until a call slot is available, then reserves it.
	// If ctx is cancelled while waiting, Acquire returns ctx.Err() without
	// having reserved a slot.
	Acquire(ctx context.Context) error
	// Allow reserves a slot without blocking if one is available
	Allow() bool
	// Reset resets the rate limiter state
	Reset()
}

// Status reports current window occupancy
type Status struct {
	Used      int
	Max       int
	Remaining int
	Window    time.Duration
}

// waiter represents one goroutine blocked in Acquire. Waiters are admitted
// strictly in arrival order.
type waiter struct {
	ready    chan struct{}
	admitted bool
	at       time.Time
}

// SlidingWindow admits at most maxCalls calls in any trailing window.
// Blocked callers are served FIFO so no caller starves.
type SlidingWindow struct {
	windowSize time.Duration
	maxCalls   int

	mu      sync.Mutex
	calls   []time.Time
	waiters []*waiter
	timer   *time.Timer
	now     func() time.Time
}

// NewSlidingWindow creates a sliding window rate limiter. A non-positive
// limit or window is a configuration error.
func NewSlidingWindow(maxCalls int, windowSize time.Duration) (*SlidingWindow, error) {
	if maxCalls <= 0 {
		return nil, errors.New("ratelimit: max calls must be positive")
	}
	if windowSize <= 0 {
		return nil, errors.New("ratelimit: window duration must be positive")
	}
	return &SlidingWindow{
		windowSize: windowSize,
		maxCalls:   maxCalls,
		calls:      make([]time.Time, 0, maxCalls),
		now:        time.Now,
	}, nil
}

// Acquire blocks until a slot is free under the window budget. Callers are
// admitted in arrival order; cancellation removes the caller from the queue
// without disturbing the window for other waiters.
func (sw *SlidingWindow) Acquire(ctx context.Context) error {
	sw.mu.Lock()
	sw.pruneLocked(sw.now())

	// Fast path: no queue and capacity free
	if len(sw.waiters) == 0 && len(sw.calls) < sw.maxCalls {
		sw.calls = append(sw.calls, sw.now())
		sw.mu.Unlock()
		return nil
	}

	w := &waiter{ready: make(chan struct{})}
	sw.waiters = append(sw.waiters, w)
	sw.scheduleLocked()
	sw.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		sw.mu.Lock()
		if w.admitted {
			// Lost the race with admission: give the slot back
			sw.removeCallLocked(w.at)
		} else {
			sw.removeWaiterLocked(w)
		}
		sw.mu.Unlock()
		return ctx.Err()
	}
}

// Allow reserves a slot without blocking. Queued waiters keep priority.
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.pruneLocked(sw.now())
	if len(sw.waiters) == 0 && len(sw.calls) < sw.maxCalls {
		sw.calls = append(sw.calls, sw.now())
		return true
	}
	return false
}

// Reset clears all recorded calls. Queued waiters are admitted immediately.
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.calls = sw.calls[:0]
	sw.admitLocked()
}

// Status returns the current window occupancy
func (sw *SlidingWindow) Status() Status {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.pruneLocked(sw.now())
	return Status{
		Used:      len(sw.calls),
		Max:       sw.maxCalls,
		Remaining: sw.maxCalls - len(sw.calls),
		Window:    sw.windowSize,
	}
}

// pruneLocked drops calls that have left the trailing window
func (sw *SlidingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-sw.windowSize)
	i := 0
	for i < len(sw.calls) && !sw.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		sw.calls = append(sw.calls[:0], sw.calls[i:]...)
	}
}

// admitLocked hands free slots to waiters in arrival order
func (sw *SlidingWindow) admitLocked() {
	now := sw.now()
	for len(sw.waiters) > 0 && len(sw.calls) < sw.maxCalls {
		w := sw.waiters[0]
		sw.waiters = sw.waiters[1:]
		w.admitted = true
		w.at = now
		sw.calls = append(sw.calls, now)
		close(w.ready)
	}
}

// scheduleLocked arms the timer for the next slot expiry while waiters queue
func (sw *SlidingWindow) scheduleLocked() {
	if len(sw.waiters) == 0 || len(sw.calls) == 0 {
		return
	}
	delay := sw.calls[0].Add(sw.windowSize).Sub(sw.now())
	if delay < 0 {
		delay = 0
	}
	if sw.timer != nil {
		sw.timer.Stop()
	}
	sw.timer = time.AfterFunc(delay, sw.onExpiry)
}

// onExpiry fires when the oldest call leaves the window
func (sw *SlidingWindow) onExpiry() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.pruneLocked(sw.now())
	sw.admitLocked()
	sw.scheduleLocked()
}

func (sw *SlidingWindow) removeWaiterLocked(target *waiter) {
	for i, w := range sw.waiters {
		if w == target {
			sw.waiters = append(sw.waiters[:i], sw.waiters[i+1:]...)
			return
		}
	}
}

func (sw *SlidingWindow) removeCallLocked(at time.Time) {
	for i, c := range sw.calls {
		if c.Equal(at) {
			sw.calls = append(sw.calls[:i], sw.calls[i+1:]...)
			sw.admitLocked()
			return
		}
	}
}
