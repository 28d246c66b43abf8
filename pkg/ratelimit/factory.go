package ratelimit

import (
	"fmt"
	"strings"
	"time"
)

// Limiter modes
const (
	// ModeWindow spreads calls smoothly over the trailing window
	ModeWindow = "window"
	// ModeBucket allows bursts up to the limit, refilling once per window
	ModeBucket = "bucket"
)

// New builds the limiter selected by mode. An empty mode defaults to the
// sliding window.
func New(mode string, maxCalls int, window time.Duration) (Limiter, error) {
	switch strings.ToLower(mode) {
	case "", ModeWindow:
		return NewSlidingWindow(maxCalls, window)
	case ModeBucket:
		return NewTokenBucket(maxCalls, window)
	default:
		return nil, fmt.Errorf("ratelimit: unknown mode %q", mode)
	}
}
