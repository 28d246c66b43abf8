// Package ratelimit bounds the rate of calls against the conversion
// endpoint.
//
// The primary implementation is SlidingWindow: at no instant do more than
// maxCalls admitted calls fall within the trailing window. Blocked callers
// are admitted strictly in arrival order, and a caller whose context is
// cancelled while waiting leaves the queue without affecting anyone else.
//
// TokenBucket is an alternative for burst-tolerant endpoints.
package ratelimit
