package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenBucketValidation(t *testing.T) {
	_, err := NewTokenBucket(0, time.Second)
	assert.Error(t, err)

	_, err = NewTokenBucket(3, 0)
	assert.Error(t, err)
}

func TestTokenBucketBurstAndRefill(t *testing.T) {
	tb, err := NewTokenBucket(3, 100*time.Millisecond)
	require.NoError(t, err)

	// Full burst available immediately
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	time.Sleep(120 * time.Millisecond)
	assert.True(t, tb.Allow(), "bucket must refill after the period")
}

func TestTokenBucketAcquireCancellation(t *testing.T) {
	tb, err := NewTokenBucket(1, time.Minute)
	require.NoError(t, err)
	require.NoError(t, tb.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tb.Acquire(ctx), context.DeadlineExceeded)
}

func TestTokenBucketReset(t *testing.T) {
	tb, err := NewTokenBucket(1, time.Minute)
	require.NoError(t, err)

	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	tb.Reset()
	assert.True(t, tb.Allow())
}
