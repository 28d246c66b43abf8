package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"notex/pkg/config"
	errs "notex/pkg/errors"
)

func TestExponentialBackoffGrowth(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:  time.Second,
		MaxDelay:   time.Minute,
		Multiplier: 2.0,
	}

	assert.Equal(t, time.Second, eb.NextDelay(1))
	assert.Equal(t, 2*time.Second, eb.NextDelay(2))
	assert.Equal(t, 4*time.Second, eb.NextDelay(3))
	assert.Equal(t, 8*time.Second, eb.NextDelay(4))
}

func TestExponentialBackoffCap(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:  time.Second,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
	}

	assert.Equal(t, 5*time.Second, eb.NextDelay(10))
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:    10 * time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}

	for i := 0; i < 100; i++ {
		d := eb.NextDelay(1)
		assert.GreaterOrEqual(t, d, 9*time.Second)
		assert.LessOrEqual(t, d, 11*time.Second)
	}
}

func TestExponentialBackoffInvalidAttempt(t *testing.T) {
	eb := DefaultExponentialBackoff()
	assert.Equal(t, time.Duration(0), eb.NextDelay(0))
	assert.Equal(t, time.Duration(0), eb.NextDelay(-1))
}

func TestFromConfig(t *testing.T) {
	eb := FromConfig(&config.RetryConfig{
		BaseDelay:         2 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 3.0,
		JitterFactor:      0.2,
	})

	assert.Equal(t, 2*time.Second, eb.BaseDelay)
	assert.Equal(t, 30*time.Second, eb.MaxDelay)
	assert.Equal(t, 3.0, eb.Multiplier)
	assert.Equal(t, 0.2, eb.JitterFactor)
}

func TestConstantBackoff(t *testing.T) {
	cb := &ConstantBackoff{Delay: 3 * time.Second}
	assert.Equal(t, 3*time.Second, cb.NextDelay(1))
	assert.Equal(t, 3*time.Second, cb.NextDelay(5))
	assert.Equal(t, time.Duration(0), cb.NextDelay(0))
}

func TestClassBackoffSelection(t *testing.T) {
	base := &ExponentialBackoff{
		BaseDelay:  time.Second,
		MaxDelay:   time.Minute,
		Multiplier: 2.0,
	}
	cb := NewClassBackoff(base)

	rateLimited := errs.NewWithCode(errs.ErrorTypeRateLimit, 429, "slow down")
	transient := errs.New(errs.ErrorTypeTransient, "connection reset")
	unknown := errs.New(errs.ErrorTypeUnknown, "???")

	// Rate-limit errors back off much longer than transient ones
	assert.Greater(t, cb.ForError(rateLimited).NextDelay(1), cb.ForError(transient).NextDelay(1))
	assert.Equal(t, base, cb.ForError(transient))
	assert.Equal(t, base, cb.ForError(unknown))
}

func TestWait(t *testing.T) {
	t.Run("ZeroDelayReturnsImmediately", func(t *testing.T) {
		assert.NoError(t, Wait(context.Background(), 0))
	})

	t.Run("CancelledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, Wait(ctx, time.Minute), context.Canceled)
	})

	t.Run("CompletesAfterDelay", func(t *testing.T) {
		start := time.Now()
		assert.NoError(t, Wait(context.Background(), 20*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})
}
