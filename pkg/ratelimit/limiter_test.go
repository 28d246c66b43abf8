package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlidingWindowValidation(t *testing.T) {
	_, err := NewSlidingWindow(0, time.Minute)
	assert.Error(t, err)

	_, err = NewSlidingWindow(-1, time.Minute)
	assert.Error(t, err)

	_, err = NewSlidingWindow(2, 0)
	assert.Error(t, err)

	sw, err := NewSlidingWindow(2, time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, sw)
}

func TestAllowRespectsWindowBudget(t *testing.T) {
	sw, err := NewSlidingWindow(2, 100*time.Millisecond)
	require.NoError(t, err)

	assert.True(t, sw.Allow())
	assert.True(t, sw.Allow())
	assert.False(t, sw.Allow(), "third call within the window must be refused")

	time.Sleep(120 * time.Millisecond)
	assert.True(t, sw.Allow(), "slot must free up once the oldest call leaves the window")
}

func TestAcquireBlocksUntilSlotFrees(t *testing.T) {
	sw, err := NewSlidingWindow(1, 100*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, sw.Acquire(context.Background()))

	start := time.Now()
	require.NoError(t, sw.Acquire(context.Background()))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond,
		"second acquire must wait for the window to roll")
}

func TestAcquireCancellation(t *testing.T) {
	sw, err := NewSlidingWindow(1, time.Minute)
	require.NoError(t, err)

	require.NoError(t, sw.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- sw.Acquire(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled Acquire did not return")
	}
}

func TestCancelledWaiterDoesNotConsumeSlot(t *testing.T) {
	sw, err := NewSlidingWindow(1, 100*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, sw.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, sw.Acquire(ctx))

	// After the window rolls, the slot must be available again
	time.Sleep(120 * time.Millisecond)
	assert.True(t, sw.Allow())
}

func TestWaitersAdmittedInArrivalOrder(t *testing.T) {
	sw, err := NewSlidingWindow(1, 50*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, sw.Acquire(context.Background()))

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 1; i <= 3; i++ {
		wg.Add(1)
		id := i
		go func() {
			defer wg.Done()
			assert.NoError(t, sw.Acquire(context.Background()))
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
		}()
		// Stagger arrivals so queue order is deterministic
		time.Sleep(10 * time.Millisecond)
	}

	wg.Wait()
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestReset(t *testing.T) {
	sw, err := NewSlidingWindow(1, time.Minute)
	require.NoError(t, err)

	assert.True(t, sw.Allow())
	assert.False(t, sw.Allow())

	sw.Reset()
	assert.True(t, sw.Allow())
}

func TestStatus(t *testing.T) {
	sw, err := NewSlidingWindow(3, time.Minute)
	require.NoError(t, err)

	require.NoError(t, sw.Acquire(context.Background()))
	st := sw.Status()
	assert.Equal(t, 1, st.Used)
	assert.Equal(t, 3, st.Max)
	assert.Equal(t, 2, st.Remaining)
	assert.Equal(t, time.Minute, st.Window)
}
