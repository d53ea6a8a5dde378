package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(maxRequests int, window time.Duration, now *time.Time) *Limiter {
	l := New(maxRequests, window)
	l.now = func() time.Time { return *now }
	return l
}

func TestLimiter_Allow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(5, time.Minute, &now)

	for i := 0; i < 5; i++ {
		res := l.Allow("10.0.0.1")
		require.True(t, res.Allowed, "request %d", i+1)
		assert.Equal(t, 5, res.Limit)
		assert.Equal(t, 4-i, res.Remaining)

		now = now.Add(time.Second)
	}

	res := l.Allow("10.0.0.1")
	assert.False(t, res.Allowed)
	assert.Zero(t, res.Remaining)
	assert.Equal(t, 55*time.Second, res.RetryAfter)

	t.Run("other clients are unaffected", func(t *testing.T) {
		res := l.Allow("10.0.0.2")
		assert.True(t, res.Allowed)
		assert.Equal(t, 4, res.Remaining)
	})

	t.Run("window slides", func(t *testing.T) {
		now = now.Add(55 * time.Second)

		res := l.Allow("10.0.0.1")
		assert.True(t, res.Allowed)
		assert.Zero(t, res.Remaining)

		res = l.Allow("10.0.0.1")
		assert.False(t, res.Allowed)
		assert.Equal(t, time.Second, res.RetryAfter)
	})
}

func TestLimiter_RejectedRequestsAreNotCounted(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(1, time.Minute, &now)

	require.True(t, l.Allow("client").Allowed)

	for i := 0; i < 10; i++ {
		now = now.Add(time.Second)
		require.False(t, l.Allow("client").Allowed)
	}

	now = now.Add(50 * time.Second)
	assert.True(t, l.Allow("client").Allowed)
}

func TestLimiter_Concurrent(t *testing.T) {
	l := New(50, time.Minute)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("client").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	tests := []struct {
		name        string
		maxRequests int
		window      time.Duration
	}{
		{name: "zero limit", maxRequests: 0, window: time.Minute},
		{name: "negative limit", maxRequests: -1, window: time.Minute},
		{name: "zero window", maxRequests: 10, window: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.maxRequests, tt.window)

			assert.False(t, l.Enabled())

			for i := 0; i < 20; i++ {
				res := l.Allow("1.2.3.4")
				require.True(t, res.Allowed)
				assert.Zero(t, res.RetryAfter)
			}
		})
	}
}
