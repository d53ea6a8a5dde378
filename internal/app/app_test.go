package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/shortlink/internal/config"
)

type countingExpirer struct {
	calls atomic.Int64
	err   error
}

func (e *countingExpirer) ExpireLinks(ctx context.Context) (int, error) {
	e.calls.Add(1)
	return 1, e.err
}

func TestSweepExpiredLinks(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("runs every interval until cancelled", func(t *testing.T) {
		expirer := &countingExpirer{err: errors.New("unknown error")}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		go func() {
			defer close(done)
			sweepExpiredLinks(ctx, expirer, 5*time.Millisecond, logger)
		}()

		assert.Eventually(t, func() bool {
			return expirer.calls.Load() >= 3
		}, time.Second, 5*time.Millisecond)

		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("sweep did not stop after cancellation")
		}
	})

	t.Run("disabled", func(t *testing.T) {
		expirer := &countingExpirer{}

		sweepExpiredLinks(context.Background(), expirer, 0, logger)

		assert.Zero(t, expirer.calls.Load())
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("invalid level", func(t *testing.T) {
		logger, err := newLogger(config.Logger{Level: "loud"})

		assert.Error(t, err)
		assert.Nil(t, logger)
	})

	t.Run("success", func(t *testing.T) {
		logger, err := newLogger(config.Logger{Level: "debug", JSON: true})

		require.NoError(t, err)
		assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
	})
}

func TestNewRedisClient(t *testing.T) {
	assert.Nil(t, newRedisClient(config.Redis{}))

	client := newRedisClient(config.Redis{Addr: "localhost:6379", DB: 2})
	require.NotNil(t, client)
	t.Cleanup(func() {
		client.Close()
	})

	assert.Equal(t, 2, client.Options().DB)
}
