//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/testutil"
)

func TestLinkRepository_Integration(t *testing.T) {
	repo := NewLinkRepository(testutil.StartPostgres(t))
	ctx := context.Background()

	link, err := repo.Save(ctx, &entity.ShortLink{
		ShortID:     "abc1234",
		OriginalURL: "https://example.com",
		ExpiresAt:   time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.NotZero(t, link.ID)
	assert.Zero(t, link.Clicks)
	assert.Nil(t, link.LastAccessed)

	t.Run("duplicate short id", func(t *testing.T) {
		_, err := repo.Save(ctx, &entity.ShortLink{
			ShortID:     "abc1234",
			OriginalURL: "https://other.example.com",
			ExpiresAt:   time.Now().Add(time.Hour),
		})

		assert.ErrorIs(t, err, entity.ErrShortIDExists)
	})

	t.Run("concurrent clicks are all counted", func(t *testing.T) {
		const n = 100

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, repo.RecordClick(ctx, entity.Click{ShortID: "abc1234", Count: 1, At: time.Now()}))
			}()
		}
		wg.Wait()

		got, err := repo.FindByShortID(ctx, "abc1234")
		require.NoError(t, err)
		assert.Equal(t, int64(n), got.Clicks)
		assert.NotNil(t, got.LastAccessed)
	})

	t.Run("expiration only moves forward", func(t *testing.T) {
		before, err := repo.FindByShortID(ctx, "abc1234")
		require.NoError(t, err)

		err = repo.RecordClick(ctx, entity.Click{
			ShortID:     "abc1234",
			Count:       1,
			At:          time.Now(),
			ExtendUntil: time.Now().Add(time.Minute),
		})
		require.NoError(t, err)

		after, err := repo.FindByShortID(ctx, "abc1234")
		require.NoError(t, err)
		assert.True(t, after.ExpiresAt.Equal(before.ExpiresAt))
	})

	t.Run("expired links are absent and swept", func(t *testing.T) {
		_, err := repo.Save(ctx, &entity.ShortLink{
			ShortID:     "old0001",
			OriginalURL: "https://example.com/old",
			ExpiresAt:   time.Now().Add(-time.Minute),
		})
		require.NoError(t, err)

		_, err = repo.FindByShortID(ctx, "old0001")
		assert.ErrorIs(t, err, entity.ErrLinkNotFound)

		removed, err := repo.DeleteExpired(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, []string{"old0001"}, removed)
	})

	t.Run("aggregates skip expired links", func(t *testing.T) {
		_, err := repo.Save(ctx, &entity.ShortLink{
			ShortID:     "old0002",
			OriginalURL: "https://example.com/stale",
			ExpiresAt:   time.Now().Add(-time.Minute),
		})
		require.NoError(t, err)
		require.NoError(t, repo.RecordClick(ctx, entity.Click{ShortID: "old0002", Count: 50, At: time.Now()}))

		total, err := repo.CountAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)

		sum, err := repo.SumClicks(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(101), sum)

		top, err := repo.TopByClicks(ctx, 10)
		require.NoError(t, err)
		require.Len(t, top, 1)
		assert.Equal(t, "abc1234", top[0].ShortID)
	})
}
