package usecase

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type mockLinkRepository struct {
	mock.Mock
}

func (r *mockLinkRepository) Save(ctx context.Context, link *entity.ShortLink) (*entity.ShortLink, error) {
	args := r.Called(ctx, link)
	saved, _ := args.Get(0).(*entity.ShortLink)
	return saved, args.Error(1)
}

func (r *mockLinkRepository) FindByShortID(ctx context.Context, shortID string) (*entity.ShortLink, error) {
	args := r.Called(ctx, shortID)
	link, _ := args.Get(0).(*entity.ShortLink)
	return link, args.Error(1)
}

func (r *mockLinkRepository) RecordClick(ctx context.Context, click entity.Click) error {
	args := r.Called(ctx, click)
	return args.Error(0)
}

func (r *mockLinkRepository) CountAll(ctx context.Context) (int64, error) {
	args := r.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (r *mockLinkRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	args := r.Called(ctx, since)
	return args.Get(0).(int64), args.Error(1)
}

func (r *mockLinkRepository) SumClicks(ctx context.Context) (int64, error) {
	args := r.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (r *mockLinkRepository) TopByClicks(ctx context.Context, n int) ([]*entity.ShortLink, error) {
	args := r.Called(ctx, n)
	links, _ := args.Get(0).([]*entity.ShortLink)
	return links, args.Error(1)
}

func (r *mockLinkRepository) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	args := r.Called(ctx, now)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (r *mockLinkRepository) Ping(ctx context.Context) error {
	args := r.Called(ctx)
	return args.Error(0)
}

type mockLookupCache struct {
	mock.Mock
}

func (c *mockLookupCache) Get(ctx context.Context, key string) (string, bool) {
	args := c.Called(ctx, key)
	return args.String(0), args.Bool(1)
}

func (c *mockLookupCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	c.Called(ctx, key, value, ttl)
}

func (c *mockLookupCache) Delete(ctx context.Context, key string) {
	c.Called(ctx, key)
}

func (c *mockLookupCache) Ping(ctx context.Context) error {
	args := c.Called(ctx)
	return args.Error(0)
}

func (c *mockLookupCache) Stats() entity.CacheStats {
	args := c.Called()
	return args.Get(0).(entity.CacheStats)
}

type mockClickTracker struct {
	mock.Mock
}

func (t *mockClickTracker) Track(click entity.Click) {
	t.Called(click)
}

type mockIDGenerator struct {
	mock.Mock
}

func (g *mockIDGenerator) NewID() (string, error) {
	args := g.Called()
	return args.String(0), args.Error(1)
}
