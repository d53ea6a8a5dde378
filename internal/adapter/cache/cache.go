// Package cache implements the lookup cache used on the redirect path.
//
// Redis is the primary backend. The first failed Redis call switches the cache
// into degraded mode: from then on every operation is served by an in-process
// map with the same TTL semantics, and Redis is only probed by a single
// background reconnect loop. The in-process map is local to one instance and
// is flushed when Redis comes back.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

// ErrDegraded is returned by Ping while the cache is served from the in-process fallback.
var ErrDegraded = errors.New("cache degraded to in-memory fallback")

const (
	defaultOpTimeout         = 200 * time.Millisecond
	defaultReconnectInterval = 10 * time.Second
	defaultCleanupInterval   = time.Minute
)

// Options configures the cache.
type Options struct {
	// OpTimeout bounds every Redis call.
	OpTimeout time.Duration
	// ReconnectInterval is the delay between reconnect probes while degraded.
	ReconnectInterval time.Duration
	// CleanupInterval is how often expired fallback entries are swept.
	CleanupInterval time.Duration
}

// Cache is a Redis backed key-value cache with an in-process fallback.
type Cache struct {
	client   *redis.Client
	fallback *gocache.Cache
	logger   *slog.Logger
	opts     Options

	degraded atomic.Bool
	hits     atomic.Int64
	misses   atomic.Int64

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates a cache and probes Redis once. A nil client or a failed probe starts the cache degraded.
// The caller owns the client and closes it after Close.
func New(ctx context.Context, client *redis.Client, logger *slog.Logger, opts Options) *Cache {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = defaultOpTimeout
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = defaultReconnectInterval
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}

	c := &Cache{
		client:   client,
		fallback: gocache.New(gocache.NoExpiration, opts.CleanupInterval),
		logger:   logger,
		opts:     opts,
		done:     make(chan struct{}),
	}

	if client == nil {
		c.degraded.Store(true)
		logger.Warn("redis is not configured, using in-memory cache")
		return c
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.OpTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		c.degrade(err)
	}

	return c
}

// Get returns the value stored under key. Misses and backend failures both report false.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	val, ok := c.get(ctx, key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}

	return val, ok
}

func (c *Cache) get(ctx context.Context, key string) (string, bool) {
	if c.degraded.Load() {
		return c.fallbackGet(key)
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opts.OpTimeout)
	defer cancel()

	val, err := c.client.Get(opCtx, key).Result()
	switch {
	case err == nil:
		return val, true
	case errors.Is(err, redis.Nil):
		return "", false
	case ctx.Err() != nil:
		// the caller gave up, the backend is not to blame
		return "", false
	}

	c.degrade(err)

	return c.fallbackGet(key)
}

func (c *Cache) fallbackGet(key string) (string, bool) {
	v, ok := c.fallback.Get(key)
	if !ok {
		return "", false
	}

	s, ok := v.(string)
	return s, ok
}

// Set stores value under key for ttl. It never fails the caller.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if c.degraded.Load() {
		c.fallback.Set(key, value, ttl)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opts.OpTimeout)
	defer cancel()

	if err := c.client.Set(opCtx, key, value, ttl).Err(); err != nil {
		if ctx.Err() == nil {
			c.degrade(err)
		}
		c.fallback.Set(key, value, ttl)
	}
}

// Delete removes key from the cache. It never fails the caller.
func (c *Cache) Delete(ctx context.Context, key string) {
	c.fallback.Delete(key)

	if c.degraded.Load() {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opts.OpTimeout)
	defer cancel()

	if err := c.client.Del(opCtx, key).Err(); err != nil && ctx.Err() == nil {
		c.degrade(err)
	}
}

// Ping reports whether the primary backend is serving requests.
func (c *Cache) Ping(ctx context.Context) error {
	const op = "adapter.cache.Cache.Ping"

	if c.Degraded() {
		return fmt.Errorf("%s: %w", op, ErrDegraded)
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opts.OpTimeout)
	defer cancel()

	if err := c.client.Ping(opCtx).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Degraded reports whether requests are served by the in-process fallback.
func (c *Cache) Degraded() bool {
	return c.degraded.Load()
}

// Stats returns hit and miss counters since the cache was created.
func (c *Cache) Stats() entity.CacheStats {
	return entity.CacheStats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Degraded: c.Degraded(),
	}
}

// Close stops the reconnect loop.
func (c *Cache) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *Cache) degrade(err error) {
	if !c.degraded.CompareAndSwap(false, true) {
		return
	}

	c.logger.Warn("redis unavailable, using in-memory cache fallback", slog.Any("err", err))

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.wg.Add(1)
	go c.reconnect()
}

func (c *Cache) reconnect() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.ReconnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.opts.OpTimeout)
			err := c.client.Ping(ctx).Err()
			cancel()

			if err != nil {
				continue
			}

			c.fallback.Flush()
			c.degraded.Store(false)
			c.logger.Info("redis recovered, leaving in-memory cache fallback")
			return
		}
	}
}
