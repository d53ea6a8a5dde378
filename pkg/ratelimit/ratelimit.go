// Package ratelimit implements a per-client sliding-window request limiter.
package ratelimit

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Result describes the outcome of a single Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is how long a rejected client has to wait for the oldest request to leave the window.
	RetryAfter time.Duration
}

// Limiter allows at most maxRequests per client within any window of the given length.
// Request times are kept per key and dropped one window after the last request.
// A limiter with a non-positive limit or window is disabled and allows every request.
type Limiter struct {
	maxRequests int
	window      time.Duration
	now         func() time.Time

	mu      sync.Mutex
	clients *gocache.Cache
}

func New(maxRequests int, window time.Duration) *Limiter {
	if maxRequests <= 0 || window <= 0 {
		return &Limiter{now: time.Now}
	}

	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		clients:     gocache.New(window, window),
	}
}

// Allow records a request for key and reports whether it fits in the window.
// Rejected requests are not recorded.
func (l *Limiter) Allow(key string) Result {
	if !l.Enabled() {
		return Result{Allowed: true}
	}

	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	var log []time.Time
	if v, ok := l.clients.Get(key); ok {
		log = v.([]time.Time)
	}

	// drop requests that have left the window
	i := 0
	for i < len(log) && !log[i].After(cutoff) {
		i++
	}
	log = log[i:]

	if len(log) >= l.maxRequests {
		l.clients.Set(key, log, l.window)

		retryAfter := log[0].Add(l.window).Sub(now)
		if retryAfter <= 0 {
			retryAfter = time.Nanosecond
		}

		return Result{
			Allowed:    false,
			Limit:      l.maxRequests,
			Remaining:  0,
			RetryAfter: retryAfter,
		}
	}

	log = append(log, now)
	l.clients.Set(key, log, l.window)

	return Result{
		Allowed:   true,
		Limit:     l.maxRequests,
		Remaining: l.maxRequests - len(log),
	}
}

// Enabled reports whether the limiter enforces a limit.
func (l *Limiter) Enabled() bool {
	return l.clients != nil
}
