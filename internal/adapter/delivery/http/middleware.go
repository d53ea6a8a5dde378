package http

import (
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/render"
	"github.com/vadimbarashkov/shortlink/pkg/ratelimit"
)

type rateLimiter interface {
	Allow(key string) ratelimit.Result
}

// rateLimit rejects clients that exceed the limiter budget with 429.
// It must run after middleware.RealIP so that clients are keyed by their real address.
// A result without a limit means limiting is disabled and no headers are set.
func rateLimit(limiter rateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.Allow(clientKey(r))
			if res.Limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))

				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, tooManyRequestsResponse)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
