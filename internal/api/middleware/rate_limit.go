package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/monosonet/modcore/internal/moderation/ratelimit"
	"github.com/monosonet/modcore/internal/pkg/metrics"
)

// RateLimit wraps the distributed sliding-window limiter as HTTP
// middleware, same 429 + header contract as a local token bucket but
// backed by ratelimit.Limiter so limits hold across replicas sharing
// Redis. Excludes /health and /metrics.
func RateLimit(limiter *ratelimit.Limiter, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if path == "/health" || path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			key := ratelimit.ClientKey(r.Header.Get("X-Forwarded-For"), r.RemoteAddr)
			if !limiter.Allow(r.Context(), key) {
				metrics.RateLimitDecisionsTotal.WithLabelValues("deny").Inc()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(60*time.Second).Unix(), 10))
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"too many requests, please retry later"}`))
				return
			}
			metrics.RateLimitDecisionsTotal.WithLabelValues("allow").Inc()
			next.ServeHTTP(w, r)
		})
	}
}
