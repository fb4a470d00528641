// Package ratelimit implements a distributed sliding-window-log rate
// limiter backed by a shared Redis-compatible counter store, grounded on
// original_source's api/middleware.rs LUA_SLIDING_WINDOW script.
package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// slidingWindowScript removes entries older than the window, checks
// cardinality against limit, and, if admitted, records this request's
// timestamp and refreshes the key's expiry, all atomically in one EVAL.
// Ported line for line from original_source's LUA_SLIDING_WINDOW.
const slidingWindowScript = `
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local min_ms = now_ms - window_ms
redis.call('ZREMRANGEBYSCORE', key, 0, min_ms)
local count = redis.call('ZCARD', key)
if count >= limit then
  return {0, count}
end
redis.call('ZADD', key, now_ms, tostring(now_ms))
redis.call('PEXPIRE', key, window_ms)
count = count + 1
return {1, count}
`

// Client is the narrow slice of *redis.Client the limiter depends on,
// letting callers substitute any go-redis-compatible connection
// (cluster client, ring, or a miniredis-backed client in tests).
type Client interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Limiter decides, given (client_key, window, limit), whether a request is
// admitted or denied, globally consistent across instances sharing the
// same counter store.
type Limiter struct {
	client Client
	window time.Duration
	limit  int
	logger zerolog.Logger
}

// NewLimiter builds a Limiter executing the sliding-window script against
// client for every Allow call.
func NewLimiter(client Client, window time.Duration, limit int, logger zerolog.Logger) *Limiter {
	return &Limiter{client: client, window: window, limit: limit, logger: logger}
}

// Allow reports whether a request from key is admitted. Any counter-store
// error is logged and fails open: availability beats strict enforcement.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	nowMs := time.Now().UnixMilli()
	windowMs := l.window.Milliseconds()

	cmd := l.client.Eval(ctx, slidingWindowScript, []string{"rate:" + key}, nowMs, windowMs, l.limit)
	result, err := cmd.Result()
	if err != nil {
		l.logger.Warn().Err(err).Str("key", key).Msg("rate limiter counter store error, failing open")
		return true
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 1 {
		l.logger.Warn().Str("key", key).Msg("rate limiter script returned unexpected shape, failing open")
		return true
	}

	allowed, ok := values[0].(int64)
	if !ok {
		l.logger.Warn().Str("key", key).Msg("rate limiter script returned non-integer admit flag, failing open")
		return true
	}

	return allowed == 1
}

// ClientKey derives the rate-limiter identity from a forwarded-for header
// value and a peer address: the first value of x-forwarded-for if
// present, else the peer address, else "unknown".
func ClientKey(forwardedFor, peerAddr string) string {
	if forwardedFor != "" {
		first := strings.TrimSpace(strings.Split(forwardedFor, ",")[0])
		if first != "" {
			return first
		}
	}
	if peerAddr != "" {
		return peerAddr
	}
	return "unknown"
}
