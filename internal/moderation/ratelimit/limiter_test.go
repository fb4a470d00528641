package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, window time.Duration, limit int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLimiter(client, window, limit, zerolog.Nop()), server
}

func TestLimiter_AllowsUpToLimitThenDenies(t *testing.T) {
	limiter, _ := newTestLimiter(t, time.Second, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(ctx, "client-a"))
	}
	assert.False(t, limiter.Allow(ctx, "client-a"))
	assert.False(t, limiter.Allow(ctx, "client-a"))
}

func TestLimiter_WindowResetAdmitsAgain(t *testing.T) {
	limiter, server := newTestLimiter(t, 200*time.Millisecond, 2)
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "client-b"))
	assert.True(t, limiter.Allow(ctx, "client-b"))
	assert.False(t, limiter.Allow(ctx, "client-b"))

	server.FastForward(250 * time.Millisecond)

	assert.True(t, limiter.Allow(ctx, "client-b"))
}

func TestLimiter_ConcurrentClientsShareOneKeyRespectLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, time.Second, 5)
	ctx := context.Background()

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow(ctx, "shared-key") {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, admitted.Load(), int64(5))
}

func TestLimiter_FailsOpenWhenStoreUnreachable(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	server.Close()

	limiter := NewLimiter(client, time.Second, 1, zerolog.Nop())
	assert.True(t, limiter.Allow(context.Background(), "any-key"))
}

func TestClientKey(t *testing.T) {
	require.Equal(t, "1.2.3.4", ClientKey("1.2.3.4, 5.6.7.8", "9.9.9.9:1234"))
	require.Equal(t, "9.9.9.9:1234", ClientKey("", "9.9.9.9:1234"))
	require.Equal(t, "unknown", ClientKey("", ""))
}
