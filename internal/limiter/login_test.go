package limiter

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, cfg Config) (*LoginLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewLoginLimiter(rdb, cfg), mr
}

func TestLoginLimiterBlocksAfterThreshold(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, Config{MaxFailures: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "a@x.com")
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i)
		require.NoError(t, l.RecordFailure(ctx, "a@x.com"))
	}

	ok, err := l.Allow(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := l.Allow(ctx, "b@x.com")
	require.NoError(t, err)
	assert.True(t, other)
}

func TestLoginLimiterWindowExpires(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLimiter(t, Config{MaxFailures: 1, Window: time.Minute})

	require.NoError(t, l.RecordFailure(ctx, "a@x.com"))
	ok, _ := l.Allow(ctx, "a@x.com")
	assert.False(t, ok)

	mr.FastForward(time.Minute + time.Second)

	ok, err := l.Allow(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoginLimiterReset(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, Config{MaxFailures: 1, Window: time.Minute})

	require.NoError(t, l.RecordFailure(ctx, "a@x.com"))
	require.NoError(t, l.Reset(ctx, "a@x.com"))

	ok, err := l.Allow(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoginLimiterKeyHidesEmail(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLimiter(t, Config{MaxFailures: 1, Window: time.Minute})

	require.NoError(t, l.RecordFailure(ctx, "a@x.com"))
	for _, k := range mr.Keys() {
		assert.False(t, strings.Contains(k, "a@x.com"), k)
		assert.True(t, strings.HasPrefix(k, "login_fail:"), k)
	}
}

func TestLoginLimiterBackendDown(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLimiter(t, Config{MaxFailures: 1, Window: time.Minute})
	mr.Close()

	ok, err := l.Allow(ctx, "a@x.com")
	assert.ErrorIs(t, err, ErrLimiterUnavailable)
	assert.True(t, ok)
	assert.ErrorIs(t, l.RecordFailure(ctx, "a@x.com"), ErrLimiterUnavailable)
}
