package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &Redis{Client: client, KeyPrefix: "test:"}, mr
}

func TestAcquireLockIsExclusive(t *testing.T) {
	r, _ := newTestRedis(t)
	ctx := context.Background()

	first, err := AcquireLock(ctx, r, "sweep-lock", time.Minute)
	require.NoError(t, err)

	_, err = AcquireLock(ctx, r, "sweep-lock", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, first.Release(ctx))

	second, err := AcquireLock(ctx, r, "sweep-lock", time.Minute)
	require.NoError(t, err)
	require.NoError(t, second.Release(ctx))
}

func TestReleaseDoesNotDeleteForeignLease(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	stale, err := AcquireLock(ctx, r, "sweep-lock", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	current, err := AcquireLock(ctx, r, "sweep-lock", time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale.Release(ctx))
	assert.True(t, mr.Exists("test:sweep-lock"))

	require.NoError(t, current.Release(ctx))
	assert.False(t, mr.Exists("test:sweep-lock"))
}

func TestRedisKeyAndPing(t *testing.T) {
	r, _ := newTestRedis(t)
	assert.Equal(t, "test:reservations", r.Key("reservations"))
	assert.NoError(t, r.Ping(context.Background()))

	var missing *Redis
	assert.Error(t, missing.Ping(context.Background()))
}
