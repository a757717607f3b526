package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T) *AdvisoryLock {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewAdvisoryLock(client, time.Minute)
}

func TestAdvisoryLockSingleWriter(t *testing.T) {
	lock := newTestLock(t)
	ctx := context.Background()
	key := CatchupLockKey(7)

	require.NoError(t, lock.Acquire(ctx, key, "run-a"))
	err := lock.Acquire(ctx, key, "run-b")
	require.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, lock.Release(ctx, key, "run-a"))
	require.NoError(t, lock.Acquire(ctx, key, "run-b"))
}

func TestAdvisoryLockReleaseOnlyOwner(t *testing.T) {
	lock := newTestLock(t)
	ctx := context.Background()
	key := RepairLockKey(7, Period{Year: 2023, Month: time.July})

	require.NoError(t, lock.Acquire(ctx, key, "owner"))
	// A non-owner release is a no-op.
	require.NoError(t, lock.Release(ctx, key, "stranger"))
	require.ErrorIs(t, lock.Acquire(ctx, key, "stranger"), ErrLockHeld)
}
