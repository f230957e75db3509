package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLock(t *testing.T) {
	h := NewRedisTestHelper(t)
	ctx := context.Background()
	key := h.Prefix() + ":trainer"
	t.Cleanup(func() { _ = h.Client().Client().Del(ctx, "lock:"+key).Err() })

	first, err := h.Client().AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := h.Client().AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, second, "lock is already held")

	require.NoError(t, h.Client().ReleaseLock(ctx, first))

	third, err := h.Client().AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, third)
	require.NoError(t, h.Client().ReleaseLock(ctx, third))
}

func TestRedisLock_StaleHolderCannotRelease(t *testing.T) {
	h := NewRedisTestHelper(t)
	ctx := context.Background()
	key := h.Prefix() + ":stale"
	t.Cleanup(func() { _ = h.Client().Client().Del(ctx, "lock:"+key).Err() })

	stale, err := h.Client().AcquireLock(ctx, key, 50*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, stale)
	time.Sleep(100 * time.Millisecond)

	current, err := h.Client().AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, current)

	require.NoError(t, h.Client().ReleaseLock(ctx, stale))
	again, err := h.Client().AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, again, "stale release must not free the current holder's lock")
}
