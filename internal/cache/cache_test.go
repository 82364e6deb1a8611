package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetClient(rdb)
	t.Cleanup(func() { SetClient(nil) })
	return mr, rdb
}

type slotPayload struct {
	Slots []string `json:"slots"`
}

func TestAside(t *testing.T) {
	mr, _ := setupRedis(t)
	ctx := context.Background()
	key := SlotConfigKey(7)

	calls := 0
	fetch := func(dest *slotPayload) func() error {
		return func() error {
			calls++
			dest.Slots = []string{"09:00"}
			return nil
		}
	}

	var first slotPayload
	require.NoError(t, Aside(ctx, key, &first, time.Minute, fetch(&first)))
	assert.Equal(t, []string{"09:00"}, first.Slots)
	assert.True(t, mr.Exists(key))

	var second slotPayload
	require.NoError(t, Aside(ctx, key, &second, time.Minute, fetch(&second)))
	assert.Equal(t, 1, calls, "second read is served from Redis")
	assert.Equal(t, first, second)

	InvalidateSlotConfig(ctx, 7)
	assert.False(t, mr.Exists(key))
}

func TestAsideWithoutRedis(t *testing.T) {
	SetClient(nil)
	var dest slotPayload
	err := Aside(context.Background(), "k", &dest, time.Minute, func() error {
		dest.Slots = []string{"10:00"}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, dest.Slots)

	boom := errors.New("db down")
	err = Aside(context.Background(), "k", &dest, time.Minute, func() error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestLeaser(t *testing.T) {
	mr, rdb := setupRedis(t)
	ctx := context.Background()
	leaser := NewLeaser(rdb)
	key := DispatchLeaseKey(42)

	lease, ok, err := leaser.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = leaser.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lease is exclusive")

	require.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists(key))

	again, ok, err := leaser.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// An expired lease taken over by someone else is not released by the old holder.
	mr.FastForward(2 * time.Minute)
	taker, ok, err := leaser.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, again.Release(ctx))
	assert.True(t, mr.Exists(key))
	require.NoError(t, taker.Release(ctx))
	assert.False(t, mr.Exists(key))
}

func TestNewClientUnreachable(t *testing.T) {
	assert.Nil(t, NewClient("127.0.0.1:1"))
	assert.Nil(t, NewClient("redis://%zz"))

	mr := miniredis.RunT(t)
	c := NewClient(mr.Addr())
	require.NotNil(t, c)
	_ = c.Close()
}
