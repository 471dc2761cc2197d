package loadlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewLocker_InvalidConfig(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectedErr string
	}{
		{"nil client", Config{Key: "k", TTL: time.Minute}, "redis client is required"},
		{"empty key", Config{Client: &redis.Client{}, TTL: time.Minute}, "lock key is required"},
		{"zero ttl", Config{Client: &redis.Client{}, Key: "k"}, "ttl must be greater than 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLocker(tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestAcquireRelease(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	locker, err := NewLocker(DefaultConfig(client))
	require.NoError(t, err)

	lock, err := locker.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, mr.Exists("sigla:load"))
	assert.Equal(t, 10*time.Minute, mr.TTL("sigla:load"))

	holder, err := locker.Holder(ctx)
	require.NoError(t, err)
	assert.Equal(t, lock.Token(), holder)

	_, err = locker.Acquire(ctx)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, lock.Release(ctx))
	assert.False(t, mr.Exists("sigla:load"))

	holder, err = locker.Holder(ctx)
	require.NoError(t, err)
	assert.Empty(t, holder)

	again, err := locker.Acquire(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, lock.Token(), again.Token())
}

func TestRelease_AfterExpiryDoesNotFreeNewHolder(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	locker, err := NewLocker(Config{Client: client, Key: "load", TTL: time.Second})
	require.NoError(t, err)

	stale, err := locker.Acquire(ctx)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	current, err := locker.Acquire(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, stale.Release(ctx), ErrNotHeld)
	assert.ErrorIs(t, stale.Refresh(ctx), ErrNotHeld)

	holder, err := locker.Holder(ctx)
	require.NoError(t, err)
	assert.Equal(t, current.Token(), holder)
}

func TestRefresh(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	locker, err := NewLocker(Config{Client: client, Key: "load", TTL: time.Minute})
	require.NoError(t, err)

	lock, err := locker.Acquire(ctx)
	require.NoError(t, err)

	mr.FastForward(30 * time.Second)
	require.NoError(t, lock.Refresh(ctx))
	assert.Equal(t, time.Minute, mr.TTL("load"))
}

func TestDial(t *testing.T) {
	_, mr := setupTestRedis(t)

	client, err := Dial(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	_, err = Dial(context.Background(), "not a url")
	assert.Error(t, err)
}
