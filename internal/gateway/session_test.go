package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisStore(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisSessionStore(client, zap.NewNop())
	t.Cleanup(func() {
		store.Close()
		client.Close()
	})
	return store, mr
}

func TestRedisNonceIsSingleUse(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutNonce(ctx, "0xABCdef", "n-1", time.Minute))
	assert.True(t, mr.Exists("nonce:0xabcdef"))

	nonce, ok, err := store.TakeNonce(ctx, "0xabcDEF")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "n-1", nonce)

	_, ok, err = store.TakeNonce(ctx, "0xabcdef")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisNonceExpires(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutNonce(ctx, "0x01", "n", 5*time.Second))
	mr.FastForward(6 * time.Second)

	_, ok, err := store.TakeNonce(ctx, "0x01")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisSessionLifecycle(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutSession(ctx, "sid", "0xAlice", time.Hour))
	addr, ok, err := store.Session(ctx, "sid")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "0xAlice", addr)
	assert.Equal(t, time.Hour, mr.TTL("session:sid"))

	require.NoError(t, store.DeleteSession(ctx, "sid"))
	_, ok, err = store.Session(ctx, "sid")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisFallsBackToMemory(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	mr.Close()

	require.NoError(t, store.PutSession(ctx, "sid", "0xBob", time.Hour))
	addr, ok, err := store.Session(ctx, "sid")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "0xBob", addr)

	require.NoError(t, store.PutNonce(ctx, "0xbob", "n", time.Minute))
	nonce, ok, err := store.TakeNonce(ctx, "0xbob")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "n", nonce)
}

func TestNewSessionStoreWithoutRedis(t *testing.T) {
	store := NewSessionStore(nil, zap.NewNop())
	defer store.Close()
	_, ok := store.(*MemorySessionStore)
	assert.True(t, ok)
}
