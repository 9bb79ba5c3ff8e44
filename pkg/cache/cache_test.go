package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pendingState struct {
	Provider string `json:"provider"`
}

func setupCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewCache(client), mr
}

func TestTake(t *testing.T) {
	ctx := context.Background()

	t.Run("returns value once then misses", func(t *testing.T) {
		c, _ := setupCache(t)
		key := OAuthStateKey("abc")

		require.NoError(t, c.Set(ctx, key, pendingState{Provider: "google"}, time.Minute))

		var got pendingState
		require.NoError(t, c.Take(ctx, key, &got))
		assert.Equal(t, "google", got.Provider)

		err := c.Take(ctx, key, &got)
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("expired key is a miss", func(t *testing.T) {
		c, mr := setupCache(t)
		key := OAuthStateKey("old")

		require.NoError(t, c.Set(ctx, key, pendingState{Provider: "facebook"}, time.Minute))
		mr.FastForward(2 * time.Minute)

		var got pendingState
		assert.ErrorIs(t, c.Take(ctx, key, &got), ErrCacheMiss)
	})

	t.Run("corrupt value returns unmarshal error", func(t *testing.T) {
		c, mr := setupCache(t)
		require.NoError(t, mr.Set(OAuthStateKey("bad"), "not-json"))

		var got pendingState
		err := c.Take(ctx, OAuthStateKey("bad"), &got)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unmarshal error")
	})
}

func TestSet(t *testing.T) {
	t.Run("applies ttl", func(t *testing.T) {
		c, mr := setupCache(t)
		key := OAuthStateKey("ttl")

		require.NoError(t, c.Set(context.Background(), key, pendingState{Provider: "google"}, 10*time.Minute))

		assert.Equal(t, 10*time.Minute, mr.TTL(key))
	})

	t.Run("rejects unmarshalable values", func(t *testing.T) {
		c, _ := setupCache(t)

		err := c.Set(context.Background(), "k", make(chan int), time.Minute)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "marshal error")
	})
}

func TestOAuthStateKey(t *testing.T) {
	assert.Equal(t, "oauth_state:xyz", OAuthStateKey("xyz"))
}
