package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	cache := identity.NewMemoryCache()

	t.Run("miss on unknown key", func(t *testing.T) {
		_, err := cache.Get(ctx, "nope")
		assert.ErrorIs(t, err, identity.ErrCacheMiss)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))

		val, err := cache.Get(ctx, "key")
		require.NoError(t, err)
		assert.Equal(t, "value", val)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "gone", "value", time.Minute))
		require.NoError(t, cache.Delete(ctx, "gone"))

		_, err := cache.Get(ctx, "gone")
		assert.ErrorIs(t, err, identity.ErrCacheMiss)
	})

	t.Run("entries expire", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "ttl", "value", 5*time.Millisecond))
		time.Sleep(20 * time.Millisecond)

		_, err := cache.Get(ctx, "ttl")
		assert.ErrorIs(t, err, identity.ErrCacheMiss)
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "forever", "value", 0))

		val, err := cache.Get(ctx, "forever")
		require.NoError(t, err)
		assert.Equal(t, "value", val)
	})
}
