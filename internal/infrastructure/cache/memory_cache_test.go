package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewMemoryCache(WithMemoryClock(clock))
	defer c.Close()

	ctx := context.Background()

	t.Run("round trips values", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "analytics:preset:7d", cachedOverview{TotalOrders: 3}, time.Hour))

		var out cachedOverview
		found, err := c.Get(ctx, "analytics:preset:7d", &out)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, int64(3), out.TotalOrders)
	})

	t.Run("expires entries", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "analytics:trend:x", 1, time.Minute))
		clock.Advance(time.Minute)

		var out int
		found, err := c.Get(ctx, "analytics:trend:x", &out)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("deletes by prefix", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "analytics:overview:a", 1, time.Hour))
		require.NoError(t, c.Set(ctx, "analytics:overview:b", 1, time.Hour))
		require.NoError(t, c.Set(ctx, "analytics:top:a", 1, time.Hour))

		n, err := c.DeleteByPrefix(ctx, "analytics:overview:")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		var out int
		found, _ := c.Get(ctx, "analytics:top:a", &out)
		assert.True(t, found)
	})

	t.Run("cleanup drops expired entries", func(t *testing.T) {
		before := c.Size()
		require.NoError(t, c.Set(ctx, "analytics:short", 1, time.Second))
		clock.Advance(2 * time.Second)
		c.cleanup()
		assert.LessOrEqual(t, c.Size(), before)
	})
}

func TestMemoryCache_CloseIsIdempotent(t *testing.T) {
	c := NewMemoryCache()
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
