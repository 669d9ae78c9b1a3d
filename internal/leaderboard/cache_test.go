package leaderboard

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/radieske/office-betting-pool/internal/ledger"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	return New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestCacheTop(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	t.Run("empty ranking reports ok=false", func(t *testing.T) {
		standings, ok, err := c.Top(ctx, 0)
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, standings)
	})

	for name, tokens := range map[string]int64{"alice": 100, "bob": 150, "carol": 60} {
		assert.NoError(t, c.Set(ctx, name, tokens))
	}

	t.Run("n=0 returns the whole ranking, last position included", func(t *testing.T) {
		standings, ok, err := c.Top(ctx, 0)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []ledger.Standing{
			{Name: "bob", Tokens: 150},
			{Name: "alice", Tokens: 100},
			{Name: "carol", Tokens: 60},
		}, standings)
	})

	t.Run("n limits the result", func(t *testing.T) {
		standings, ok, err := c.Top(ctx, 2)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []ledger.Standing{
			{Name: "bob", Tokens: 150},
			{Name: "alice", Tokens: 100},
		}, standings)
	})

	t.Run("n=1 returns only the leader", func(t *testing.T) {
		standings, _, err := c.Top(ctx, 1)
		assert.NoError(t, err)
		assert.Equal(t, []ledger.Standing{{Name: "bob", Tokens: 150}}, standings)
	})

	t.Run("set updates the score in place", func(t *testing.T) {
		assert.NoError(t, c.Set(ctx, "carol", 200))
		standings, _, err := c.Top(ctx, 1)
		assert.NoError(t, err)
		assert.Equal(t, "carol", standings[0].Name)
		assert.NoError(t, c.Set(ctx, "carol", 60))
	})

	t.Run("remove drops the member", func(t *testing.T) {
		assert.NoError(t, c.Remove(ctx, "bob"))
		standings, ok, err := c.Top(ctx, 0)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []ledger.Standing{
			{Name: "alice", Tokens: 100},
			{Name: "carol", Tokens: 60},
		}, standings)
	})
}
