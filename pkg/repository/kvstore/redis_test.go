package kvstore_test

import (
	"context"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/haeso-app/haeso-api/pkg/repository/kvstore"
)

func newRedisStore(t *testing.T) *kvstore.RedisStore {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	store := kvstore.NewRedisStoreFromClient(client)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()

	t.Run("get on a missing key reports absence", func(t *testing.T) {
		store := newRedisStore(t)

		value, ok, err := store.Get(ctx, "nope")
		require.NoError(t, err)
		require.False(t, ok)
		require.Nil(t, value)
	})

	t.Run("set then get round-trips the value", func(t *testing.T) {
		store := newRedisStore(t)

		require.NoError(t, store.Set(ctx, "usage_2026-08-28", []byte(`{"gpt":3}`)))

		value, ok, err := store.Get(ctx, "usage_2026-08-28")
		require.NoError(t, err)
		require.True(t, ok)
		require.JSONEq(t, `{"gpt":3}`, string(value))
	})

	t.Run("set overwrites an existing value", func(t *testing.T) {
		store := newRedisStore(t)

		require.NoError(t, store.Set(ctx, "k", []byte("one")))
		require.NoError(t, store.Set(ctx, "k", []byte("two")))

		value, ok, err := store.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte("two"), value)
	})

	t.Run("delete removes the key", func(t *testing.T) {
		store := newRedisStore(t)

		require.NoError(t, store.Set(ctx, "k", []byte("v")))
		require.NoError(t, store.Delete(ctx, "k"))

		_, ok, err := store.Get(ctx, "k")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("delete on a missing key is a no-op", func(t *testing.T) {
		store := newRedisStore(t)
		require.NoError(t, store.Delete(ctx, "nope"))
	})

	t.Run("keys lists only the matching prefix", func(t *testing.T) {
		store := newRedisStore(t)

		require.NoError(t, store.Set(ctx, "usage_2026-08-27", []byte("{}")))
		require.NoError(t, store.Set(ctx, "usage_2026-08-28", []byte("{}")))
		require.NoError(t, store.Set(ctx, "emotionHistory", []byte("[]")))

		keys, err := store.Keys(ctx, "usage_")
		require.NoError(t, err)
		sort.Strings(keys)
		require.Equal(t, []string{"usage_2026-08-27", "usage_2026-08-28"}, keys)
	})
}
