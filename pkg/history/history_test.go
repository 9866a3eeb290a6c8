package history_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/haeso-app/haeso-api/pkg/domain"
	"github.com/haeso-app/haeso-api/pkg/history"
	"github.com/haeso-app/haeso-api/pkg/repository/kvstore"
)

func newStore(t *testing.T) *history.Store {
	t.Helper()
	return history.NewStore(kvstore.NewMemoryStore(), zerolog.Nop())
}

func TestAppendCapsAtTwenty(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for i := 1; i <= history.MaxEntries+1; i++ {
		_, err := s.Append(ctx, "u1", fmt.Sprintf("situation %d", i), domain.ModeLight, fmt.Sprintf("response %d", i))
		require.NoError(t, err)
	}

	entries, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, history.MaxEntries)

	// Newest first, oldest (entry 1) evicted.
	require.Equal(t, "situation 21", entries[0].UserInput)
	require.Equal(t, "situation 2", entries[len(entries)-1].UserInput)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	first, err := s.Append(ctx, "u1", "one", domain.ModeLight, "r1")
	require.NoError(t, err)
	_, err = s.Append(ctx, "u1", "two", domain.ModeHard, "r2")
	require.NoError(t, err)

	require.NoError(t, s.Remove(ctx, "u1", first.ID))

	entries, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "two", entries[0].UserInput)

	// Unknown ids are a no-op.
	require.NoError(t, s.Remove(ctx, "u1", "does-not-exist"))
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Append(ctx, "u1", "one", domain.ModeLight, "r1")
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx, "u1"))

	entries, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestAnonymousAndUserBucketsAreSeparate(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Append(ctx, "", "anon situation", domain.ModeLight, "r")
	require.NoError(t, err)
	_, err = s.Append(ctx, "u1", "user situation", domain.ModeLight, "r")
	require.NoError(t, err)

	anon, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, anon, 1)
	require.Equal(t, "anon situation", anon[0].UserInput)

	user, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, user, 1)
	require.Equal(t, "user situation", user[0].UserInput)
}
