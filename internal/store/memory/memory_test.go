package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardsync/boardsync/internal/board"
	"github.com/boardsync/boardsync/internal/store"
	"github.com/boardsync/boardsync/internal/store/memory"
)

func TestStore_Board(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.New()

	b, err := s.GetBoard(ctx)
	require.NoError(t, err)
	assert.Equal(t, board.DefaultBoard(), b)

	b.Cards = append(b.Cards, board.Card{ID: "card-1", ColumnID: "col-todo", Comments: []board.Comment{}})
	require.NoError(t, s.SetBoard(ctx, b))

	got, err := s.GetBoard(ctx)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	// The store must hold its own copy, not alias the caller's.
	b.Cards[0].Title = "mutated after set"
	got2, err := s.GetBoard(ctx)
	require.NoError(t, err)
	assert.Empty(t, got2.Cards[0].Title)
}

func TestStore_PresenceExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.New()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.SetPresence(ctx, board.User{ID: "u1", Name: "Ada"}))

	users, err := s.ListPresence(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)

	now = now.Add(store.PresenceTTL + time.Second)
	users, err = s.ListPresence(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestStore_Locks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("mutual exclusion scenario", func(t *testing.T) {
		t.Parallel()
		s := memory.New()

		ok, err := s.AcquireLock(ctx, "c1", "userA", "Ada")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.AcquireLock(ctx, "c1", "userB", "Bob")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.ReleaseLock(ctx, "c1", "userA"))

		ok, err = s.AcquireLock(ctx, "c1", "userB", "Bob")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("expiry frees the lock", func(t *testing.T) {
		t.Parallel()
		s := memory.New()

		now := time.Now()
		s.SetClock(func() time.Time { return now })

		ok, err := s.AcquireLock(ctx, "c1", "userA", "Ada")
		require.NoError(t, err)
		require.True(t, ok)

		now = now.Add(store.LockTTL + time.Second)

		ok, err = s.AcquireLock(ctx, "c1", "userB", "Bob")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("non-holder release ignored", func(t *testing.T) {
		t.Parallel()
		s := memory.New()

		ok, err := s.AcquireLock(ctx, "c1", "userA", "Ada")
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, s.ReleaseLock(ctx, "c1", "userB"))

		locks, err := s.ListLocks(ctx)
		require.NoError(t, err)
		assert.Contains(t, locks, "c1")
	})
}
