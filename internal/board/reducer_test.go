package board_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardsync/boardsync/internal/board"
)

func mustEvent(t *testing.T, kind string, payload any) board.Event {
	t.Helper()
	ev, err := board.NewEvent(kind, payload)
	require.NoError(t, err)
	return ev
}

func testCard() board.Card {
	return board.Card{
		ID:          "card-1",
		ColumnID:    "col-todo",
		Title:       "Write docs",
		Description: "README first",
		Order:       0,
		Comments:    []board.Comment{},
		CreatedAt:   1700000000000,
	}
}

func TestApply_CardCreate(t *testing.T) {
	t.Parallel()

	t.Run("appends card", func(t *testing.T) {
		t.Parallel()

		b := board.DefaultBoard()
		next, err := board.Apply(b, mustEvent(t, board.EventCardCreate, testCard()))
		require.NoError(t, err)
		require.Len(t, next.Cards, 1)
		assert.Equal(t, "card-1", next.Cards[0].ID)
		assert.Equal(t, "col-todo", next.Cards[0].ColumnID)
	})

	t.Run("idempotent on duplicate id", func(t *testing.T) {
		t.Parallel()

		b := board.DefaultBoard()
		ev := mustEvent(t, board.EventCardCreate, testCard())

		once, err := board.Apply(b, ev)
		require.NoError(t, err)
		twice, err := board.Apply(once, ev)
		require.NoError(t, err)

		assert.Equal(t, once, twice)
		assert.Len(t, twice.Cards, 1)
	})

	t.Run("nil comments normalized", func(t *testing.T) {
		t.Parallel()

		c := testCard()
		c.Comments = nil
		next, err := board.Apply(board.DefaultBoard(), mustEvent(t, board.EventCardCreate, c))
		require.NoError(t, err)
		assert.NotNil(t, next.Cards[0].Comments)
	})
}

func TestApply_CardMove(t *testing.T) {
	t.Parallel()

	t.Run("rewrites column and order", func(t *testing.T) {
		t.Parallel()

		b, err := board.Apply(board.DefaultBoard(), mustEvent(t, board.EventCardCreate, testCard()))
		require.NoError(t, err)

		next, err := board.Apply(b, mustEvent(t, board.EventCardMove, board.MovePayload{
			CardID: "card-1", ColumnID: "col-done", Order: 3,
		}))
		require.NoError(t, err)
		assert.Equal(t, "col-done", next.Cards[0].ColumnID)
		assert.Equal(t, 3, next.Cards[0].Order)
		assert.Equal(t, "Write docs", next.Cards[0].Title)
	})

	t.Run("no-op on missing card", func(t *testing.T) {
		t.Parallel()

		b := board.DefaultBoard()
		next, err := board.Apply(b, mustEvent(t, board.EventCardMove, board.MovePayload{
			CardID: "nope", ColumnID: "col-done", Order: 0,
		}))
		require.NoError(t, err)
		assert.Equal(t, b, next)
	})
}

func TestApply_CardUpdate(t *testing.T) {
	t.Parallel()

	seed := func(t *testing.T) *board.Board {
		t.Helper()
		b, err := board.Apply(board.DefaultBoard(), mustEvent(t, board.EventCardCreate, testCard()))
		require.NoError(t, err)
		return b
	}

	t.Run("merges only set fields", func(t *testing.T) {
		t.Parallel()

		title := "Edited"
		next, err := board.Apply(seed(t), mustEvent(t, board.EventCardUpdate, board.CardPatch{
			ID: "card-1", Title: &title,
		}))
		require.NoError(t, err)
		assert.Equal(t, "Edited", next.Cards[0].Title)
		assert.Equal(t, "README first", next.Cards[0].Description)
		assert.Equal(t, "col-todo", next.Cards[0].ColumnID)
	})

	t.Run("identifier and createdAt survive any patch", func(t *testing.T) {
		t.Parallel()

		desc := ""
		next, err := board.Apply(seed(t), mustEvent(t, board.EventCardUpdate, board.CardPatch{
			ID: "card-1", Description: &desc,
		}))
		require.NoError(t, err)
		assert.Equal(t, "card-1", next.Cards[0].ID)
		assert.Equal(t, int64(1700000000000), next.Cards[0].CreatedAt)
		assert.Empty(t, next.Cards[0].Description)
	})

	t.Run("no-op on missing card", func(t *testing.T) {
		t.Parallel()

		b := seed(t)
		title := "x"
		next, err := board.Apply(b, mustEvent(t, board.EventCardUpdate, board.CardPatch{
			ID: "ghost", Title: &title,
		}))
		require.NoError(t, err)
		assert.Equal(t, b, next)
	})
}

func TestApply_CardDelete(t *testing.T) {
	t.Parallel()

	t.Run("removes card", func(t *testing.T) {
		t.Parallel()

		b, err := board.Apply(board.DefaultBoard(), mustEvent(t, board.EventCardCreate, testCard()))
		require.NoError(t, err)

		next, err := board.Apply(b, mustEvent(t, board.EventCardDelete, board.DeletePayload{CardID: "card-1"}))
		require.NoError(t, err)
		assert.Empty(t, next.Cards)
	})

	t.Run("no-op on missing card", func(t *testing.T) {
		t.Parallel()

		b := board.DefaultBoard()
		next, err := board.Apply(b, mustEvent(t, board.EventCardDelete, board.DeletePayload{CardID: "ghost"}))
		require.NoError(t, err)
		assert.Equal(t, b, next)
	})
}

func TestApply_CardComment(t *testing.T) {
	t.Parallel()

	comment := board.Comment{
		ID: "cmt-1", CardID: "card-1", AuthorID: "u1",
		AuthorName: "Ada", Content: "looks good", CreatedAt: 1700000001000,
	}

	t.Run("appends comment", func(t *testing.T) {
		t.Parallel()

		b, err := board.Apply(board.DefaultBoard(), mustEvent(t, board.EventCardCreate, testCard()))
		require.NoError(t, err)

		next, err := board.Apply(b, mustEvent(t, board.EventCardComment, comment))
		require.NoError(t, err)
		require.Len(t, next.Cards[0].Comments, 1)
		assert.Equal(t, "looks good", next.Cards[0].Comments[0].Content)
	})

	t.Run("idempotent on duplicate id", func(t *testing.T) {
		t.Parallel()

		b, err := board.Apply(board.DefaultBoard(), mustEvent(t, board.EventCardCreate, testCard()))
		require.NoError(t, err)

		ev := mustEvent(t, board.EventCardComment, comment)
		once, err := board.Apply(b, ev)
		require.NoError(t, err)
		twice, err := board.Apply(once, ev)
		require.NoError(t, err)

		assert.Equal(t, once, twice)
		assert.Len(t, twice.Cards[0].Comments, 1)
	})

	t.Run("no-op on missing card", func(t *testing.T) {
		t.Parallel()

		b := board.DefaultBoard()
		next, err := board.Apply(b, mustEvent(t, board.EventCardComment, comment))
		require.NoError(t, err)
		assert.Equal(t, b, next)
	})
}

func TestApply_UnknownKind(t *testing.T) {
	t.Parallel()

	b := board.DefaultBoard()
	_, err := board.Apply(b, board.Event{Type: "card:explode", Payload: []byte(`{}`)})
	assert.ErrorIs(t, err, board.ErrUnknownEvent)
}

// The reducer must never touch its input: the snapshot handed in stays
// byte-for-byte usable after the call.
func TestApply_Purity(t *testing.T) {
	t.Parallel()

	b, err := board.Apply(board.DefaultBoard(), mustEvent(t, board.EventCardCreate, testCard()))
	require.NoError(t, err)
	snapshot := b.Clone()

	title := "mutated"
	_, err = board.Apply(b, mustEvent(t, board.EventCardUpdate, board.CardPatch{ID: "card-1", Title: &title}))
	require.NoError(t, err)
	_, err = board.Apply(b, mustEvent(t, board.EventCardDelete, board.DeletePayload{CardID: "card-1"}))
	require.NoError(t, err)
	_, err = board.Apply(b, mustEvent(t, board.EventCardComment, board.Comment{
		ID: "cmt-9", CardID: "card-1", Content: "hi",
	}))
	require.NoError(t, err)

	assert.Equal(t, snapshot, b)
}

// Create-then-move end to end: one card, in col-done at order 0, title
// and description intact.
func TestApply_CreateThenMove(t *testing.T) {
	t.Parallel()

	b, err := board.Apply(board.DefaultBoard(), mustEvent(t, board.EventCardCreate, testCard()))
	require.NoError(t, err)
	b, err = board.Apply(b, mustEvent(t, board.EventCardMove, board.MovePayload{
		CardID: "card-1", ColumnID: "col-done", Order: 0,
	}))
	require.NoError(t, err)

	require.Len(t, b.Cards, 1)
	assert.Equal(t, "col-done", b.Cards[0].ColumnID)
	assert.Equal(t, 0, b.Cards[0].Order)
	assert.Equal(t, "Write docs", b.Cards[0].Title)
	assert.Equal(t, "README first", b.Cards[0].Description)
}
