package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/boardsync/boardsync/internal/api/v1"
	"github.com/boardsync/boardsync/internal/board"
	"github.com/boardsync/boardsync/internal/store"
	"github.com/boardsync/boardsync/internal/store/memory"
)

func TestGetBoard(t *testing.T) {
	t.Parallel()

	st := memory.New()
	_, api := humatest.New(t)
	v1.RegisterBoardRoutes(api, st)

	t.Run("default board when nothing stored", func(t *testing.T) {
		resp := api.Get("/board")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), `"board-1"`)
		assert.Contains(t, resp.Body.String(), `"col-todo"`)
	})

	t.Run("reflects stored snapshot", func(t *testing.T) {
		b := board.DefaultBoard()
		b.Cards = append(b.Cards, board.Card{
			ID: "card-1", ColumnID: "col-todo", Title: "Ship it",
			Comments: []board.Comment{},
		})
		require.NoError(t, st.SetBoard(context.Background(), b))

		resp := api.Get("/board")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), `"Ship it"`)
	})
}

func TestGetPresence(t *testing.T) {
	t.Parallel()

	st := memory.New()
	_, api := humatest.New(t)
	v1.RegisterBoardRoutes(api, st)

	t.Run("empty list when nobody online", func(t *testing.T) {
		resp := api.Get("/presence")
		require.Equal(t, http.StatusOK, resp.Code)

		var body v1.PresenceBody
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Empty(t, body.Users)
	})

	t.Run("lists online users", func(t *testing.T) {
		require.NoError(t, st.SetPresence(context.Background(), board.User{ID: "u1", Name: "Ada", Color: "#f00"}))

		resp := api.Get("/presence")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), `"Ada"`)
	})
}

func TestGetLocks(t *testing.T) {
	t.Parallel()

	st := memory.New()
	_, api := humatest.New(t)
	v1.RegisterBoardRoutes(api, st)

	ok, err := st.AcquireLock(context.Background(), "c1", "u1", "Ada")
	require.NoError(t, err)
	require.True(t, ok)

	resp := api.Get("/locks")
	require.Equal(t, http.StatusOK, resp.Code)

	var body v1.LocksBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]store.Lock{"c1": {UserID: "u1", UserName: "Ada"}}, body.Locks)
}
