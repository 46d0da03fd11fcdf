// Package v1 exposes a read-only operations API over the hub's state:
// the current board snapshot, who is online, and which cards are
// locked. All mutation flows through the websocket event pipeline;
// nothing here writes.
package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/boardsync/boardsync/internal/board"
	"github.com/boardsync/boardsync/internal/store"
)

type GetBoardOutput struct {
	Body *board.Board
}

type PresenceBody struct {
	Users []board.User `json:"users"`
}

type GetPresenceOutput struct {
	Body *PresenceBody
}

type LocksBody struct {
	Locks map[string]store.Lock `json:"locks"`
}

type GetLocksOutput struct {
	Body *LocksBody
}

func RegisterBoardRoutes(api huma.API, st store.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "get-board",
		Method:      http.MethodGet,
		Path:        "/board",
		Summary:     "Get the current board snapshot",
		Tags:        []string{"Board"},
	}, func(ctx context.Context, _ *struct{}) (*GetBoardOutput, error) {
		b, err := st.GetBoard(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load board", err)
		}
		return &GetBoardOutput{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-presence",
		Method:      http.MethodGet,
		Path:        "/presence",
		Summary:     "List currently online users",
		Tags:        []string{"Presence"},
	}, func(ctx context.Context, _ *struct{}) (*GetPresenceOutput, error) {
		users, err := st.ListPresence(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list presence", err)
		}
		if users == nil {
			users = []board.User{}
		}
		return &GetPresenceOutput{Body: &PresenceBody{Users: users}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-locks",
		Method:      http.MethodGet,
		Path:        "/locks",
		Summary:     "List active edit locks by card id",
		Tags:        []string{"Locks"},
	}, func(ctx context.Context, _ *struct{}) (*GetLocksOutput, error) {
		locks, err := st.ListLocks(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list locks", err)
		}
		return &GetLocksOutput{Body: &LocksBody{Locks: locks}}, nil
	})
}
