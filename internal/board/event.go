package board

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event kinds carried on the wire. Mutation kinds pass through the
// reducer; presence and lock kinds are handled by the hub directly.
const (
	EventBoardInit         = "board:init"
	EventCardCreate        = "card:create"
	EventCardMove          = "card:move"
	EventCardUpdate        = "card:update"
	EventCardDelete        = "card:delete"
	EventCardComment       = "card:comment"
	EventPresenceJoin      = "presence:join"
	EventPresenceHeartbeat = "presence:heartbeat"
	EventPresenceLeave     = "presence:leave"
	EventEditLock          = "edit:lock"
	EventEditLockOK        = "edit:lock:ok"
	EventEditLockDenied    = "edit:lock:denied"
	EventEditUnlock        = "edit:unlock"
)

// ErrUnknownEvent is returned by Apply for event kinds it does not
// recognize; the board is left untouched.
var ErrUnknownEvent = errors.New("unknown event kind")

// Event is the wire-level unit of synchronization: a kind tag plus a
// kind-specific payload. Payload stays raw until a handler decodes it
// into the matching payload struct.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an Event with the given payload marshaled in place.
func NewEvent(kind string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("board.NewEvent: marshal %s: %w", kind, err)
	}
	return Event{Type: kind, Payload: raw}, nil
}

// MovePayload carries a card:move event.
type MovePayload struct {
	CardID   string `json:"cardId"`
	ColumnID string `json:"columnId"`
	Order    int    `json:"order"`
}

// DeletePayload carries a card:delete event.
type DeletePayload struct {
	CardID string `json:"cardId"`
}

// CardPatch is the partial card carried by card:update. Nil fields are
// left untouched by the merge; ID selects the target card and is never
// written. CreatedAt and Comments are derived state and deliberately
// not representable here.
type CardPatch struct {
	ID          string  `json:"id"`
	ColumnID    *string `json:"columnId,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Order       *int    `json:"order,omitempty"`
}

// LockPayload carries edit:lock / edit:unlock traffic. UserID and
// UserName are filled by the hub on broadcast; client requests send
// only the card id.
type LockPayload struct {
	CardID   string `json:"cardId"`
	UserID   string `json:"userId,omitempty"`
	UserName string `json:"userName,omitempty"`
}

// LeavePayload carries a presence:leave broadcast.
type LeavePayload struct {
	UserID string `json:"userId"`
}

// IsMutation reports whether the event kind passes through the reducer
// and persists a new board snapshot.
func IsMutation(kind string) bool {
	switch kind {
	case EventCardCreate, EventCardMove, EventCardUpdate, EventCardDelete, EventCardComment:
		return true
	}
	return false
}
