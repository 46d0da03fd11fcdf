// Package store abstracts durable storage of board state, presence
// records, and edit locks. Two implementations exist: a Redis-backed
// one shared by every hub instance, and a process-local in-memory
// fallback chosen at startup when Redis is unreachable.
package store

import (
	"context"
	"time"

	"github.com/boardsync/boardsync/internal/board"
)

// Expiry horizons. A presence record vanishes 30s after its last
// heartbeat; an edit lock 120s after its last (re-)acquire.
const (
	PresenceTTL = 30 * time.Second
	LockTTL     = 120 * time.Second
)

// Lock records the current holder of a card's edit lock.
type Lock struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// Store is the uniform storage contract both backends satisfy.
//
// AcquireLock must be atomic: the holder check and the write happen as
// one conditional operation, so two racing acquires for the same card
// can never both succeed. It returns true when no lock exists or the
// existing holder is the caller (re-acquire refreshes the TTL), false
// when another user holds the lock. ReleaseLock removes the lock only
// if the caller holds it.
type Store interface {
	GetBoard(ctx context.Context) (*board.Board, error)
	SetBoard(ctx context.Context, b *board.Board) error

	SetPresence(ctx context.Context, user board.User) error
	RemovePresence(ctx context.Context, userID string) error
	ListPresence(ctx context.Context) ([]board.User, error)

	AcquireLock(ctx context.Context, cardID, userID, userName string) (bool, error)
	ReleaseLock(ctx context.Context, cardID, userID string) error
	ListLocks(ctx context.Context) (map[string]Lock, error)
}
