// Package memory is the process-local fallback store used when Redis
// is unreachable at startup. It keeps the same expiry semantics as the
// Redis store via explicit per-record deadlines checked lazily on
// access, but offers no cross-instance visibility.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/boardsync/boardsync/internal/board"
	"github.com/boardsync/boardsync/internal/store"
)

type presenceEntry struct {
	user     board.User
	deadline time.Time
}

type lockEntry struct {
	lock     store.Lock
	deadline time.Time
}

// Store is an in-memory store.Store. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	board    *board.Board
	presence map[string]presenceEntry
	locks    map[string]lockEntry
	now      func() time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		presence: make(map[string]presenceEntry),
		locks:    make(map[string]lockEntry),
		now:      time.Now,
	}
}

// SetClock overrides the time source. Test hook only.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) GetBoard(_ context.Context) (*board.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.board == nil {
		return board.DefaultBoard(), nil
	}
	return s.board.Clone(), nil
}

func (s *Store) SetBoard(_ context.Context, b *board.Board) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.board = b.Clone()
	return nil
}

func (s *Store) SetPresence(_ context.Context, user board.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence[user.ID] = presenceEntry{user: user, deadline: s.now().Add(store.PresenceTTL)}
	return nil
}

func (s *Store) RemovePresence(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.presence, userID)
	return nil
}

func (s *Store) ListPresence(_ context.Context) ([]board.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire()
	users := make([]board.User, 0, len(s.presence))
	for _, e := range s.presence {
		users = append(users, e.user)
	}
	return users, nil
}

func (s *Store) AcquireLock(_ context.Context, cardID, userID, userName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire()
	if e, ok := s.locks[cardID]; ok && e.lock.UserID != userID {
		return false, nil
	}
	s.locks[cardID] = lockEntry{
		lock:     store.Lock{UserID: userID, UserName: userName},
		deadline: s.now().Add(store.LockTTL),
	}
	return true, nil
}

func (s *Store) ReleaseLock(_ context.Context, cardID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.locks[cardID]; ok && e.lock.UserID == userID {
		delete(s.locks, cardID)
	}
	return nil
}

func (s *Store) ListLocks(_ context.Context) (map[string]store.Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire()
	locks := make(map[string]store.Lock, len(s.locks))
	for cardID, e := range s.locks {
		locks[cardID] = e.lock
	}
	return locks, nil
}

// expire drops stale records. Callers hold s.mu.
func (s *Store) expire() {
	now := s.now()
	for id, e := range s.presence {
		if e.deadline.Before(now) {
			delete(s.presence, id)
		}
	}
	for id, e := range s.locks {
		if e.deadline.Before(now) {
			delete(s.locks, id)
		}
	}
}
