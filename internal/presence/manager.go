// Package presence tracks online users and arbitrates per-card edit
// locks on top of the state store. It also runs the reaper that turns
// silent heartbeat expiry into an explicit leave with lock cascade.
package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/boardsync/boardsync/internal/board"
	"github.com/boardsync/boardsync/internal/store"
)

// Manager owns presence and lock transitions. Expiry of the underlying
// records is enforced by the store (TTL keys in Redis, deadline checks
// in memory); the Manager adds the cascade semantics on top: leaving,
// by any path, releases every lock the user held.
type Manager struct {
	store store.Store

	mu       sync.Mutex
	lastSeen map[string]time.Time // users joined through this instance
}

// NewManager creates a Manager over the given store.
func NewManager(st store.Store) *Manager {
	return &Manager{
		store:    st,
		lastSeen: make(map[string]time.Time),
	}
}

// Join marks a user online and starts tracking their heartbeats.
func (m *Manager) Join(ctx context.Context, user board.User) error {
	if err := m.store.SetPresence(ctx, user); err != nil {
		return fmt.Errorf("presence.Manager.Join: %w", err)
	}
	m.mu.Lock()
	m.lastSeen[user.ID] = time.Now()
	m.mu.Unlock()
	return nil
}

// Heartbeat refreshes a user's presence record and expiry horizon.
func (m *Manager) Heartbeat(ctx context.Context, user board.User) error {
	if err := m.store.SetPresence(ctx, user); err != nil {
		return fmt.Errorf("presence.Manager.Heartbeat: %w", err)
	}
	m.mu.Lock()
	m.lastSeen[user.ID] = time.Now()
	m.mu.Unlock()
	return nil
}

// Leave removes a user's presence and releases every lock they held.
// It returns the card ids whose locks were released so the caller can
// notify other clients.
func (m *Manager) Leave(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	delete(m.lastSeen, userID)
	m.mu.Unlock()

	if err := m.store.RemovePresence(ctx, userID); err != nil {
		return nil, fmt.Errorf("presence.Manager.Leave: %w", err)
	}
	released, err := m.releaseAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("presence.Manager.Leave: %w", err)
	}
	return released, nil
}

// Acquire attempts to take the edit lock on a card. A false result is
// a normal denial, not an error.
func (m *Manager) Acquire(ctx context.Context, cardID, userID, userName string) (bool, error) {
	ok, err := m.store.AcquireLock(ctx, cardID, userID, userName)
	if err != nil {
		return false, fmt.Errorf("presence.Manager.Acquire: %w", err)
	}
	return ok, nil
}

// Release gives up the edit lock on a card. Releasing a lock the user
// does not hold is a no-op.
func (m *Manager) Release(ctx context.Context, cardID, userID string) error {
	if err := m.store.ReleaseLock(ctx, cardID, userID); err != nil {
		return fmt.Errorf("presence.Manager.Release: %w", err)
	}
	return nil
}

// CardDeleted force-releases whatever lock exists on a deleted card,
// regardless of holder.
func (m *Manager) CardDeleted(ctx context.Context, cardID string) error {
	locks, err := m.store.ListLocks(ctx)
	if err != nil {
		return fmt.Errorf("presence.Manager.CardDeleted: %w", err)
	}
	l, ok := locks[cardID]
	if !ok {
		return nil
	}
	if err := m.store.ReleaseLock(ctx, cardID, l.UserID); err != nil {
		return fmt.Errorf("presence.Manager.CardDeleted: %w", err)
	}
	return nil
}

// releaseAll releases every lock held by userID and returns the card ids.
func (m *Manager) releaseAll(ctx context.Context, userID string) ([]string, error) {
	locks, err := m.store.ListLocks(ctx)
	if err != nil {
		return nil, err
	}
	var released []string
	for cardID, l := range locks {
		if l.UserID != userID {
			continue
		}
		if err := m.store.ReleaseLock(ctx, cardID, userID); err != nil {
			return released, err
		}
		released = append(released, cardID)
	}
	return released, nil
}

// MarkStale backdates a user's last heartbeat past the presence TTL so
// the next sweep reaps them. Test hook only.
func (m *Manager) MarkStale(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lastSeen[userID]; ok {
		m.lastSeen[userID] = time.Now().Add(-2 * store.PresenceTTL)
	}
}

// Run sweeps this instance's tracked users and reaps the ones whose
// heartbeats went silent past the presence TTL: their presence is
// removed, their locks cascade-released, and onExpired is invoked for
// each so the caller can broadcast the leave. Blocks until ctx is done.
func (m *Manager) Run(ctx context.Context, sweep time.Duration, onExpired func(userID string, released []string)) {
	ticker := time.NewTicker(sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reap(ctx, onExpired)
		}
	}
}

func (m *Manager) reap(ctx context.Context, onExpired func(userID string, released []string)) {
	cutoff := time.Now().Add(-store.PresenceTTL)

	m.mu.Lock()
	var stale []string
	for userID, seen := range m.lastSeen {
		if seen.Before(cutoff) {
			stale = append(stale, userID)
			delete(m.lastSeen, userID)
		}
	}
	m.mu.Unlock()

	for _, userID := range stale {
		released, err := m.Leave(ctx, userID)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("reap presence")
			continue
		}
		log.Debug().Str("user_id", userID).Int("locks_released", len(released)).Msg("presence expired")
		if onExpired != nil {
			onExpired(userID, released)
		}
	}
}
