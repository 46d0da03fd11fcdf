// Package redis implements the shared store.Store and the pub/sub
// fanout channel on a Redis instance visible to every hub replica.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/boardsync/boardsync/internal/board"
	"github.com/boardsync/boardsync/internal/store"
)

// acquireScript is the atomic conditional write behind AcquireLock.
// The holder check and the SET run as one server-side script, so two
// racing acquires for the same card cannot both observe "unlocked".
var acquireScript = redis.NewScript(`
local existing = redis.call("GET", KEYS[1])
if existing then
	local holder = cjson.decode(existing)
	if holder.userId ~= ARGV[1] then
		return 0
	end
end
redis.call("SET", KEYS[1], ARGV[2], "EX", tonumber(ARGV[3]))
return 1
`)

// releaseScript deletes the lock only when the caller holds it.
var releaseScript = redis.NewScript(`
local existing = redis.call("GET", KEYS[1])
if existing and cjson.decode(existing).userId == ARGV[1] then
	redis.call("DEL", KEYS[1])
end
return 0
`)

// Store is the Redis-backed store.Store.
type Store struct {
	client *redis.Client
}

// New connects to Redis and verifies reachability with a single ping
// bounded by probeTimeout. Startup uses the returned error to decide
// between shared and fallback mode.
func New(ctx context.Context, addr, password string, db int, probeTimeout time.Duration) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &Store{client: client}, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("redis.Store.Close: %w", err)
	}
	return nil
}

// Client exposes the underlying connection for the pub/sub wrapper.
func (s *Store) Client() *redis.Client {
	return s.client
}

func (s *Store) GetBoard(ctx context.Context) (*board.Board, error) {
	raw, err := s.client.Get(ctx, boardKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return board.DefaultBoard(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis.Store.GetBoard: %w", err)
	}

	var b board.Board
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("redis.Store.GetBoard: decode: %w", err)
	}
	return &b, nil
}

func (s *Store) SetBoard(ctx context.Context, b *board.Board) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("redis.Store.SetBoard: encode: %w", err)
	}
	if err := s.client.Set(ctx, boardKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis.Store.SetBoard: %w", err)
	}
	return nil
}

func (s *Store) SetPresence(ctx context.Context, user board.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("redis.Store.SetPresence: encode: %w", err)
	}
	if err := s.client.Set(ctx, presenceKey(user.ID), raw, store.PresenceTTL).Err(); err != nil {
		return fmt.Errorf("redis.Store.SetPresence: %w", err)
	}
	return nil
}

func (s *Store) RemovePresence(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, presenceKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis.Store.RemovePresence: %w", err)
	}
	return nil
}

func (s *Store) ListPresence(ctx context.Context) ([]board.User, error) {
	keys, err := s.scanKeys(ctx, presencePrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("redis.Store.ListPresence: %w", err)
	}

	users := make([]board.User, 0, len(keys))
	for _, key := range keys {
		raw, getErr := s.client.Get(ctx, key).Bytes()
		if errors.Is(getErr, redis.Nil) {
			continue // expired between SCAN and GET
		}
		if getErr != nil {
			return nil, fmt.Errorf("redis.Store.ListPresence: %w", getErr)
		}
		var u board.User
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, fmt.Errorf("redis.Store.ListPresence: decode %s: %w", key, err)
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *Store) AcquireLock(ctx context.Context, cardID, userID, userName string) (bool, error) {
	raw, err := json.Marshal(store.Lock{UserID: userID, UserName: userName})
	if err != nil {
		return false, fmt.Errorf("redis.Store.AcquireLock: encode: %w", err)
	}

	ttlSeconds := int(store.LockTTL / time.Second)
	res, err := acquireScript.Run(ctx, s.client, []string{lockKey(cardID)}, userID, raw, ttlSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("redis.Store.AcquireLock: %w", err)
	}
	return res == 1, nil
}

func (s *Store) ReleaseLock(ctx context.Context, cardID, userID string) error {
	if err := releaseScript.Run(ctx, s.client, []string{lockKey(cardID)}, userID).Err(); err != nil {
		return fmt.Errorf("redis.Store.ReleaseLock: %w", err)
	}
	return nil
}

func (s *Store) ListLocks(ctx context.Context) (map[string]store.Lock, error) {
	keys, err := s.scanKeys(ctx, lockPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("redis.Store.ListLocks: %w", err)
	}

	locks := make(map[string]store.Lock, len(keys))
	for _, key := range keys {
		raw, getErr := s.client.Get(ctx, key).Bytes()
		if errors.Is(getErr, redis.Nil) {
			continue
		}
		if getErr != nil {
			return nil, fmt.Errorf("redis.Store.ListLocks: %w", getErr)
		}
		var l store.Lock
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("redis.Store.ListLocks: decode %s: %w", key, err)
		}
		locks[key[len(lockPrefix):]] = l
	}
	return locks, nil
}

func (s *Store) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
