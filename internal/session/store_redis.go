package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultSessionTTL = 24 * time.Hour
	maxWatchAttempts  = 8
	keyPrefixSession  = "arena:session:"
	keyLobby          = "arena:lobby"
)

var ErrContention = errors.New("session store: too many concurrent writers")

// RedisStore keeps sessions as JSON under arena:session:<id> and the open
// public set in the arena:lobby sorted set (score = creation time).
//
// Writers of one id are serialized in-process by a keyed mutex and across
// processes by WATCH. When WATCH reports a conflicting write, fn runs again
// against the fresh state so it re-validates instead of overwriting it.
type RedisStore struct {
	rdb   *redis.Client
	ttl   time.Duration
	locks keyLocks
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string { return keyPrefixSession + strings.TrimSpace(id) }

func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("create session: missing id")
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ok, err := r.rdb.SetNX(ctx, sessionKey(s.ID), raw, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("create session: %s already exists", s.ID)
	}
	if s.OpenPublic() {
		if err := r.rdb.ZAdd(ctx, keyLobby, redis.Z{Score: lobbyScore(s), Member: s.ID}).Err(); err != nil {
			return fmt.Errorf("index lobby: %w", err)
		}
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, Errorf(KindNotFound, id, "session not found")
	}
	if err != nil {
		return nil, err
	}
	return decodeSession(raw)
}

func (r *RedisStore) Mutate(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	unlock := r.locks.lock(id)
	defer unlock()

	key := sessionKey(id)
	var out *Session
	for attempt := 0; attempt < maxWatchAttempts; attempt++ {
		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err == redis.Nil {
				return Errorf(KindNotFound, id, "session not found")
			}
			if err != nil {
				return err
			}
			work, err := decodeSession(raw)
			if err != nil {
				return err
			}
			prev := work.Version
			if err := fn(work); err != nil {
				return err
			}
			work.ID = id
			work.Version = prev + 1
			next, err := json.Marshal(work)
			if err != nil {
				return fmt.Errorf("marshal session: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, next, r.ttl)
				if work.OpenPublic() {
					pipe.ZAdd(ctx, keyLobby, redis.Z{Score: lobbyScore(work), Member: id})
				} else {
					pipe.ZRem(ctx, keyLobby, id)
				}
				return nil
			})
			if err != nil {
				return err
			}
			out = work
			return nil
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("mutate %s: %w", id, ErrContention)
}

func (r *RedisStore) Delete(ctx context.Context, id string, check func(*Session) error) (*Session, error) {
	unlock := r.locks.lock(id)
	defer unlock()

	key := sessionKey(id)
	var out *Session
	for attempt := 0; attempt < maxWatchAttempts; attempt++ {
		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err == redis.Nil {
				return Errorf(KindNotFound, id, "session not found")
			}
			if err != nil {
				return err
			}
			cur, err := decodeSession(raw)
			if err != nil {
				return err
			}
			if check != nil {
				if err := check(cur.Clone()); err != nil {
					return err
				}
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				pipe.ZRem(ctx, keyLobby, id)
				return nil
			})
			if err != nil {
				return err
			}
			out = cur
			return nil
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("delete %s: %w", id, ErrContention)
}

func (r *RedisStore) ListPublicOpen(ctx context.Context) ([]*Session, error) {
	ids, err := r.rdb.ZRevRange(ctx, keyLobby, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	var out []*Session
	var stale []any
	for _, id := range ids {
		s, gerr := r.Get(ctx, id)
		if errors.Is(gerr, ErrNotFound) {
			stale = append(stale, id)
			continue
		}
		if gerr != nil {
			return nil, gerr
		}
		if !s.OpenPublic() {
			continue
		}
		out = append(out, s)
	}
	if len(stale) > 0 {
		// expired sessions leave their lobby member behind
		_ = r.rdb.ZRem(ctx, keyLobby, stale...).Err()
	}
	return out, nil
}

func decodeSession(raw []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func lobbyScore(s *Session) float64 { return float64(s.CreatedAt.UnixMilli()) }

// keyLocks hands out one mutex per key and forgets it when unused.
type keyLocks struct {
	mu sync.Mutex
	m  map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	if k.m == nil {
		k.m = make(map[string]*keyLock)
	}
	l := k.m[key]
	if l == nil {
		l = &keyLock{}
		k.m[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}

// ParseRedisURL wraps redis.ParseURL: rediss:// enables TLS and query
// options (dial_timeout, pool_size, ...) are honoured.
func ParseRedisURL(raw string) (*redis.Options, error) {
	opt, err := redis.ParseURL(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}
	return opt, nil
}
