package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store owns every Session. Mutations of one id are serialized; different ids
// proceed in parallel.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	// Mutate applies fn to a private copy and commits it atomically. An error
	// from fn commits nothing and is returned as is.
	Mutate(ctx context.Context, id string, fn func(*Session) error) (*Session, error)
	// Delete removes the session when check accepts its current state.
	Delete(ctx context.Context, id string, check func(*Session) error) (*Session, error)
	ListPublicOpen(ctx context.Context) ([]*Session, error)
}

type memEntry struct {
	mu      sync.Mutex
	s       *Session
	gone    bool
	expires time.Time
}

// MemoryStore is the single-process Store. Like the Redis store, a session
// expires ttl after its last write. The map lock is never held while a
// mutation runs.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*memEntry
	ttl   time.Duration
	now   func() time.Time
}

type MemoryOption func(*MemoryStore)

func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *MemoryStore) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func WithStoreClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{items: make(map[string]*memEntry), ttl: defaultSessionTTL, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// live reports whether e can still be read; an expired entry is dropped.
// e.mu must be held.
func (m *MemoryStore) live(id string, e *memEntry) bool {
	if e.gone {
		return false
	}
	if !m.now().Before(e.expires) {
		e.gone = true
		m.mu.Lock()
		if m.items[id] == e {
			delete(m.items, id)
		}
		m.mu.Unlock()
		return false
	}
	return true
}

func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("create session: missing id")
	}
	// an expired entry under the same id is dropped first
	if old := m.entry(s.ID); old != nil {
		old.mu.Lock()
		m.live(s.ID, old)
		old.mu.Unlock()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[s.ID]; exists {
		return fmt.Errorf("create session: %s already exists", s.ID)
	}
	m.items[s.ID] = &memEntry{s: s.Clone(), expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) entry(id string) *memEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.items[id]
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	e := m.entry(id)
	if e == nil {
		return nil, Errorf(KindNotFound, id, "session not found")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !m.live(id, e) {
		return nil, Errorf(KindNotFound, id, "session not found")
	}
	return e.s.Clone(), nil
}

func (m *MemoryStore) Mutate(_ context.Context, id string, fn func(*Session) error) (*Session, error) {
	e := m.entry(id)
	if e == nil {
		return nil, Errorf(KindNotFound, id, "session not found")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !m.live(id, e) {
		return nil, Errorf(KindNotFound, id, "session not found")
	}
	work := e.s.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	work.ID = e.s.ID
	work.Version = e.s.Version + 1
	e.s = work
	e.expires = m.now().Add(m.ttl)
	return work.Clone(), nil
}

func (m *MemoryStore) Delete(_ context.Context, id string, check func(*Session) error) (*Session, error) {
	e := m.entry(id)
	if e == nil {
		return nil, Errorf(KindNotFound, id, "session not found")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !m.live(id, e) {
		return nil, Errorf(KindNotFound, id, "session not found")
	}
	if check != nil {
		if err := check(e.s.Clone()); err != nil {
			return nil, err
		}
	}
	e.gone = true
	m.mu.Lock()
	if m.items[id] == e {
		delete(m.items, id)
	}
	m.mu.Unlock()
	return e.s.Clone(), nil
}

func (m *MemoryStore) ListPublicOpen(_ context.Context) ([]*Session, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.items))
	entries := make([]*memEntry, 0, len(m.items))
	for id, e := range m.items {
		ids = append(ids, id)
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	// every listing also sweeps expired sessions, finished ones included
	var out []*Session
	for i, e := range entries {
		e.mu.Lock()
		if m.live(ids[i], e) && e.s.OpenPublic() {
			out = append(out, e.s.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
