package history

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/park285/Cheese-Chess-Arena/internal/domain"
)

// memrepo is used when no DATABASE_URL is configured.
type memrepo struct {
	mu        sync.RWMutex
	nextID    int64
	bySession map[string]*domain.GameRecord
	byUser    map[string][]string
}

func NewMemoryRepository() Repository {
	return &memrepo{
		bySession: make(map[string]*domain.GameRecord),
		byUser:    make(map[string][]string),
	}
}

func (m *memrepo) SaveResult(_ context.Context, rec *domain.GameRecord) error {
	if rec == nil || strings.TrimSpace(rec.SessionID) == "" {
		return fmt.Errorf("nil game record")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	cp.MovesUCI = append([]string(nil), rec.MovesUCI...)
	cp.MovesSAN = append([]string(nil), rec.MovesSAN...)
	if prev, ok := m.bySession[rec.SessionID]; ok {
		cp.ID = prev.ID
		m.bySession[rec.SessionID] = &cp
		return nil
	}
	m.nextID++
	cp.ID = m.nextID
	m.bySession[rec.SessionID] = &cp
	for _, u := range []string{rec.WhiteID, rec.BlackID} {
		if u != "" {
			m.byUser[u] = append(m.byUser[u], rec.SessionID)
		}
	}
	return nil
}

func (m *memrepo) GetBySession(_ context.Context, sessionID string) (*domain.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.bySession[sessionID]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, nil
}

func (m *memrepo) ListByUser(_ context.Context, userID string, limit int) ([]*domain.GameRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byUser[userID]
	items := make([]*domain.GameRecord, 0, len(ids))
	for _, id := range ids {
		cp := *m.bySession[id]
		items = append(items, &cp)
	}
	// EndedAt desc, then ID desc
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
