package lobby

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/park285/Cheese-Chess-Arena/internal/session"
)

// Entry is one open public session as shown in the lobby.
type Entry struct {
	Session           *session.Session
	CreatorName       string
	TimeSinceCreation string
}

// Index is a read-only view over the store; it keeps no state of its own so
// every committed mutation is visible on the next List.
type Index struct {
	store session.Store
	now   func() time.Time
}

func NewIndex(store session.Store) *Index { return &Index{store: store, now: time.Now} }

// WithClock replaces the clock used for humanized ages.
func (x *Index) WithClock(now func() time.Time) *Index {
	x.now = now
	return x
}

func (x *Index) List(ctx context.Context) ([]Entry, error) {
	sessions, err := x.store.ListPublicOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("list lobby: %w", err)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	now := x.now()
	out := make([]Entry, 0, len(sessions))
	for _, s := range sessions {
		name := s.CreatedBy
		if p, ok := s.Player(s.CreatedBy); ok && p.Name != "" {
			name = p.Name
		}
		out = append(out, Entry{
			Session:           s,
			CreatorName:       name,
			TimeSinceCreation: Since(s.CreatedAt, now),
		})
	}
	return out, nil
}

var buckets = []struct {
	unit string
	size time.Duration
}{
	{"year", 365 * 24 * time.Hour},
	{"month", 30 * 24 * time.Hour},
	{"day", 24 * time.Hour},
	{"hour", time.Hour},
	{"minute", time.Minute},
	{"second", time.Second},
}

// Since renders the age of t in the largest unit that counts at least one,
// e.g. "1 minute ago", "3 days ago". Anything under a second is "just now".
func Since(t, now time.Time) string {
	d := now.Sub(t)
	for _, b := range buckets {
		n := int64(d / b.size)
		if n < 1 {
			continue
		}
		if n == 1 {
			return fmt.Sprintf("1 %s ago", b.unit)
		}
		return fmt.Sprintf("%d %ss ago", n, b.unit)
	}
	return "just now"
}
