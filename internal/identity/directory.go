package identity

import (
	"context"
	"strings"
	"sync"
)

// Directory resolves usernames to user ids and ids to display names. The
// auth layer registers every verified caller, so only users who have talked
// to the server at least once can be invited.
type Directory interface {
	Register(ctx context.Context, userID, username string) error
	// ResolveByUsername returns "" with a nil error when no user matches.
	ResolveByUsername(ctx context.Context, username string) (string, error)
	// DisplayName falls back to the id when the user is unknown.
	DisplayName(ctx context.Context, userID string) string
}

func normalize(username string) string { return strings.ToLower(strings.TrimSpace(username)) }

type MemoryDirectory struct {
	mu     sync.RWMutex
	byName map[string]string
	names  map[string]string
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{byName: make(map[string]string), names: make(map[string]string)}
}

func (d *MemoryDirectory) Register(_ context.Context, userID, username string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = userID
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.names[userID]; ok && normalize(prev) != normalize(username) {
		if d.byName[normalize(prev)] == userID {
			delete(d.byName, normalize(prev))
		}
	}
	d.names[userID] = username
	d.byName[normalize(username)] = userID
	return nil
}

func (d *MemoryDirectory) ResolveByUsername(_ context.Context, username string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.byName[normalize(username)], nil
}

func (d *MemoryDirectory) DisplayName(_ context.Context, userID string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if n, ok := d.names[userID]; ok {
		return n
	}
	return userID
}
