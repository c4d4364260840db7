package relay

import (
	"sync"
	"sync/atomic"

	"github.com/park285/Cheese-Chess-Arena/internal/obslog"
	"github.com/park285/Cheese-Chess-Arena/pkg/chessdto"
	"go.uber.org/zap"
)

const defaultOutboxSize = 64

var connSeq atomic.Int64

// Conn is one live client connection. Frames queue in a bounded outbox that
// a single writer drains, so frames reach a connection in enqueue order.
type Conn struct {
	ID     int64
	UserID string

	out      chan chessdto.Envelope
	done     chan struct{}
	doneOnce sync.Once
}

func newConn(userID string, size int) *Conn {
	return &Conn{
		ID:     connSeq.Add(1),
		UserID: userID,
		out:    make(chan chessdto.Envelope, size),
		done:   make(chan struct{}),
	}
}

func (c *Conn) Outbox() <-chan chessdto.Envelope { return c.out }
func (c *Conn) Done() <-chan struct{}            { return c.done }

// Send enqueues env without blocking. A connection whose outbox is full is
// closed rather than silently skipped; the client reconnects and refetches.
func (c *Conn) Send(env chessdto.Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- env:
		return true
	case <-c.done:
		return false
	default:
		obslog.L().Warn("relay_outbox_full", zap.String("user_id", c.UserID), zap.Int64("conn_id", c.ID), zap.String("type", env.Type))
		c.Close()
		return false
	}
}

func (c *Conn) Close() { c.doneOnce.Do(func() { close(c.done) }) }

// Hub indexes live connections by user id and keeps the lobby subscriber set.
// A user may hold several connections at once.
type Hub struct {
	mu         sync.RWMutex
	byUser     map[string]map[*Conn]struct{}
	lobby      map[*Conn]struct{}
	outboxSize int
}

func NewHub(outboxSize int) *Hub {
	if outboxSize <= 0 {
		outboxSize = defaultOutboxSize
	}
	return &Hub{
		byUser:     make(map[string]map[*Conn]struct{}),
		lobby:      make(map[*Conn]struct{}),
		outboxSize: outboxSize,
	}
}

func (h *Hub) Register(userID string) *Conn {
	c := newConn(userID, h.outboxSize)
	h.mu.Lock()
	set := h.byUser[userID]
	if set == nil {
		set = make(map[*Conn]struct{})
		h.byUser[userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
	obslog.L().Debug("relay_register", zap.String("user_id", userID), zap.Int64("conn_id", c.ID))
	return c
}

func (h *Hub) Unregister(c *Conn) {
	if c == nil {
		return
	}
	c.Close()
	h.mu.Lock()
	if set := h.byUser[c.UserID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.byUser, c.UserID)
		}
	}
	delete(h.lobby, c)
	h.mu.Unlock()
	obslog.L().Debug("relay_unregister", zap.String("user_id", c.UserID), zap.Int64("conn_id", c.ID))
}

func (h *Hub) SubscribeLobby(c *Conn) {
	h.mu.Lock()
	h.lobby[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) UnsubscribeLobby(c *Conn) {
	h.mu.Lock()
	delete(h.lobby, c)
	h.mu.Unlock()
}

// ConnsFor returns the live connections of the given users.
func (h *Hub) ConnsFor(userIDs ...string) []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*Conn
	for _, u := range userIDs {
		for c := range h.byUser[u] {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) LobbyConns() []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Conn, 0, len(h.lobby))
	for c := range h.lobby {
		out = append(out, c)
	}
	return out
}

func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID]) > 0
}

// CloseAll closes every live connection, used on server shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.byUser {
		for c := range set {
			c.Close()
		}
	}
}
