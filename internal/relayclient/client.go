package relayclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/park285/Cheese-Chess-Arena/internal/obslog"
	"github.com/park285/Cheese-Chess-Arena/pkg/chessdto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

type EnvelopeCallback func(env *chessdto.Envelope)

type StateCallback func(state State)

// TokenProvider returns the bearer token used for each handshake.
type TokenProvider func() string

var ErrNotConnected = errors.New("relay client: not connected")

type callbackEntry struct {
	id       int
	callback EnvelopeCallback
}

type stateCallbackEntry struct {
	id       int
	callback StateCallback
}

// Client is a reconnecting websocket client for the arena relay. Frames are
// delivered to OnEnvelope callbacks; Request pairs a command with its ack.
type Client struct {
	url   string
	token TokenProvider

	conn   *websocket.Conn
	connM  sync.RWMutex
	writeM sync.Mutex
	state  State
	stateM sync.RWMutex

	envCbs   []callbackEntry
	stateCbs []stateCallbackEntry
	nextCbID int
	cbM      sync.RWMutex

	pending  map[string]chan chessdto.Envelope
	pendingM sync.Mutex
	reqSeq   atomic.Int64

	maxReconnectAttempts int
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

type Option func(*Client)

func WithToken(p TokenProvider) Option { return func(c *Client) { c.token = p } }

func WithReconnect(maxAttempts int) Option {
	return func(c *Client) { c.maxReconnectAttempts = maxAttempts }
}

func WithPingInterval(d time.Duration) Option { return func(c *Client) { c.pingInterval = d } }

func New(wsURL string, opts ...Option) *Client {
	c := &Client{
		url:                  wsURL,
		state:                StateDisconnected,
		pending:              make(map[string]chan chessdto.Envelope),
		maxReconnectAttempts: 5,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Connect(ctx context.Context) error {
	if s := c.State(); s == StateConnected || s == StateConnecting {
		return nil
	}
	c.rootCtx, c.rootCancel = context.WithCancel(context.Background())
	c.setState(StateConnecting)

	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(StateFailed)
		return fmt.Errorf("dial relay: %w", err)
	}
	c.attach(conn)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      c.buildHeaders(),
	})
	return conn, err
}

func (c *Client) attach(conn *websocket.Conn) {
	c.connM.Lock()
	c.conn = conn
	c.connM.Unlock()
	c.setState(StateConnected)

	c.wg.Add(2)
	go c.listen(conn)
	go c.pingLoop(conn)
}

func (c *Client) listen(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		var env chessdto.Envelope
		if err := wsjson.Read(c.rootCtx, conn, &env); err != nil {
			if c.isStopping() {
				return
			}
			obslog.L().Warn("relayclient_read_error", zap.Error(err))
			c.drop(conn, websocket.StatusGoingAway, "reconnect")
			return
		}
		c.resolve(&env)

		c.cbM.RLock()
		callbacks := make([]callbackEntry, len(c.envCbs))
		copy(callbacks, c.envCbs)
		c.cbM.RUnlock()
		for _, entry := range callbacks {
			entry.callback(&env)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-c.stopCh:
			return
		case <-c.rootCtx.Done():
			return
		case <-t.C:
			if c.current() != conn {
				return
			}
			ctx, cancel := context.WithTimeout(c.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				c.drop(conn, websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

// drop closes conn if it is still current and starts reconnecting.
func (c *Client) drop(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	c.connM.Lock()
	if c.conn != conn {
		c.connM.Unlock()
		return
	}
	c.conn = nil
	c.connM.Unlock()
	_ = conn.Close(code, reason)
	c.setState(StateDisconnected)
	c.failPending()
	c.scheduleReconnect()
}

func (c *Client) scheduleReconnect() {
	if c.maxReconnectAttempts <= 0 || c.isStopping() {
		return
	}
	c.setState(StateReconnecting)

	go func() {
		for attempt := 1; attempt <= c.maxReconnectAttempts; attempt++ {
			select {
			case <-c.stopCh:
				return
			case <-time.After(backoffDuration(attempt)):
			}
			conn, err := c.dial(c.rootCtx)
			if err != nil {
				obslog.L().Debug("relayclient_reconnect_failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			c.attach(conn)
			obslog.L().Info("relayclient_reconnected", zap.Int("attempt", attempt))
			return
		}
		c.setState(StateFailed)
	}()
}

// Send writes cmd without waiting for a reply.
func (c *Client) Send(ctx context.Context, cmd chessdto.Command) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	c.writeM.Lock()
	defer c.writeM.Unlock()
	return wsjson.Write(ctx, conn, cmd)
}

// Request sends cmd and waits for the ack, pong, lobby snapshot or error
// carrying its request id. An error frame is returned as *RemoteError.
func (c *Client) Request(ctx context.Context, cmd chessdto.Command) (chessdto.Envelope, error) {
	if cmd.RequestID == "" {
		cmd.RequestID = "r" + strconv.FormatInt(c.reqSeq.Add(1), 10)
	}
	ch := make(chan chessdto.Envelope, 1)
	c.pendingM.Lock()
	c.pending[cmd.RequestID] = ch
	c.pendingM.Unlock()
	defer func() {
		c.pendingM.Lock()
		delete(c.pending, cmd.RequestID)
		c.pendingM.Unlock()
	}()

	if err := c.Send(ctx, cmd); err != nil {
		return chessdto.Envelope{}, err
	}
	select {
	case <-ctx.Done():
		return chessdto.Envelope{}, ctx.Err()
	case env, ok := <-ch:
		if !ok {
			return chessdto.Envelope{}, ErrNotConnected
		}
		if env.Error != nil {
			return env, &RemoteError{DomainError: *env.Error}
		}
		return env, nil
	}
}

func (c *Client) resolve(env *chessdto.Envelope) {
	if env.RequestID == "" {
		return
	}
	c.pendingM.Lock()
	defer c.pendingM.Unlock()
	if ch := c.pending[env.RequestID]; ch != nil {
		delete(c.pending, env.RequestID)
		ch <- *env
	}
}

func (c *Client) failPending() {
	c.pendingM.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingM.Unlock()
}

func (c *Client) OnEnvelope(cb EnvelopeCallback) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.nextCbID++
	c.envCbs = append(c.envCbs, callbackEntry{id: c.nextCbID, callback: cb})
	return c.nextCbID
}

func (c *Client) RemoveEnvelopeCallback(id int) {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	for i, cb := range c.envCbs {
		if cb.id == id {
			c.envCbs = append(c.envCbs[:i], c.envCbs[i+1:]...)
			break
		}
	}
}

func (c *Client) OnStateChange(cb StateCallback) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.nextCbID++
	c.stateCbs = append(c.stateCbs, stateCallbackEntry{id: c.nextCbID, callback: cb})
	return c.nextCbID
}

func (c *Client) State() State {
	c.stateM.RLock()
	defer c.stateM.RUnlock()
	return c.state
}

func (c *Client) setState(state State) {
	c.stateM.Lock()
	c.state = state
	c.stateM.Unlock()

	c.cbM.RLock()
	callbacks := make([]stateCallbackEntry, len(c.stateCbs))
	copy(callbacks, c.stateCbs)
	c.cbM.RUnlock()
	for _, entry := range callbacks {
		entry.callback(state)
	}
}

func (c *Client) Close(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.connM.Lock()
	conn := c.conn
	c.conn = nil
	c.connM.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	if c.rootCancel != nil {
		c.rootCancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		c.failPending()
		c.setState(StateDisconnected)
		return nil
	}
}

func (c *Client) current() *websocket.Conn {
	c.connM.RLock()
	defer c.connM.RUnlock()
	return c.conn
}

func (c *Client) isStopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Client) buildHeaders() http.Header {
	hdr := http.Header{}
	if c.token == nil {
		return hdr
	}
	if tok := strings.TrimSpace(c.token()); tok != "" {
		hdr.Set("Authorization", "Bearer "+tok)
	}
	return hdr
}

// RemoteError is an error frame returned by the relay.
type RemoteError struct {
	chessdto.DomainError
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("relay: %s: %s", e.Code, e.Message)
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}
