package relayclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/park285/Cheese-Chess-Arena/pkg/chessdto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// echoServer answers ping with pong, "fail" with an error frame and
// everything else with an ack. It pushes one unsolicited frame first.
func echoServer(t *testing.T, wantAuth string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wantAuth != "" && r.Header.Get("Authorization") != wantAuth {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close(websocket.StatusNormalClosure, "")
		ctx := r.Context()
		_ = wsjson.Write(ctx, ws, chessdto.Envelope{Type: chessdto.EnvLobbyUpdated})
		for {
			var cmd chessdto.Command
			if err := wsjson.Read(ctx, ws, &cmd); err != nil {
				return
			}
			reply := chessdto.Envelope{Type: chessdto.EnvAck, RequestID: cmd.RequestID, SessionID: cmd.SessionID}
			switch cmd.Type {
			case chessdto.CmdPing:
				reply.Type = chessdto.EnvPong
			case "fail":
				reply.Type = chessdto.EnvError
				reply.Error = &chessdto.DomainError{Code: "game_full", Message: "full"}
			}
			if err := wsjson.Write(ctx, ws, reply); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string { return "ws" + strings.TrimPrefix(srv.URL, "http") }

func TestClient_RequestAndCallbacks(t *testing.T) {
	srv := echoServer(t, "Bearer tok")
	defer srv.Close()

	c := New(wsURL(srv), WithToken(func() string { return "tok" }), WithReconnect(0))
	var mu sync.Mutex
	var seen []string
	pushed := make(chan struct{}, 1)
	c.OnEnvelope(func(env *chessdto.Envelope) {
		mu.Lock()
		seen = append(seen, env.Type)
		mu.Unlock()
		if env.Type == chessdto.EnvLobbyUpdated {
			pushed <- struct{}{}
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	assert.Equal(t, StateConnected, c.State())

	select {
	case <-pushed:
	case <-ctx.Done():
		t.Fatal("pushed frame not delivered")
	}

	pong, err := c.Request(ctx, chessdto.Command{Type: chessdto.CmdPing})
	require.NoError(t, err)
	assert.Equal(t, chessdto.EnvPong, pong.Type)
	assert.NotEmpty(t, pong.RequestID)

	ack, err := c.Request(ctx, chessdto.Command{Type: chessdto.CmdJoin, SessionID: "s1", RequestID: "mine"})
	require.NoError(t, err)
	assert.Equal(t, "mine", ack.RequestID)
	assert.Equal(t, "s1", ack.SessionID)

	_, err = c.Request(ctx, chessdto.Command{Type: "fail"})
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "game_full", remote.Code)

	require.NoError(t, c.Close(ctx))
	assert.Equal(t, StateDisconnected, c.State())
	assert.ErrorIs(t, c.Send(ctx, chessdto.Command{Type: chessdto.CmdPing}), ErrNotConnected)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, chessdto.EnvAck)
}

func TestClient_ConnectRejected(t *testing.T) {
	srv := echoServer(t, "Bearer right")
	defer srv.Close()

	var states []State
	c := New(wsURL(srv), WithToken(func() string { return "wrong" }), WithReconnect(0))
	c.OnStateChange(func(s State) { states = append(states, s) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.Error(t, c.Connect(ctx))
	assert.Equal(t, []State{StateConnecting, StateFailed}, states)
}

func TestBackoffDuration(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, backoffDuration(0))
	assert.Equal(t, 400*time.Millisecond, backoffDuration(3))
	assert.Equal(t, backoffDuration(6), backoffDuration(20))
}
