package relay

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/park285/Cheese-Chess-Arena/internal/adapter/chesspresenter"
	"github.com/park285/Cheese-Chess-Arena/internal/auth"
	"github.com/park285/Cheese-Chess-Arena/internal/game"
	"github.com/park285/Cheese-Chess-Arena/internal/identity"
	"github.com/park285/Cheese-Chess-Arena/internal/lobby"
	"github.com/park285/Cheese-Chess-Arena/internal/msgcat"
	"github.com/park285/Cheese-Chess-Arena/internal/rules"
	"github.com/park285/Cheese-Chess-Arena/internal/session"
	"github.com/park285/Cheese-Chess-Arena/pkg/chessdto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type stack struct {
	hub    *Hub
	router *Router
	pres   *chesspresenter.Presenter
	dir    *identity.MemoryDirectory
}

func newStack(t *testing.T) *stack {
	t.Helper()
	cat, err := msgcat.New("")
	require.NoError(t, err)
	dir := identity.NewMemoryDirectory()
	ctx := context.Background()
	for _, u := range []string{"alice", "bob", "carol"} {
		require.NoError(t, dir.Register(ctx, u, u))
	}
	store := session.NewMemoryStore()
	pres := chesspresenter.NewPresenter(cat)
	hub := NewHub(8)
	disp := NewDispatcher(hub, lobby.NewIndex(store), pres)
	mgr := game.NewManager(store, rules.NewEngine(), dir)
	return &stack{hub: hub, router: NewRouter(mgr, disp), pres: pres, dir: dir}
}

func drain(c *Conn) []chessdto.Envelope {
	var out []chessdto.Envelope
	for {
		select {
		case env := <-c.Outbox():
			out = append(out, env)
		default:
			return out
		}
	}
}

func types(envs []chessdto.Envelope) []string {
	out := make([]string, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Type)
	}
	return out
}

func TestHub_MultipleConnections(t *testing.T) {
	h := NewHub(4)
	a1 := h.Register("alice")
	a2 := h.Register("alice")
	b := h.Register("bob")

	assert.Len(t, h.ConnsFor("alice"), 2)
	assert.Len(t, h.ConnsFor("alice", "bob"), 3)
	assert.True(t, h.Online("bob"))

	h.SubscribeLobby(a1)
	h.Unregister(a1)
	assert.Len(t, h.ConnsFor("alice"), 1)
	assert.Empty(t, h.LobbyConns())
	assert.False(t, a1.Send(chessdto.Envelope{Type: "x"}), "closed conn must refuse frames")

	h.CloseAll()
	select {
	case <-b.Done():
	default:
		t.Fatal("CloseAll left a connection open")
	}
	h.Unregister(a2)
	h.Unregister(b)
	assert.False(t, h.Online("alice"))
}

func TestConn_FullOutboxCloses(t *testing.T) {
	h := NewHub(2)
	c := h.Register("alice")
	require.True(t, c.Send(chessdto.Envelope{Type: "1"}))
	require.True(t, c.Send(chessdto.Envelope{Type: "2"}))
	assert.False(t, c.Send(chessdto.Envelope{Type: "3"}))
	select {
	case <-c.Done():
	default:
		t.Fatal("overflowing connection was not closed")
	}
	assert.Equal(t, []string{"1", "2"}, types(drain(c)))
}

func TestDispatcher_Audiences(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()
	alice := st.hub.Register("alice")
	bob := st.hub.Register("bob")
	carol := st.hub.Register("carol")
	st.hub.SubscribeLobby(carol)

	s, err := st.router.Execute(ctx, "alice", chessdto.Command{Type: chessdto.CmdCreate})
	require.NoError(t, err)

	assert.Equal(t, []string{string(game.EventSessionCreated)}, types(drain(alice)))
	assert.Empty(t, drain(bob))
	got := drain(carol)
	require.Equal(t, []string{string(game.EventSessionCreated), chessdto.EnvLobbyUpdated}, types(got))
	require.Len(t, got[1].Lobby, 1)
	assert.Equal(t, s.ID, got[1].Lobby[0].Session.ID)

	_, err = st.router.Execute(ctx, "bob", chessdto.Command{Type: chessdto.CmdJoin, SessionID: s.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{string(game.EventPlayerJoined)}, types(drain(alice)))
	assert.Equal(t, []string{string(game.EventPlayerJoined)}, types(drain(bob)))
	got = drain(carol)
	require.Equal(t, []string{string(game.EventPlayerJoined), chessdto.EnvLobbyUpdated}, types(got))
	assert.Empty(t, got[1].Lobby)

	_, err = st.router.Execute(ctx, "alice", chessdto.Command{Type: chessdto.CmdMove, SessionID: s.ID, Move: &chessdto.MoveRequest{From: "e2", To: "e4"}})
	require.NoError(t, err)
	moved := drain(bob)
	require.Len(t, moved, 1)
	assert.Equal(t, string(game.EventStateUpdated), moved[0].Type)
	assert.Equal(t, int64(2), moved[0].Version)
	assert.Empty(t, drain(carol))
}

func TestRouter_Validation(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()

	_, err := st.router.Execute(ctx, "", chessdto.Command{Type: chessdto.CmdCreate})
	assert.ErrorIs(t, err, session.ErrUnauthorized)

	_, err = st.router.Execute(ctx, "alice", chessdto.Command{Type: chessdto.CmdJoin})
	assert.ErrorIs(t, err, session.ErrInvalidArgument)

	_, err = st.router.Execute(ctx, "alice", chessdto.Command{Type: "dance", SessionID: "s"})
	assert.ErrorIs(t, err, session.ErrInvalidArgument)

	_, err = st.router.Execute(ctx, "alice", chessdto.Command{Type: chessdto.CmdCreate, Create: &chessdto.CreateGameRequest{Visibility: "secret"}})
	assert.ErrorIs(t, err, session.ErrInvalidArgument)

	_, err = st.router.Execute(ctx, "alice", chessdto.Command{Type: chessdto.CmdMove, SessionID: "s"})
	assert.ErrorIs(t, err, session.ErrInvalidArgument)

	_, err = st.router.Execute(ctx, "alice", chessdto.Command{Type: chessdto.CmdRespondDraw, SessionID: "s"})
	assert.ErrorIs(t, err, session.ErrInvalidArgument)
}

func TestRouter_PrivateSessionHidden(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()
	s, err := st.router.Execute(ctx, "alice", chessdto.Command{
		Type:   chessdto.CmdCreate,
		Create: &chessdto.CreateGameRequest{Visibility: "private", InviteeUsername: "Bob"},
	})
	require.NoError(t, err)
	assert.Equal(t, session.StatusPendingInvite, s.Status)

	for _, u := range []string{"alice", "bob"} {
		_, err := st.router.Execute(ctx, u, chessdto.Command{Type: chessdto.CmdGet, SessionID: s.ID})
		assert.NoError(t, err, u)
	}
	_, err = st.router.Execute(ctx, "carol", chessdto.Command{Type: chessdto.CmdGet, SessionID: s.ID})
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func dial(t *testing.T, ctx context.Context, srvURL, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srvURL, "http") + "/?token=" + token
	ws, _, err := websocket.Dial(ctx, u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close(websocket.StatusNormalClosure, "") })
	return ws
}

// await reads frames until one of the wanted type arrives.
func await(t *testing.T, ctx context.Context, ws *websocket.Conn, typ string) chessdto.Envelope {
	t.Helper()
	for {
		var env chessdto.Envelope
		require.NoError(t, wsjson.Read(ctx, ws, &env), "waiting for %s", typ)
		if env.Type == typ {
			return env
		}
	}
}

func TestHandler_EndToEnd(t *testing.T) {
	st := newStack(t)
	tokens, err := auth.NewTokenService("test-secret", "")
	require.NoError(t, err)
	srv := httptest.NewServer(auth.Middleware(tokens, st.dir)(NewHandler(st.hub, st.router, st.pres, nil)))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	aliceTok, _ := tokens.Issue("alice", "alice", time.Minute)
	bobTok, _ := tokens.Issue("bob", "bob", time.Minute)
	alice := dial(t, ctx, srv.URL, aliceTok)
	bob := dial(t, ctx, srv.URL, bobTok)

	require.NoError(t, wsjson.Write(ctx, alice, chessdto.Command{Type: chessdto.CmdPing, RequestID: "p1"}))
	assert.Equal(t, "p1", await(t, ctx, alice, chessdto.EnvPong).RequestID)

	require.NoError(t, wsjson.Write(ctx, bob, chessdto.Command{Type: chessdto.CmdSubscribeLobby, RequestID: "l1"}))
	snap := await(t, ctx, bob, chessdto.EnvLobbyUpdated)
	assert.Equal(t, "l1", snap.RequestID)
	assert.Empty(t, snap.Lobby)

	require.NoError(t, wsjson.Write(ctx, alice, chessdto.Command{Type: chessdto.CmdCreate, RequestID: "c1"}))
	ack := await(t, ctx, alice, chessdto.EnvAck)
	require.Equal(t, "c1", ack.RequestID)
	require.NotNil(t, ack.Session)
	sid := ack.SessionID

	listed := await(t, ctx, bob, chessdto.EnvLobbyUpdated)
	require.Len(t, listed.Lobby, 1)
	assert.Equal(t, sid, listed.Lobby[0].Session.ID)

	require.NoError(t, wsjson.Write(ctx, bob, chessdto.Command{Type: chessdto.CmdJoin, RequestID: "j1", SessionID: sid}))
	joined := await(t, ctx, alice, string(game.EventPlayerJoined))
	assert.Equal(t, "bob", joined.Actor)
	assert.Equal(t, string(session.StatusActive), joined.Session.Status)

	require.NoError(t, wsjson.Write(ctx, bob, chessdto.Command{Type: chessdto.CmdMove, RequestID: "m1", SessionID: sid, Move: &chessdto.MoveRequest{Notation: "e4"}}))
	bad := await(t, ctx, bob, chessdto.EnvError)
	assert.Equal(t, "m1", bad.RequestID)
	require.NotNil(t, bad.Error)
	assert.Equal(t, string(session.KindNotYourTurn), bad.Error.Code)
}

func TestHandler_RejectsAnonymous(t *testing.T) {
	st := newStack(t)
	srv := httptest.NewServer(NewHandler(st.hub, st.router, st.pres, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}
