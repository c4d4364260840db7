package relay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/park285/Cheese-Chess-Arena/internal/adapter/chesspresenter"
	"github.com/park285/Cheese-Chess-Arena/internal/auth"
	"github.com/park285/Cheese-Chess-Arena/internal/obslog"
	"github.com/park285/Cheese-Chess-Arena/pkg/chessdto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
	pingTimeout  = 3 * time.Second
	readLimit    = 64 << 10
)

// Handler upgrades authenticated requests to websocket connections. Every
// frame for a connection, replies and pushed events alike, goes through its
// outbox so one writer owns the socket.
type Handler struct {
	hub     *Hub
	router  *Router
	pres    *chesspresenter.Presenter
	origins []string
}

func NewHandler(hub *Hub, router *Router, pres *chesspresenter.Presenter, allowedOrigins []string) *Handler {
	return &Handler{hub: hub, router: router, pres: pres, origins: allowedOrigins}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  h.origins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("relay_ws_accept_error", zap.String("user_id", id.UserID), zap.Error(err))
		return
	}
	ws.SetReadLimit(readLimit)

	conn := h.hub.Register(id.UserID)
	defer h.hub.Unregister(conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-conn.Done():
		case <-ctx.Done():
		}
		cancel()
	}()
	go h.writeLoop(ctx, ws, conn)
	go h.pingLoop(ctx, ws)

	obslog.L().Info("relay_ws_open", zap.String("user_id", id.UserID), zap.Int64("conn_id", conn.ID))
	status := h.readLoop(ctx, ws, conn, id.UserID)
	obslog.L().Info("relay_ws_close", zap.String("user_id", id.UserID), zap.Int64("conn_id", conn.ID), zap.Int("status", int(status)))
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, conn *Conn, userID string) websocket.StatusCode {
	for {
		var cmd chessdto.Command
		if err := wsjson.Read(ctx, ws, &cmd); err != nil {
			status := websocket.CloseStatus(err)
			if status == -1 {
				if ctx.Err() != nil {
					// outbox overflow or shutdown
					_ = ws.Close(websocket.StatusPolicyViolation, "connection closed by server")
				} else {
					_ = ws.Close(websocket.StatusInternalError, "read failed")
				}
			}
			return status
		}
		h.handle(ctx, conn, userID, cmd)
	}
}

func (h *Handler) handle(ctx context.Context, conn *Conn, userID string, cmd chessdto.Command) {
	switch cmd.Type {
	case chessdto.CmdPing:
		conn.Send(chessdto.Envelope{Type: chessdto.EnvPong, RequestID: cmd.RequestID})
	case chessdto.CmdSubscribeLobby:
		h.hub.SubscribeLobby(conn)
		env, err := h.router.Dispatcher().LobbySnapshot(ctx)
		if err != nil {
			conn.Send(h.pres.ErrorEnvelope(cmd.RequestID, err))
			return
		}
		env.RequestID = cmd.RequestID
		conn.Send(env)
	case chessdto.CmdUnsubscribeLobby:
		h.hub.UnsubscribeLobby(conn)
		conn.Send(chessdto.Envelope{Type: chessdto.EnvAck, RequestID: cmd.RequestID})
	default:
		s, err := h.router.Execute(ctx, userID, cmd)
		if err != nil {
			conn.Send(h.pres.ErrorEnvelope(cmd.RequestID, err))
			return
		}
		conn.Send(chessdto.Envelope{
			Type:      chessdto.EnvAck,
			RequestID: cmd.RequestID,
			SessionID: s.ID,
			Version:   s.Version,
			Session:   chesspresenter.ToSessionView(s),
		})
	}
}

func (h *Handler) writeLoop(ctx context.Context, ws *websocket.Conn, conn *Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-conn.Outbox():
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, ws, env)
			cancel()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					obslog.L().Debug("relay_ws_write_error", zap.Int64("conn_id", conn.ID), zap.Error(err))
				}
				conn.Close()
				return
			}
		}
	}
}

func (h *Handler) pingLoop(ctx context.Context, ws *websocket.Conn) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := ws.Ping(pctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				_ = ws.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}
