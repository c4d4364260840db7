package relay

import (
	"context"

	"github.com/park285/Cheese-Chess-Arena/internal/adapter/chesspresenter"
	"github.com/park285/Cheese-Chess-Arena/internal/game"
	"github.com/park285/Cheese-Chess-Arena/internal/lobby"
	"github.com/park285/Cheese-Chess-Arena/internal/obslog"
	"github.com/park285/Cheese-Chess-Arena/pkg/chessdto"
	"go.uber.org/zap"
)

type LobbyLister interface {
	List(ctx context.Context) ([]lobby.Entry, error)
}

// Dispatcher delivers committed events. It is only ever called after the
// store mutation returned, never under a session lock.
type Dispatcher struct {
	hub   *Hub
	lobby LobbyLister
	pres  *chesspresenter.Presenter
}

func NewDispatcher(hub *Hub, lobby LobbyLister, pres *chesspresenter.Presenter) *Dispatcher {
	return &Dispatcher{hub: hub, lobby: lobby, pres: pres}
}

// Dispatch sends each event to its recipients, and lobby events to lobby
// subscribers too. When any event touched the lobby a fresh lobby_updated
// snapshot follows.
func (d *Dispatcher) Dispatch(ctx context.Context, events []game.Event) {
	lobbyChanged := false
	for _, ev := range events {
		env := d.pres.Event(ev)
		sent := make(map[*Conn]struct{})
		for _, c := range d.hub.ConnsFor(ev.Recipients...) {
			sent[c] = struct{}{}
			c.Send(env)
		}
		if ev.Lobby {
			lobbyChanged = true
			for _, c := range d.hub.LobbyConns() {
				if _, dup := sent[c]; dup {
					continue
				}
				c.Send(env)
			}
		}
		obslog.L().Debug("relay_dispatch",
			zap.String("type", env.Type),
			zap.String("session_id", env.SessionID),
			zap.Int("recipients", len(sent)),
			zap.Bool("lobby", ev.Lobby),
		)
	}
	if lobbyChanged {
		d.BroadcastLobby(ctx)
	}
}

// BroadcastLobby sends the current lobby to every subscriber.
func (d *Dispatcher) BroadcastLobby(ctx context.Context) {
	subs := d.hub.LobbyConns()
	if len(subs) == 0 {
		return
	}
	env, err := d.LobbySnapshot(ctx)
	if err != nil {
		obslog.L().Warn("relay_lobby_snapshot_error", zap.Error(err))
		return
	}
	for _, c := range subs {
		c.Send(env)
	}
}

func (d *Dispatcher) LobbySnapshot(ctx context.Context) (chessdto.Envelope, error) {
	entries, err := d.lobby.List(ctx)
	if err != nil {
		return chessdto.Envelope{}, err
	}
	return chessdto.Envelope{Type: chessdto.EnvLobbyUpdated, Lobby: chesspresenter.ToLobbyEntries(entries)}, nil
}
