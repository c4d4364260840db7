package relay

import (
	"context"
	"strings"

	"github.com/park285/Cheese-Chess-Arena/internal/game"
	"github.com/park285/Cheese-Chess-Arena/internal/obslog"
	"github.com/park285/Cheese-Chess-Arena/internal/rules"
	"github.com/park285/Cheese-Chess-Arena/internal/session"
	"github.com/park285/Cheese-Chess-Arena/pkg/chessdto"
	"go.uber.org/zap"
)

// Router maps client commands onto the game manager and hands the
// resulting events to the dispatcher once the operation has committed.
// The websocket handler and the HTTP API share it.
type Router struct {
	games      *game.Manager
	dispatcher *Dispatcher
}

func NewRouter(games *game.Manager, dispatcher *Dispatcher) *Router {
	return &Router{games: games, dispatcher: dispatcher}
}

func (r *Router) Dispatcher() *Dispatcher { return r.dispatcher }

func (r *Router) Execute(ctx context.Context, userID string, cmd chessdto.Command) (*session.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, session.ErrUnauthorized
	}
	sid := strings.TrimSpace(cmd.SessionID)
	if cmd.Type != chessdto.CmdCreate && sid == "" {
		return nil, session.Errorf(session.KindInvalidArgument, "", "sessionId is required")
	}

	var (
		s      *session.Session
		events []game.Event
		err    error
	)
	switch cmd.Type {
	case chessdto.CmdCreate:
		req := game.CreateRequest{}
		if cmd.Create != nil {
			vis, ok := session.ParseVisibility(cmd.Create.Visibility)
			if !ok {
				return nil, session.Errorf(session.KindInvalidArgument, "", "unknown visibility %q", cmd.Create.Visibility)
			}
			req.Visibility = vis
			req.InviteeUsername = cmd.Create.InviteeUsername
		}
		s, events, err = r.games.Create(ctx, userID, req)
	case chessdto.CmdJoin:
		s, events, err = r.games.JoinPublic(ctx, sid, userID)
	case chessdto.CmdAccept:
		s, events, err = r.games.AcceptInvitation(ctx, sid, userID)
	case chessdto.CmdDecline:
		s, events, err = r.games.DeclineInvitation(ctx, sid, userID)
	case chessdto.CmdMove:
		if cmd.Move == nil {
			return nil, session.Errorf(session.KindInvalidArgument, sid, "move is required")
		}
		spec := rules.MoveSpec{From: cmd.Move.From, To: cmd.Move.To, Promotion: cmd.Move.Promotion, Notation: cmd.Move.Notation}
		if spec.Empty() {
			return nil, session.Errorf(session.KindInvalidArgument, sid, "move is empty")
		}
		s, events, err = r.games.MakeMove(ctx, sid, userID, spec)
	case chessdto.CmdOfferDraw:
		s, events, err = r.games.OfferDraw(ctx, sid, userID)
	case chessdto.CmdRespondDraw:
		if cmd.Accepted == nil {
			return nil, session.Errorf(session.KindInvalidArgument, sid, "accepted is required")
		}
		s, events, err = r.games.RespondToDraw(ctx, sid, userID, *cmd.Accepted)
	case chessdto.CmdResign:
		s, events, err = r.games.Resign(ctx, sid, userID)
	case chessdto.CmdGet:
		return r.View(ctx, sid, userID)
	default:
		return nil, session.Errorf(session.KindInvalidArgument, sid, "unknown command %q", cmd.Type)
	}
	if err != nil {
		if _, domain := session.KindOf(err); !domain {
			obslog.L().Error("relay_command_error", zap.String("type", cmd.Type), zap.String("session_id", sid), zap.String("user_id", userID), zap.Error(err))
		}
		return nil, err
	}
	if r.dispatcher != nil && len(events) > 0 {
		r.dispatcher.Dispatch(ctx, events)
	}
	return s, nil
}

// View reads a session. Private sessions are visible only to their players
// and the invitee; anyone else sees NotFound.
func (r *Router) View(ctx context.Context, sessionID, userID string) (*session.Session, error) {
	s, err := r.games.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.VisibleTo(userID) {
		return nil, session.Errorf(session.KindNotFound, sessionID, "session not found")
	}
	return s, nil
}
