package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/park285/Cheese-Chess-Arena/internal/identity"
	"github.com/park285/Cheese-Chess-Arena/internal/obslog"
	"github.com/park285/Cheese-Chess-Arena/internal/rules"
	"github.com/park285/Cheese-Chess-Arena/internal/session"
	"go.uber.org/zap"
)

// Oracle validates and applies chess moves.
type Oracle interface {
	InitialPosition() rules.Position
	ApplyMove(pos rules.Position, spec rules.MoveSpec) (rules.MoveResult, error)
}

// ResultRecorder receives every session that reached a terminal status.
type ResultRecorder interface {
	RecordResult(ctx context.Context, s *session.Session) error
}

type CreateRequest struct {
	Visibility      session.Visibility
	InviteeUsername string
}

// errUnchanged aborts a mutation that would not change anything.
var errUnchanged = errors.New("unchanged")

type Manager struct {
	store    session.Store
	oracle   Oracle
	dir      identity.Directory
	recorder ResultRecorder
	now      func() time.Time
	newID    func() string
}

type Option func(*Manager)

func WithRecorder(r ResultRecorder) Option  { return func(m *Manager) { m.recorder = r } }
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }
func WithIDs(gen func() string) Option      { return func(m *Manager) { m.newID = gen } }

func NewManager(store session.Store, oracle Oracle, dir identity.Directory, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		oracle: oracle,
		dir:    dir,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) Get(ctx context.Context, sessionID string) (*session.Session, error) {
	return m.store.Get(ctx, sessionID)
}

// Create opens a session with the caller as white. A named invitee makes the
// session private and pending until the invitee answers.
func (m *Manager) Create(ctx context.Context, userID string, req CreateRequest) (*session.Session, []Event, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, nil, session.Errorf(session.KindUnauthorized, "", "missing user")
	}
	vis := req.Visibility
	if vis == "" {
		vis = session.Public
	}
	invitee := strings.TrimSpace(req.InviteeUsername)
	if invitee != "" && vis != session.Private {
		return nil, nil, session.Errorf(session.KindInvalidArgument, "", "an invitation requires a private game")
	}

	var inviteeID string
	if invitee != "" {
		id, err := m.dir.ResolveByUsername(ctx, invitee)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve invitee: %w", err)
		}
		if id == "" {
			return nil, nil, session.Errorf(session.KindInvalidInvitee, "", "user %q not found", invitee)
		}
		if id == userID {
			return nil, nil, session.Errorf(session.KindInvalidInvitee, "", "cannot invite yourself")
		}
		inviteeID = id
	}

	now := m.now()
	s := &session.Session{
		ID:         m.newID(),
		Visibility: vis,
		Status:     session.StatusCreated,
		Players:    []session.Player{{ID: userID, Name: m.dir.DisplayName(ctx, userID), Color: session.White}},
		Turn:       session.White,
		Position:   m.oracle.InitialPosition(),
		CreatedBy:  userID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if inviteeID != "" {
		s.Status = session.StatusPendingInvite
		s.InvitedUser = inviteeID
		s.InvitedName = m.dir.DisplayName(ctx, inviteeID)
	}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, nil, err
	}

	created := participantsEvent(EventSessionCreated, s, userID)
	created.Lobby = s.OpenPublic()
	events := []Event{created}
	if inviteeID != "" {
		events = append(events, Event{Kind: EventInvited, Session: s, Recipients: []string{inviteeID}, Actor: userID})
	}
	obslog.L().Info("arena_session_create",
		zap.String("session_id", s.ID),
		zap.String("creator_id", userID),
		zap.String("visibility", string(vis)),
		zap.String("invited_id", inviteeID),
	)
	return s, events, nil
}

// JoinPublic seats userID as black in an open public session.
func (m *Manager) JoinPublic(ctx context.Context, sessionID, userID string) (*session.Session, []Event, error) {
	name := m.dir.DisplayName(ctx, userID)
	s, err := m.store.Mutate(ctx, sessionID, func(s *session.Session) error {
		if !s.VisibleTo(userID) {
			return session.Errorf(session.KindNotFound, s.ID, "session not found")
		}
		if s.Status.Terminal() {
			return session.Errorf(session.KindGameOver, s.ID, "game is over")
		}
		if len(s.Players) >= 2 {
			return session.Errorf(session.KindGameFull, s.ID, "game already has two players")
		}
		if s.IsParticipant(userID) {
			return session.Errorf(session.KindAlreadyJoined, s.ID, "already joined")
		}
		if s.Visibility != session.Public || s.Status != session.StatusCreated {
			return session.Errorf(session.KindNotJoinable, s.ID, "game is not open for joining")
		}
		m.seatSecond(s, userID, name)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	ev := participantsEvent(EventPlayerJoined, s, userID)
	ev.Lobby = true
	obslog.L().Info("arena_session_join", zap.String("session_id", s.ID), zap.String("user_id", userID))
	return s, []Event{ev}, nil
}

// AcceptInvitation seats the invitee as black and starts the game.
func (m *Manager) AcceptInvitation(ctx context.Context, sessionID, userID string) (*session.Session, []Event, error) {
	name := m.dir.DisplayName(ctx, userID)
	s, err := m.store.Mutate(ctx, sessionID, func(s *session.Session) error {
		if err := checkInvitation(s, userID); err != nil {
			return err
		}
		m.seatSecond(s, userID, name)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	obslog.L().Info("arena_invitation_accept", zap.String("session_id", s.ID), zap.String("user_id", userID))
	return s, []Event{participantsEvent(EventPlayerJoined, s, userID)}, nil
}

// DeclineInvitation removes the pending session and tells the creator.
func (m *Manager) DeclineInvitation(ctx context.Context, sessionID, userID string) (*session.Session, []Event, error) {
	s, err := m.store.Delete(ctx, sessionID, func(s *session.Session) error {
		return checkInvitation(s, userID)
	})
	if err != nil {
		return nil, nil, err
	}
	obslog.L().Info("arena_invitation_decline", zap.String("session_id", s.ID), zap.String("user_id", userID))
	ev := Event{Kind: EventInvitationDeclined, Session: s, Recipients: []string{s.CreatedBy}, Actor: userID}
	return s, []Event{ev}, nil
}

func checkInvitation(s *session.Session, userID string) error {
	if s.Status.Terminal() {
		return session.Errorf(session.KindGameOver, s.ID, "game is over")
	}
	if s.Status != session.StatusPendingInvite {
		return session.Errorf(session.KindInvalidState, s.ID, "no pending invitation")
	}
	if s.InvitedUser == "" || s.InvitedUser != userID {
		return session.Errorf(session.KindNotInvited, s.ID, "not invited to this game")
	}
	return nil
}

func (m *Manager) seatSecond(s *session.Session, userID, name string) {
	s.Players = append(s.Players, session.Player{ID: userID, Name: name, Color: session.Black})
	s.Position = m.oracle.InitialPosition()
	s.Turn = session.White
	s.InCheck = false
	s.Status = session.StatusActive
	s.UpdatedAt = m.now()
}

// activePlayer runs the checks shared by every in-game operation.
func activePlayer(s *session.Session, userID string) (session.Player, error) {
	if s.Status.Terminal() {
		return session.Player{}, session.Errorf(session.KindGameOver, s.ID, "game is over")
	}
	if s.Status != session.StatusActive {
		return session.Player{}, session.Errorf(session.KindInvalidState, s.ID, "game has not started")
	}
	p, ok := s.Player(userID)
	if !ok {
		return session.Player{}, session.Errorf(session.KindPlayerNotInSession, s.ID, "not a player in this game")
	}
	return p, nil
}

// MakeMove applies a move for the side to play.
func (m *Manager) MakeMove(ctx context.Context, sessionID, userID string, spec rules.MoveSpec) (*session.Session, []Event, error) {
	var res rules.MoveResult
	s, err := m.store.Mutate(ctx, sessionID, func(s *session.Session) error {
		p, err := activePlayer(s, userID)
		if err != nil {
			return err
		}
		if p.Color != s.Turn {
			return session.Errorf(session.KindNotYourTurn, s.ID, "it is %s's turn", s.Turn)
		}
		res, err = m.oracle.ApplyMove(s.Position, spec)
		if err != nil {
			if errors.Is(err, rules.ErrIllegalMove) {
				return session.Errorf(session.KindIllegalMove, s.ID, "illegal move %s", spec.String())
			}
			return err
		}
		s.Position = res.Position
		s.Turn = s.Turn.Opposite()
		s.InCheck = res.IsCheck
		s.UpdatedAt = m.now()
		switch {
		case res.IsCheckmate:
			finish(s, session.StatusCheckmate, session.ReasonCheckmate, userID)
		case res.IsStalemate:
			finish(s, session.StatusStalemate, session.ReasonStalemate, "")
		case res.IsDraw:
			finish(s, session.StatusDraw, session.ReasonDraw, "")
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	obslog.L().Info("arena_move",
		zap.String("session_id", s.ID),
		zap.String("user_id", userID),
		zap.String("uci", res.UCI),
		zap.String("san", res.SAN),
		zap.String("status", string(s.Status)),
	)
	events := []Event{participantsEvent(EventStateUpdated, s, userID)}
	return s, m.afterTerminal(ctx, s, userID, events), nil
}

// OfferDraw records userID as the pending offerer. Repeating an offer is a
// no-op without events.
func (m *Manager) OfferDraw(ctx context.Context, sessionID, userID string) (*session.Session, []Event, error) {
	var current *session.Session
	s, err := m.store.Mutate(ctx, sessionID, func(s *session.Session) error {
		if _, err := activePlayer(s, userID); err != nil {
			return err
		}
		if s.PendingDrawOfferer == userID {
			current = s.Clone()
			return errUnchanged
		}
		s.PendingDrawOfferer = userID
		s.UpdatedAt = m.now()
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return current, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	obslog.L().Info("arena_draw_offer", zap.String("session_id", s.ID), zap.String("user_id", userID))
	return s, []Event{participantsEvent(EventDrawOffered, s, userID)}, nil
}

// RespondToDraw answers the opponent's pending offer. The offer is cleared
// either way; acceptance ends the game drawn with no winner.
func (m *Manager) RespondToDraw(ctx context.Context, sessionID, userID string, accepted bool) (*session.Session, []Event, error) {
	s, err := m.store.Mutate(ctx, sessionID, func(s *session.Session) error {
		if _, err := activePlayer(s, userID); err != nil {
			return err
		}
		if s.PendingDrawOfferer == "" {
			return session.Errorf(session.KindNoPendingOffer, s.ID, "no draw offer pending")
		}
		if s.PendingDrawOfferer == userID {
			return session.Errorf(session.KindCannotRespondToOwnOffer, s.ID, "cannot respond to your own offer")
		}
		s.PendingDrawOfferer = ""
		s.UpdatedAt = m.now()
		if accepted {
			finish(s, session.StatusDraw, session.ReasonAgreement, "")
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	obslog.L().Info("arena_draw_response",
		zap.String("session_id", s.ID),
		zap.String("user_id", userID),
		zap.Bool("accepted", accepted),
	)
	responded := participantsEvent(EventDrawResponded, s, userID)
	responded.Accepted = accepted
	events := []Event{responded}
	if accepted {
		events = append(events, participantsEvent(EventStateUpdated, s, userID))
	}
	return s, m.afterTerminal(ctx, s, userID, events), nil
}

// Resign ends the game in favor of the other participant, on either turn.
func (m *Manager) Resign(ctx context.Context, sessionID, userID string) (*session.Session, []Event, error) {
	s, err := m.store.Mutate(ctx, sessionID, func(s *session.Session) error {
		if _, err := activePlayer(s, userID); err != nil {
			return err
		}
		winner := ""
		if opp, ok := s.Opponent(userID); ok {
			winner = opp.ID
		}
		s.UpdatedAt = m.now()
		finish(s, session.StatusResigned, session.ReasonResignation, winner)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	obslog.L().Info("arena_resign", zap.String("session_id", s.ID), zap.String("user_id", userID), zap.String("winner_id", s.Winner))
	events := []Event{participantsEvent(EventStateUpdated, s, userID)}
	return s, m.afterTerminal(ctx, s, userID, events), nil
}

func finish(s *session.Session, status session.Status, reason session.EndReason, winner string) {
	s.Status = status
	s.EndReason = reason
	s.Winner = winner
	s.PendingDrawOfferer = ""
}

// afterTerminal appends game_ended and records the result once the session
// is final. Runs after the commit.
func (m *Manager) afterTerminal(ctx context.Context, s *session.Session, actor string, events []Event) []Event {
	if !s.Status.Terminal() {
		return events
	}
	events = append(events, endedEvent(s, actor))
	if m.recorder == nil {
		return events
	}
	if err := m.recorder.RecordResult(ctx, s.Clone()); err != nil {
		obslog.L().Error("arena_result_persist_error",
			zap.String("session_id", s.ID),
			zap.String("status", string(s.Status)),
			zap.Error(err),
		)
		return events
	}
	obslog.L().Info("arena_result_persist", zap.String("session_id", s.ID), zap.String("reason", string(s.EndReason)))
	return events
}
