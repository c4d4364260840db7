package session

import (
	"strings"
	"time"

	"github.com/park285/Cheese-Chess-Arena/internal/rules"
)

// Color identifies chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

// Visibility controls whether a session is listed in the lobby.
type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

func ParseVisibility(s string) (Visibility, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public", "":
		return Public, true
	case "private":
		return Private, true
	default:
		return "", false
	}
}

// Status represents the session lifecycle state.
type Status string

const (
	StatusCreated       Status = "created"
	StatusPendingInvite Status = "pending_invite"
	StatusActive        Status = "active"
	StatusCheckmate     Status = "checkmate"
	StatusStalemate     Status = "stalemate"
	StatusDraw          Status = "draw"
	StatusResigned      Status = "resigned"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusCheckmate, StatusStalemate, StatusDraw, StatusResigned:
		return true
	}
	return false
}

// EndReason records how a terminal session ended. Draw by agreement and an
// engine-reported draw both end in StatusDraw but keep different reasons.
type EndReason string

const (
	ReasonCheckmate   EndReason = "checkmate"
	ReasonStalemate   EndReason = "stalemate"
	ReasonDraw        EndReason = "draw"
	ReasonAgreement   EndReason = "agreement"
	ReasonResignation EndReason = "resignation"
)

type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color Color  `json:"color"`
}

// Session is the persisted state of one game.
type Session struct {
	ID                 string         `json:"id"`
	Visibility         Visibility     `json:"visibility"`
	Status             Status         `json:"status"`
	Players            []Player       `json:"players"`
	Turn               Color          `json:"turn"`
	Position           rules.Position `json:"position"`
	InCheck            bool           `json:"in_check,omitempty"`
	CreatedBy          string         `json:"created_by"`
	InvitedUser        string         `json:"invited_user,omitempty"`
	InvitedName        string         `json:"invited_name,omitempty"`
	Winner             string         `json:"winner,omitempty"`
	EndReason          EndReason      `json:"end_reason,omitempty"`
	PendingDrawOfferer string         `json:"pending_draw_offerer,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	Version            int64          `json:"version"`
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Players = append([]Player(nil), s.Players...)
	c.Position = s.Position.Clone()
	return &c
}

func (s *Session) Player(userID string) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == userID {
			return p, true
		}
	}
	return Player{}, false
}

func (s *Session) IsParticipant(userID string) bool {
	_, ok := s.Player(userID)
	return ok
}

// VisibleTo reports whether userID may learn that the session exists:
// public sessions are visible to all, private ones to players and the invitee.
func (s *Session) VisibleTo(userID string) bool {
	return s.Visibility != Private || s.IsParticipant(userID) || (s.InvitedUser != "" && s.InvitedUser == userID)
}

func (s *Session) PlayerByColor(c Color) (Player, bool) {
	for _, p := range s.Players {
		if p.Color == c {
			return p, true
		}
	}
	return Player{}, false
}

// Opponent returns the other participant of userID, if seated.
func (s *Session) Opponent(userID string) (Player, bool) {
	if !s.IsParticipant(userID) {
		return Player{}, false
	}
	for _, p := range s.Players {
		if p.ID != userID {
			return p, true
		}
	}
	return Player{}, false
}

func (s *Session) ParticipantIDs() []string {
	ids := make([]string, 0, len(s.Players))
	for _, p := range s.Players {
		ids = append(ids, p.ID)
	}
	return ids
}

// OpenPublic reports lobby membership: public, waiting, one seat taken.
func (s *Session) OpenPublic() bool {
	return s.Visibility == Public && s.Status == StatusCreated && len(s.Players) < 2
}

func (s *Session) LastMove() string {
	if n := len(s.Position.MovesUCI); n > 0 {
		return s.Position.MovesUCI[n-1]
	}
	return ""
}
