package session

import (
	"errors"
	"fmt"
)

// Kind is the closed set of domain rejections. The HTTP boundary maps every
// kind to a status code; AllKinds must list each of them.
type Kind string

const (
	KindNotFound                Kind = "not_found"
	KindInvalidInvitee          Kind = "invalid_invitee"
	KindNotJoinable             Kind = "not_joinable"
	KindGameFull                Kind = "game_full"
	KindAlreadyJoined           Kind = "already_joined"
	KindNotInvited              Kind = "not_invited"
	KindInvalidState            Kind = "invalid_state"
	KindPlayerNotInSession      Kind = "player_not_in_session"
	KindNotYourTurn             Kind = "not_your_turn"
	KindIllegalMove             Kind = "illegal_move"
	KindNoPendingOffer          Kind = "no_pending_offer"
	KindCannotRespondToOwnOffer Kind = "cannot_respond_to_own_offer"
	KindGameOver                Kind = "game_over"
	KindUnauthorized            Kind = "unauthorized"
	KindInvalidArgument         Kind = "invalid_argument"
)

var AllKinds = []Kind{
	KindNotFound,
	KindInvalidInvitee,
	KindNotJoinable,
	KindGameFull,
	KindAlreadyJoined,
	KindNotInvited,
	KindInvalidState,
	KindPlayerNotInSession,
	KindNotYourTurn,
	KindIllegalMove,
	KindNoPendingOffer,
	KindCannotRespondToOwnOffer,
	KindGameOver,
	KindUnauthorized,
	KindInvalidArgument,
}

// Error is a domain rejection. errors.Is matches on Kind alone, so callers
// compare against the Err* sentinels below.
type Error struct {
	Kind      Kind
	SessionID string
	Msg       string
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.SessionID != "" {
		return fmt.Sprintf("session %s: %s", e.SessionID, msg)
	}
	return msg
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound                = &Error{Kind: KindNotFound}
	ErrInvalidInvitee          = &Error{Kind: KindInvalidInvitee}
	ErrNotJoinable             = &Error{Kind: KindNotJoinable}
	ErrGameFull                = &Error{Kind: KindGameFull}
	ErrAlreadyJoined           = &Error{Kind: KindAlreadyJoined}
	ErrNotInvited              = &Error{Kind: KindNotInvited}
	ErrInvalidState            = &Error{Kind: KindInvalidState}
	ErrPlayerNotInSession      = &Error{Kind: KindPlayerNotInSession}
	ErrNotYourTurn             = &Error{Kind: KindNotYourTurn}
	ErrIllegalMove             = &Error{Kind: KindIllegalMove}
	ErrNoPendingOffer          = &Error{Kind: KindNoPendingOffer}
	ErrCannotRespondToOwnOffer = &Error{Kind: KindCannotRespondToOwnOffer}
	ErrGameOver                = &Error{Kind: KindGameOver}
	ErrUnauthorized            = &Error{Kind: KindUnauthorized}
	ErrInvalidArgument         = &Error{Kind: KindInvalidArgument}
)

func Errorf(kind Kind, sessionID, format string, args ...any) *Error {
	return &Error{Kind: kind, SessionID: sessionID, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the domain kind from err.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
