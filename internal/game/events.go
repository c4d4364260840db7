package game

import (
	"github.com/park285/Cheese-Chess-Arena/internal/session"
)

// EventKind names an outbound notification.
type EventKind string

const (
	EventSessionCreated     EventKind = "session_created"
	EventInvited            EventKind = "invited"
	EventPlayerJoined       EventKind = "player_joined"
	EventStateUpdated       EventKind = "state_updated"
	EventDrawOffered        EventKind = "draw_offered"
	EventDrawResponded      EventKind = "draw_responded"
	EventGameEnded          EventKind = "game_ended"
	EventInvitationDeclined EventKind = "invitation_declined"
)

// Event is produced by a committed operation and delivered by the relay.
// Recipients lists user ids; Lobby marks events that change the open public
// set and therefore go to lobby subscribers as well.
type Event struct {
	Kind       EventKind
	Session    *session.Session
	Recipients []string
	Lobby      bool
	Actor      string

	// draw_responded
	Accepted bool
	// game_ended
	Reason session.EndReason
	Winner string
}

func participantsEvent(kind EventKind, s *session.Session, actor string) Event {
	return Event{Kind: kind, Session: s, Recipients: s.ParticipantIDs(), Actor: actor}
}

func endedEvent(s *session.Session, actor string) Event {
	ev := participantsEvent(EventGameEnded, s, actor)
	ev.Reason = s.EndReason
	ev.Winner = s.Winner
	return ev
}
