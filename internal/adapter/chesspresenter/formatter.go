package chesspresenter

import (
	"github.com/park285/Cheese-Chess-Arena/internal/game"
	"github.com/park285/Cheese-Chess-Arena/internal/session"
)

func eventKey(ev game.Event) string {
	switch ev.Kind {
	case game.EventDrawResponded:
		if ev.Accepted {
			return "events.draw_responded.accepted"
		}
		return "events.draw_responded.declined"
	case game.EventGameEnded:
		return "events.game_ended." + string(ev.Reason)
	}
	return "events." + string(ev.Kind)
}

// eventData exposes display names rather than ids to the templates.
func eventData(ev game.Event) map[string]any {
	data := map[string]any{
		"Actor":      nameOf(ev.Session, ev.Actor),
		"Winner":     nameOf(ev.Session, ev.Winner),
		"Visibility": "",
		"LastMove":   "",
		"InCheck":    false,
	}
	if s := ev.Session; s != nil {
		data["Visibility"] = string(s.Visibility)
		data["InCheck"] = s.InCheck
		if n := len(s.Position.MovesSAN); n > 0 {
			data["LastMove"] = s.Position.MovesSAN[n-1]
		}
	}
	return data
}

func nameOf(s *session.Session, userID string) string {
	if s == nil || userID == "" {
		return userID
	}
	if p, ok := s.Player(userID); ok && p.Name != "" {
		return p.Name
	}
	if userID == s.InvitedUser && s.InvitedName != "" {
		return s.InvitedName
	}
	return userID
}
