package chesspresenter

import (
	"github.com/park285/Cheese-Chess-Arena/internal/game"
	"github.com/park285/Cheese-Chess-Arena/internal/msgcat"
	"github.com/park285/Cheese-Chess-Arena/internal/session"
	"github.com/park285/Cheese-Chess-Arena/pkg/chessdto"
)

const CodeInternal = "internal"

// Presenter turns domain results into wire envelopes with catalog text.
type Presenter struct {
	cat *msgcat.Catalog
}

func NewPresenter(cat *msgcat.Catalog) *Presenter { return &Presenter{cat: cat} }

// Event builds the frame for one game event.
func (p *Presenter) Event(ev game.Event) chessdto.Envelope {
	env := chessdto.Envelope{
		Type:    string(ev.Kind),
		Actor:   ev.Actor,
		Session: ToSessionView(ev.Session),
		Reason:  string(ev.Reason),
		Winner:  ev.Winner,
	}
	if ev.Session != nil {
		env.SessionID = ev.Session.ID
		env.Version = ev.Session.Version
	}
	if ev.Kind == game.EventDrawResponded {
		accepted := ev.Accepted
		env.Accepted = &accepted
	}
	env.Message = p.cat.Text(eventKey(ev), eventData(ev), "")
	return env
}

// Error converts err into the wire error. Domain kinds keep their code;
// everything else is internal and retryable.
func (p *Presenter) Error(err error) chessdto.DomainError {
	if kind, ok := session.KindOf(err); ok {
		return chessdto.DomainError{
			Code:    string(kind),
			Message: p.cat.Text("errors."+string(kind), nil, err.Error()),
		}
	}
	return chessdto.DomainError{
		Code:      CodeInternal,
		Message:   p.cat.Text("errors."+CodeInternal, nil, "internal error"),
		Retryable: true,
	}
}

func (p *Presenter) ErrorEnvelope(requestID string, err error) chessdto.Envelope {
	de := p.Error(err)
	return chessdto.Envelope{Type: chessdto.EnvError, RequestID: requestID, Error: &de, Message: de.Message}
}
