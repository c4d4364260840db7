package chesspresenter

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/park285/Cheese-Chess-Arena/internal/game"
	"github.com/park285/Cheese-Chess-Arena/internal/msgcat"
	"github.com/park285/Cheese-Chess-Arena/internal/rules"
	"github.com/park285/Cheese-Chess-Arena/internal/session"
	"github.com/park285/Cheese-Chess-Arena/pkg/chessdto"
)

func newPresenter(t *testing.T) *Presenter {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	return NewPresenter(cat)
}

func sampleSession(t *testing.T, moves ...string) *session.Session {
	t.Helper()
	e := rules.NewEngine()
	pos := e.InitialPosition()
	inCheck := false
	for _, mv := range moves {
		res, err := e.ApplyMove(pos, rules.MoveSpec{Notation: mv})
		if err != nil {
			t.Fatalf("ApplyMove %s: %v", mv, err)
		}
		pos, inCheck = res.Position, res.IsCheck
	}
	return &session.Session{
		ID:         "s1",
		Visibility: session.Public,
		Status:     session.StatusActive,
		Players: []session.Player{
			{ID: "u1", Name: "Alice", Color: session.White},
			{ID: "u2", Name: "Bob", Color: session.Black},
		},
		Turn:      session.Black,
		Position:  pos,
		InCheck:   inCheck,
		CreatedBy: "u1",
		CreatedAt: time.Now(),
		Version:   3,
	}
}

func TestToSessionView(t *testing.T) {
	s := sampleSession(t, "e2e4", "d7d5", "e4d5")
	v := ToSessionView(s)
	if v.LastMove != "e4d5" || v.Version != 3 || len(v.Players) != 2 {
		t.Fatalf("unexpected view: %+v", v)
	}
	if v.Material.White != 39 || v.Material.Black != 38 {
		t.Fatalf("material: %+v", v.Material)
	}
	if len(v.Captured.White) != 1 || v.Captured.White[0] != "p" {
		t.Fatalf("captured: %+v", v.Captured)
	}
	v.MovesUCI[0] = "mutated"
	if s.Position.MovesUCI[0] != "e2e4" {
		t.Fatalf("view aliases session slices")
	}
}

func TestEventEnvelope(t *testing.T) {
	p := newPresenter(t)
	s := sampleSession(t, "e2e4", "f7f6", "d1h5")
	env := p.Event(game.Event{Kind: game.EventStateUpdated, Session: s, Actor: "u1"})
	if env.Type != "state_updated" || env.SessionID != "s1" || env.Version != 3 {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if env.Message != "Alice played Qh5+. Check!" {
		t.Fatalf("message: %q", env.Message)
	}

	s.Status, s.Winner, s.EndReason = session.StatusResigned, "u2", session.ReasonResignation
	ended := p.Event(game.Event{Kind: game.EventGameEnded, Session: s, Actor: "u1", Reason: s.EndReason, Winner: "u2"})
	if ended.Message != "Alice resigned. Bob wins." || ended.Winner != "u2" || ended.Reason != "resignation" {
		t.Fatalf("ended envelope: %+v", ended)
	}

	resp := p.Event(game.Event{Kind: game.EventDrawResponded, Session: s, Actor: "u2", Accepted: false})
	if resp.Accepted == nil || *resp.Accepted || !strings.Contains(resp.Message, "declined") {
		t.Fatalf("draw response envelope: %+v", resp)
	}
}

func TestErrorMapping(t *testing.T) {
	p := newPresenter(t)
	for _, k := range session.AllKinds {
		de := p.Error(session.Errorf(k, "s1", "raw"))
		if de.Code != string(k) || de.Message == "" || de.Message == "raw" {
			t.Fatalf("kind %s: catalog text missing: %+v", k, de)
		}
	}
	de := p.Error(errors.New("redis: connection refused"))
	if de.Code != CodeInternal || !de.Retryable {
		t.Fatalf("infrastructure error: %+v", de)
	}
	env := p.ErrorEnvelope("r1", session.ErrNotYourTurn)
	if env.Type != chessdto.EnvError || env.RequestID != "r1" || env.Error.Code != "not_your_turn" {
		t.Fatalf("error envelope: %+v", env)
	}
}
