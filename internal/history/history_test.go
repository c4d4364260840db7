package history

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/park285/Cheese-Chess-Arena/internal/domain"
	"github.com/park285/Cheese-Chess-Arena/internal/rules"
	"github.com/park285/Cheese-Chess-Arena/internal/session"
)

func finished(t *testing.T, id string, status session.Status, winner string, at time.Time, moves ...string) *session.Session {
	t.Helper()
	e := rules.NewEngine()
	pos := e.InitialPosition()
	for _, mv := range moves {
		res, err := e.ApplyMove(pos, rules.MoveSpec{Notation: mv})
		if err != nil {
			t.Fatalf("ApplyMove %s: %v", mv, err)
		}
		pos = res.Position
	}
	reason := map[session.Status]session.EndReason{
		session.StatusCheckmate: session.ReasonCheckmate,
		session.StatusResigned:  session.ReasonResignation,
		session.StatusDraw:      session.ReasonAgreement,
	}[status]
	return &session.Session{
		ID:         id,
		Visibility: session.Public,
		Status:     status,
		Players: []session.Player{
			{ID: "alice", Name: "Alice", Color: session.White},
			{ID: "bob", Name: "Bob \"B\"", Color: session.Black},
		},
		Position:  pos,
		Winner:    winner,
		EndReason: reason,
		CreatedBy: "alice",
		CreatedAt: at.Add(-10 * time.Minute),
		UpdatedAt: at,
	}
}

func TestFromSession_PGN(t *testing.T) {
	at := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	s := finished(t, "g1", session.StatusCheckmate, "bob", at, "f2f3", "e7e5", "g2g4", "d8h4")
	rec := FromSession(s)
	if rec.Result != "black" || rec.WhiteID != "alice" || rec.BlackID != "bob" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Duration != 10*time.Minute {
		t.Fatalf("duration: %v", rec.Duration)
	}
	for _, want := range []string{
		"[Date \"2026.04.02\"]",
		"[Black \"Bob 'B'\"]",
		"[Result \"0-1\"]",
		"[Termination \"checkmate\"]",
		"1. f3 e5 2. g4 Qh4# 0-1",
	} {
		if !strings.Contains(rec.PGN, want) {
			t.Fatalf("PGN missing %q:\n%s", want, rec.PGN)
		}
	}
}

func TestFromSession_Unfinished(t *testing.T) {
	s := finished(t, "g2", session.StatusActive, "", time.Now(), "e2e4")
	rec := FromSession(s)
	if rec.Result != "" || !strings.HasSuffix(rec.PGN, "1. e4 *") {
		t.Fatalf("unfinished game must end with '*': %q", rec.PGN)
	}
}

func TestService_RecordAndHistory(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository())
	base := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	if err := svc.RecordResult(ctx, finished(t, "active", session.StatusActive, "", base)); err != nil {
		t.Fatalf("RecordResult active: %v", err)
	}
	_ = svc.RecordResult(ctx, finished(t, "g1", session.StatusCheckmate, "bob", base, "f2f3", "e7e5", "g2g4", "d8h4"))
	_ = svc.RecordResult(ctx, finished(t, "g2", session.StatusResigned, "alice", base.Add(time.Hour)))
	_ = svc.RecordResult(ctx, finished(t, "g3", session.StatusDraw, "", base.Add(2*time.Hour)))
	// replays upsert
	_ = svc.RecordResult(ctx, finished(t, "g3", session.StatusDraw, "", base.Add(2*time.Hour)))

	hist, err := svc.History(ctx, "alice", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("expected 3 games, got %d", len(hist))
	}
	want := []string{domain.OutcomeDraw, domain.OutcomeWon, domain.OutcomeLost}
	for i, w := range want {
		if hist[i].Outcome != w {
			t.Fatalf("entry %d outcome %q, want %q", i, hist[i].Outcome, w)
		}
		if hist[i].Color != "white" || hist[i].OpponentID != "bob" {
			t.Fatalf("entry %d perspective wrong: %+v", i, hist[i])
		}
	}
	bob, _ := svc.History(ctx, "bob", 1)
	if len(bob) != 1 || bob[0].Outcome != domain.OutcomeDraw || bob[0].Color != "black" {
		t.Fatalf("bob history: %+v", bob)
	}
	if none, _ := svc.History(ctx, "carol", 0); len(none) != 0 {
		t.Fatalf("carol has no games")
	}
	if rec, _ := svc.Record(ctx, "active"); rec != nil {
		t.Fatalf("unfinished session must not be recorded")
	}
}

// Runs against a real database when ARENA_TEST_DATABASE_URL is set.
func TestPostgresRepository(t *testing.T) {
	url := os.Getenv("ARENA_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("ARENA_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	repo, err := OpenPostgres(ctx, url)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	defer repo.Close()
	id := "pg-" + time.Now().Format("150405.000000")
	rec := FromSession(finished(t, id, session.StatusCheckmate, "bob", time.Now().UTC(), "f2f3", "e7e5", "g2g4", "d8h4"))
	if err := repo.SaveResult(ctx, rec); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	got, err := repo.GetBySession(ctx, id)
	if err != nil || got == nil {
		t.Fatalf("GetBySession: %v", err)
	}
	if got.Result != "black" || len(got.MovesSAN) != 4 {
		t.Fatalf("unexpected stored record: %+v", got)
	}
	list, err := repo.ListByUser(ctx, "bob", 5)
	if err != nil || len(list) == 0 {
		t.Fatalf("ListByUser: %v", err)
	}
}
