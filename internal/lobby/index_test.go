package lobby

import (
	"context"
	"testing"
	"time"

	"github.com/park285/Cheese-Chess-Arena/internal/session"
)

func TestSince(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		ago  time.Duration
		want string
	}{
		{0, "just now"},
		{500 * time.Millisecond, "just now"},
		{time.Second, "1 second ago"},
		{59 * time.Second, "59 seconds ago"},
		{time.Minute, "1 minute ago"},
		{5*time.Minute + 30*time.Second, "5 minutes ago"},
		{2 * time.Hour, "2 hours ago"},
		{25 * time.Hour, "1 day ago"},
		{29 * 24 * time.Hour, "29 days ago"},
		{30 * 24 * time.Hour, "1 month ago"},
		{364 * 24 * time.Hour, "12 months ago"},
		{365 * 24 * time.Hour, "1 year ago"},
		{3 * 365 * 24 * time.Hour, "3 years ago"},
		{-time.Minute, "just now"},
	}
	for _, tc := range cases {
		if got := Since(now.Add(-tc.ago), now); got != tc.want {
			t.Fatalf("Since(-%v) = %q, want %q", tc.ago, got, tc.want)
		}
	}
}

func TestIndexList(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	mk := func(id, creator string, age time.Duration) *session.Session {
		return &session.Session{
			ID:         id,
			Visibility: session.Public,
			Status:     session.StatusCreated,
			Players:    []session.Player{{ID: creator, Name: "Name-" + creator, Color: session.White}},
			CreatedBy:  creator,
			CreatedAt:  now.Add(-age),
		}
	}
	_ = store.Create(ctx, mk("older", "a", 2*time.Hour))
	_ = store.Create(ctx, mk("newer", "b", 90*time.Second))

	x := NewIndex(store).WithClock(func() time.Time { return now })
	list, err := x.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Session.ID != "newer" {
		t.Fatalf("expected newest first, got %+v", list)
	}
	if list[0].TimeSinceCreation != "1 minute ago" || list[1].TimeSinceCreation != "2 hours ago" {
		t.Fatalf("unexpected ages: %q %q", list[0].TimeSinceCreation, list[1].TimeSinceCreation)
	}
	if list[0].CreatorName != "Name-b" {
		t.Fatalf("creator name: %q", list[0].CreatorName)
	}

	_, _ = store.Mutate(ctx, "newer", func(s *session.Session) error {
		s.Players = append(s.Players, session.Player{ID: "c", Color: session.Black})
		s.Status = session.StatusActive
		return nil
	})
	list, _ = x.List(ctx)
	if len(list) != 1 || list[0].Session.ID != "older" {
		t.Fatalf("joined session must leave the lobby immediately: %+v", list)
	}
}
