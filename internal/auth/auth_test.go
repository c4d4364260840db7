package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/park285/Cheese-Chess-Arena/internal/identity"
)

func TestIssueVerify(t *testing.T) {
	svc, err := NewTokenService("secret", "arena")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	tok, err := svc.Issue("u1", "alice", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	c, err := svc.Verify(tok)
	if err != nil || c.UserID != "u1" || c.Username != "alice" {
		t.Fatalf("Verify: %v %+v", err, c)
	}

	other, _ := NewTokenService("other", "arena")
	if _, err := other.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret: expected ErrInvalidToken, got %v", err)
	}
	wrongIss, _ := NewTokenService("secret", "elsewhere")
	if _, err := wrongIss.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong issuer: expected ErrInvalidToken, got %v", err)
	}
	expired, _ := svc.Issue("u1", "alice", -time.Minute)
	if _, err := svc.Verify(expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired: expected ErrInvalidToken, got %v", err)
	}
	if _, err := NewTokenService(" ", ""); err == nil {
		t.Fatalf("expected empty secret error")
	}
}

func TestMiddleware(t *testing.T) {
	svc, _ := NewTokenService("secret", "")
	dir := identity.NewMemoryDirectory()
	var seen Identity
	h := Middleware(svc, dir)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/multiplayer/games", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: got %d", rec.Code)
	}

	tok, _ := svc.Issue("u7", "Bob", time.Minute)
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || seen.UserID != "u7" {
		t.Fatalf("valid token: code=%d identity=%+v", rec.Code, seen)
	}
	if id, _ := dir.ResolveByUsername(context.Background(), "bob"); id != "u7" {
		t.Fatalf("caller not registered: %q", id)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?token="+tok, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("query token: got %d", rec.Code)
	}
}
