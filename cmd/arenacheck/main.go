package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/park285/Cheese-Chess-Arena/internal/auth"
	"github.com/park285/Cheese-Chess-Arena/internal/relayclient"
	"github.com/park285/Cheese-Chess-Arena/pkg/chessdto"
)

// arenacheck plays a short game between two synthetic users over the relay
// and prints every frame either side receives.
func main() {
	_ = godotenv.Load()

	wsURL := strings.TrimSpace(os.Getenv("ARENA_WS_URL"))
	if wsURL == "" {
		wsURL = "ws://localhost:8080/ws"
	}
	secret := strings.TrimSpace(os.Getenv("AUTH_JWT_SECRET"))
	if secret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	tokens, err := auth.NewTokenService(secret, strings.TrimSpace(os.Getenv("AUTH_JWT_ISSUER")))
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	suffix := fmt.Sprint(time.Now().Unix())
	white := connect(ctx, wsURL, tokens, "check-white-"+suffix)
	black := connect(ctx, wsURL, tokens, "check-black-"+suffix)
	defer white.Close(context.Background())
	defer black.Close(context.Background())

	must(black.Request(ctx, chessdto.Command{Type: chessdto.CmdSubscribeLobby}))
	created := must(white.Request(ctx, chessdto.Command{Type: chessdto.CmdCreate, Create: &chessdto.CreateGameRequest{Visibility: "public"}}))
	sid := created.SessionID
	log.Printf("created session %s", sid)

	must(black.Request(ctx, chessdto.Command{Type: chessdto.CmdJoin, SessionID: sid}))

	// fool's mate, black wins
	plies := []struct {
		c    *relayclient.Client
		move string
	}{
		{white, "f2f3"}, {black, "e7e5"}, {white, "g2g4"}, {black, "d8h4"},
	}
	var last chessdto.Envelope
	for _, p := range plies {
		last = must(p.c.Request(ctx, chessdto.Command{Type: chessdto.CmdMove, SessionID: sid, Move: &chessdto.MoveRequest{Notation: p.move}}))
	}
	if last.Session == nil || last.Session.Status != "checkmate" {
		log.Fatalf("expected checkmate, got %+v", last.Session)
	}

	// let the game_ended frames arrive before closing
	time.Sleep(500 * time.Millisecond)
	log.Printf("ok: %s won by %s", last.Session.Winner, last.Session.EndReason)
}

func connect(ctx context.Context, wsURL string, tokens *auth.TokenService, user string) *relayclient.Client {
	tok, err := tokens.Issue(user, user, 10*time.Minute)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	c := relayclient.New(wsURL, relayclient.WithToken(func() string { return tok }), relayclient.WithReconnect(0))
	c.OnStateChange(func(s relayclient.State) { log.Printf("[%s] state: %s", user, s) })
	c.OnEnvelope(func(env *chessdto.Envelope) {
		status := ""
		if env.Session != nil {
			status = env.Session.Status
		}
		fmt.Printf("[%s] %-20s session=%s v=%d status=%s %s\n", user, env.Type, env.SessionID, env.Version, status, env.Message)
	})
	if err := c.Connect(ctx); err != nil {
		log.Fatalf("[%s] connect: %v", user, err)
	}
	return c
}

func must(env chessdto.Envelope, err error) chessdto.Envelope {
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	return env
}
