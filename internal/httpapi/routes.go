package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/park285/Cheese-Chess-Arena/internal/adapter/chesspresenter"
	"github.com/park285/Cheese-Chess-Arena/internal/auth"
	"github.com/park285/Cheese-Chess-Arena/internal/domain"
	"github.com/park285/Cheese-Chess-Arena/internal/identity"
	"github.com/park285/Cheese-Chess-Arena/internal/lobby"
	"github.com/park285/Cheese-Chess-Arena/internal/obslog"
	"github.com/park285/Cheese-Chess-Arena/internal/relay"
	"github.com/park285/Cheese-Chess-Arena/internal/suggest"
	"go.uber.org/zap"
)

// HistoryReader is the read side of the result history.
type HistoryReader interface {
	History(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error)
	Record(ctx context.Context, sessionID string) (*domain.GameRecord, error)
}

type Deps struct {
	Router    *relay.Router
	Lobby     *lobby.Index
	History   HistoryReader
	Suggester suggest.Suggester
	Presenter *chesspresenter.Presenter
	Tokens    *auth.TokenService
	Directory identity.Directory
	WS        http.Handler
	Ready     func(ctx context.Context) error
}

type api struct {
	Deps
}

func SetupRoutes(d Deps) http.Handler {
	a := &api{Deps: d}
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer, accessLog)

	r.Get("/healthz", a.healthz)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(d.Tokens, d.Directory))
		if d.WS != nil {
			r.Get("/ws", d.WS.ServeHTTP)
		}
		r.Route("/api/multiplayer", func(r chi.Router) {
			r.Get("/games", a.listLobby)
			r.Post("/games", a.createGame)
			r.Get("/history", a.history)
			r.Route("/games/{id}", func(r chi.Router) {
				r.Get("/", a.getGame)
				r.Get("/pgn", a.pgn)
				r.Post("/join", a.join)
				r.Post("/accept", a.accept)
				r.Post("/decline", a.decline)
				r.Post("/moves", a.move)
				r.Post("/draw-offer", a.offerDraw)
				r.Post("/draw-response", a.respondDraw)
				r.Post("/resign", a.resign)
			})
		})
		r.Post("/api/single-player/suggest", a.suggest)
	})
	return r
}

func (a *api) healthz(w http.ResponseWriter, r *http.Request) {
	if a.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Ready(ctx); err != nil {
			obslog.L().Warn("healthz_not_ready", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		obslog.L().Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}
