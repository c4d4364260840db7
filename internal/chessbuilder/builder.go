package chessbuilder

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/park285/Cheese-Chess-Arena/internal/adapter/chesspresenter"
	"github.com/park285/Cheese-Chess-Arena/internal/auth"
	"github.com/park285/Cheese-Chess-Arena/internal/config"
	"github.com/park285/Cheese-Chess-Arena/internal/enginefast"
	"github.com/park285/Cheese-Chess-Arena/internal/engineuci"
	"github.com/park285/Cheese-Chess-Arena/internal/game"
	"github.com/park285/Cheese-Chess-Arena/internal/history"
	"github.com/park285/Cheese-Chess-Arena/internal/httpapi"
	"github.com/park285/Cheese-Chess-Arena/internal/identity"
	"github.com/park285/Cheese-Chess-Arena/internal/lobby"
	"github.com/park285/Cheese-Chess-Arena/internal/msgcat"
	"github.com/park285/Cheese-Chess-Arena/internal/obslog"
	"github.com/park285/Cheese-Chess-Arena/internal/relay"
	"github.com/park285/Cheese-Chess-Arena/internal/rules"
	"github.com/park285/Cheese-Chess-Arena/internal/session"
	"github.com/park285/Cheese-Chess-Arena/internal/suggest"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App is the wired server. Redis and Postgres are optional; without them the
// in-memory store, directory and history are used.
type App struct {
	Handler http.Handler
	Manager *game.Manager
	Hub     *relay.Hub
	Tokens  *auth.TokenService

	closers []func() error
}

func New(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	app := &App{}
	var pings []func(context.Context) error

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return nil, err
	}
	app.Tokens = tokens

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	var (
		store session.Store
		dir   identity.Directory
	)
	if cfg.RedisURL != "" {
		opt, perr := session.ParseRedisURL(cfg.RedisURL)
		if perr != nil {
			return nil, fmt.Errorf("parse redis url: %w", perr)
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		app.closers = append(app.closers, rdb.Close)
		pings = append(pings, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		store = session.NewRedisStore(rdb, cfg.SessionTTL)
		dir = identity.NewRedisDirectory(rdb)
		obslog.L().Info("arena_store", zap.String("backend", "redis"), zap.String("addr", opt.Addr))
	} else {
		store = session.NewMemoryStore(session.WithTTL(cfg.SessionTTL))
		dir = identity.NewMemoryDirectory()
		obslog.L().Warn("arena_store", zap.String("backend", "memory"))
	}

	var repo history.Repository
	if cfg.DatabaseURL != "" {
		pg, err := history.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("open history: %w", err)
		}
		app.closers = append(app.closers, pg.Close)
		pings = append(pings, pg.Ping)
		repo = pg
		obslog.L().Info("arena_history", zap.String("backend", "postgres"))
	} else {
		repo = history.NewMemoryRepository()
		obslog.L().Warn("arena_history", zap.String("backend", "memory"))
	}
	hist := history.NewService(repo)

	suggester, err := app.newSuggester(cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	pres := chesspresenter.NewPresenter(cat)
	idx := lobby.NewIndex(store)
	app.Hub = relay.NewHub(cfg.RelayOutboxSize)
	app.Manager = game.NewManager(store, rules.NewEngine(), dir, game.WithRecorder(hist))
	router := relay.NewRouter(app.Manager, relay.NewDispatcher(app.Hub, idx, pres))

	app.Handler = httpapi.SetupRoutes(httpapi.Deps{
		Router:    router,
		Lobby:     idx,
		History:   hist,
		Suggester: suggester,
		Presenter: pres,
		Tokens:    tokens,
		Directory: dir,
		WS:        relay.NewHandler(app.Hub, router, pres, cfg.WSAllowedOrigins),
		Ready: func(ctx context.Context) error {
			for _, p := range pings {
				if err := p(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})
	return app, nil
}

// newSuggester chains cloud eval, the local engine and random moves, in that
// order, skipping whichever is not configured.
func (a *App) newSuggester(cfg *config.AppConfig) (suggest.Suggester, error) {
	var chain []suggest.Suggester
	if cfg.EngineCloudURL != "" {
		cloud := enginefast.NewClient(cfg.EngineCloudURL, enginefast.WithTimeout(cfg.EngineTimeout))
		chain = append(chain, suggest.NewCloud(cloud))
	}
	if cfg.EngineUCIPath != "" {
		pool, err := engineuci.NewPool(engineuci.PoolConfig{
			BinaryPath: cfg.EngineUCIPath,
			Capacity:   cfg.EngineUCIPoolSize,
		})
		if err != nil {
			return nil, fmt.Errorf("local engine: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		limits := engineuci.Limits{MoveTimeMillis: int(cfg.EngineUCIMoveTime.Milliseconds())}
		chain = append(chain, suggest.NewLocal(pool, limits))
		obslog.L().Info("arena_engine", zap.String("path", cfg.EngineUCIPath))
	}
	random := suggest.NewRandom(nil)
	if len(chain) == 0 {
		return random, nil
	}
	return suggest.NewFallback(append(chain, random)...), nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
