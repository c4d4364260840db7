package suggest

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/Cheese-Chess-Arena/internal/enginefast"
	"github.com/park285/Cheese-Chess-Arena/internal/obslog"
	"github.com/park285/Cheese-Chess-Arena/internal/rules"
	"github.com/park285/Cheese-Chess-Arena/internal/session"
	"go.uber.org/zap"
)

const (
	SourceCloud  = "cloud"
	SourceRandom = "random"
)

type Suggestion struct {
	UCI    string
	SAN    string
	Source string
	EvalCP *int
	Mate   *int
}

// Suggester picks a move for the side to move in fen.
type Suggester interface {
	Suggest(ctx context.Context, fen string) (Suggestion, error)
}

// load parses fen and rejects positions without a legal move.
func load(fen string) (*nchess.Game, error) {
	game, err := rules.FromFEN(fen)
	if err != nil {
		return nil, session.Errorf(session.KindInvalidArgument, "", "invalid fen: %v", err)
	}
	if game.Outcome() != nchess.NoOutcome || len(game.ValidMoves()) == 0 {
		return nil, session.Errorf(session.KindInvalidArgument, "", "position has no legal moves")
	}
	return game, nil
}

// Random picks uniformly among the legal moves.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandom(rng *rand.Rand) *Random {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Random{rng: rng}
}

func (r *Random) Suggest(_ context.Context, fen string) (Suggestion, error) {
	game, err := load(fen)
	if err != nil {
		return Suggestion{}, err
	}
	moves := game.ValidMoves()
	r.mu.Lock()
	i := r.rng.IntN(len(moves))
	r.mu.Unlock()
	uci := moves[i].String()
	return Suggestion{UCI: uci, SAN: rules.SAN(game, uci), Source: SourceRandom}, nil
}

// Evaluator is the part of the cloud-eval client the suggester uses.
type Evaluator interface {
	CloudEval(ctx context.Context, fen string, multiPV int) (*enginefast.Evaluation, error)
}

// Cloud takes the best line of a cached cloud analysis.
type Cloud struct {
	eval Evaluator
}

func NewCloud(eval Evaluator) *Cloud { return &Cloud{eval: eval} }

func (c *Cloud) Suggest(ctx context.Context, fen string) (Suggestion, error) {
	game, err := load(fen)
	if err != nil {
		return Suggestion{}, err
	}
	ev, err := c.eval.CloudEval(ctx, game.Position().String(), 1)
	if err != nil {
		return Suggestion{}, err
	}
	pv := ev.PVs[0]
	uci := strings.ToLower(pv.FirstMove())
	san := rules.SAN(game, uci)
	if san == "" {
		return Suggestion{}, fmt.Errorf("cloud eval returned unusable move %q", uci)
	}
	return Suggestion{UCI: uci, SAN: san, Source: SourceCloud, EvalCP: pv.CP, Mate: pv.Mate}, nil
}

// Fallback asks each suggester in turn. Invalid positions are reported
// immediately instead of being retried further down the chain.
type Fallback struct {
	chain []Suggester
}

func NewFallback(chain ...Suggester) *Fallback { return &Fallback{chain: chain} }

func (f *Fallback) Suggest(ctx context.Context, fen string) (Suggestion, error) {
	var lastErr error
	for _, s := range f.chain {
		if s == nil {
			continue
		}
		out, err := s.Suggest(ctx, fen)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, session.ErrInvalidArgument) {
			return Suggestion{}, err
		}
		if !errors.Is(err, enginefast.ErrNoEvaluation) {
			obslog.L().Warn("suggest_fallback", zap.String("fen", fen), zap.Error(err))
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no suggester configured")
	}
	return Suggestion{}, lastErr
}
