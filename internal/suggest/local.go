package suggest

import (
	"context"
	"errors"
	"fmt"

	"github.com/park285/Cheese-Chess-Arena/internal/engineuci"
	"github.com/park285/Cheese-Chess-Arena/internal/rules"
)

const SourceLocal = "local"

// Searcher is the part of the UCI engine pool the suggester uses.
type Searcher interface {
	Search(ctx context.Context, fen string, l engineuci.Limits) (engineuci.Result, error)
}

// Local asks a locally installed UCI engine.
type Local struct {
	engine Searcher
	limits engineuci.Limits
}

func NewLocal(engine Searcher, limits engineuci.Limits) *Local {
	if limits.Depth <= 0 && limits.MoveTimeMillis <= 0 {
		limits.MoveTimeMillis = 200
	}
	return &Local{engine: engine, limits: limits}
}

func (l *Local) Suggest(ctx context.Context, fen string) (Suggestion, error) {
	game, err := load(fen)
	if err != nil {
		return Suggestion{}, err
	}
	res, err := l.engine.Search(ctx, game.Position().String(), l.limits)
	if err != nil {
		return Suggestion{}, err
	}
	if res.BestMove == "" {
		return Suggestion{}, errors.New("engine returned no move")
	}
	san := rules.SAN(game, res.BestMove)
	if san == "" {
		return Suggestion{}, fmt.Errorf("engine returned unusable move %q", res.BestMove)
	}
	out := Suggestion{UCI: res.BestMove, SAN: san, Source: SourceLocal}
	if len(res.Lines) > 0 && res.Lines[0].Move == res.BestMove {
		out.EvalCP = res.Lines[0].CP
		out.Mate = res.Lines[0].Mate
	}
	return out, nil
}
