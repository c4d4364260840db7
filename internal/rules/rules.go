package rules

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

var (
	ErrIllegalMove = errors.New("illegal move")
	ErrBadPosition = errors.New("position cannot be replayed")
)

// Position is the replayable board state: the FEN is kept for presentation,
// the UCI log is the source of truth.
type Position struct {
	FEN      string   `json:"fen"`
	MovesUCI []string `json:"moves_uci"`
	MovesSAN []string `json:"moves_san"`
}

func (p Position) Clone() Position {
	return Position{
		FEN:      p.FEN,
		MovesUCI: append([]string{}, p.MovesUCI...),
		MovesSAN: append([]string{}, p.MovesSAN...),
	}
}

func (p Position) Ply() int { return len(p.MovesUCI) }

// MoveSpec is a candidate move. Either From/To(/Promotion) or Notation
// (UCI preferred, SAN accepted) must be set.
type MoveSpec struct {
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Promotion string `json:"promotion,omitempty"`
	Notation  string `json:"notation,omitempty"`
}

func (m MoveSpec) String() string {
	if n := strings.TrimSpace(m.Notation); n != "" {
		return n
	}
	return strings.ToLower(strings.TrimSpace(m.From) + strings.TrimSpace(m.To) + strings.TrimSpace(m.Promotion))
}

func (m MoveSpec) Empty() bool { return m.String() == "" }

type MoveResult struct {
	Position    Position
	UCI         string
	SAN         string
	IsCheck     bool
	IsCheckmate bool
	IsStalemate bool
	IsDraw      bool
	Method      string
}

// Engine applies moves with corentings/chess. It holds no state.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

func (e *Engine) InitialPosition() Position {
	g := nchess.NewGame()
	return Position{FEN: g.FEN(), MovesUCI: []string{}, MovesSAN: []string{}}
}

// ApplyMove replays pos, applies spec and reports the resulting position and
// terminal flags. Rejected moves return an error wrapping ErrIllegalMove.
func (e *Engine) ApplyMove(pos Position, spec MoveSpec) (MoveResult, error) {
	game, err := Replay(pos.MovesUCI)
	if err != nil {
		return MoveResult{}, err
	}
	if game.Outcome() != nchess.NoOutcome {
		return MoveResult{}, fmt.Errorf("%w: game already decided", ErrIllegalMove)
	}
	raw := spec.String()
	if raw == "" {
		return MoveResult{}, fmt.Errorf("%w: empty move", ErrIllegalMove)
	}

	before := game.Position()
	next := pos.Clone()
	if mv, derr := (nchess.UCINotation{}).Decode(before, strings.ToLower(raw)); derr == nil {
		if merr := game.Move(mv, nil); merr != nil {
			return MoveResult{}, fmt.Errorf("%w: %s", ErrIllegalMove, raw)
		}
	} else if perr := game.PushNotationMove(raw, nchess.AlgebraicNotation{}, nil); perr != nil {
		return MoveResult{}, fmt.Errorf("%w: %s", ErrIllegalMove, raw)
	}
	last := lastMove(game)
	if last == nil {
		return MoveResult{}, fmt.Errorf("%w: %s", ErrIllegalMove, raw)
	}

	res := MoveResult{
		UCI: last.String(),
		SAN: nchess.AlgebraicNotation{}.Encode(before, last),
	}
	next.MovesUCI = append(next.MovesUCI, res.UCI)
	next.MovesSAN = append(next.MovesSAN, res.SAN)
	next.FEN = game.FEN()
	res.Position = next

	// corentings only claims these on request; the arena ends the game as soon
	// as either becomes available.
	if game.Outcome() == nchess.NoOutcome {
		for _, m := range game.EligibleDraws() {
			if m == nchess.ThreefoldRepetition || m == nchess.FiftyMoveRule {
				if derr := game.Draw(m); derr == nil {
					break
				}
			}
		}
	}

	switch game.Method() {
	case nchess.Checkmate:
		res.IsCheckmate = true
	case nchess.Stalemate:
		res.IsStalemate = true
	default:
		if game.Outcome() == nchess.Draw {
			res.IsDraw = true
		}
	}
	res.IsCheck = res.IsCheckmate || last.HasTag(nchess.Check)
	if game.Outcome() != nchess.NoOutcome {
		res.Method = strings.ToLower(game.Method().String())
	}
	return res, nil
}

// Replay rebuilds a game from the start position by applying UCI moves.
func Replay(moves []string) (*nchess.Game, error) {
	game := nchess.NewGame()
	for i, mv := range moves {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("%w: ply %d (%s): %v", ErrBadPosition, i+1, mv, err)
		}
	}
	return game, nil
}

// FromFEN loads an arbitrary position, used by the move suggester.
func FromFEN(fen string) (*nchess.Game, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return nchess.NewGame(), nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPosition, err)
	}
	return nchess.NewGame(opt), nil
}

// SAN encodes a UCI move in the given position; empty when it does not decode.
func SAN(game *nchess.Game, uci string) string {
	if game == nil {
		return ""
	}
	pos := game.Position()
	mv, err := (nchess.UCINotation{}).Decode(pos, strings.ToLower(strings.TrimSpace(uci)))
	if err != nil {
		return ""
	}
	return nchess.AlgebraicNotation{}.Encode(pos, mv)
}

var ecoBook = sync.OnceValue(opening.NewBookECO)

// Opening names the ECO opening reached by a UCI move log.
func Opening(moves []string) (code, title string) {
	if len(moves) == 0 {
		return "", ""
	}
	game, err := Replay(moves)
	if err != nil {
		return "", ""
	}
	book := ecoBook()
	if book == nil {
		return "", ""
	}
	if eco := book.Find(game.Moves()); eco != nil {
		return eco.Code(), eco.Title()
	}
	return "", ""
}

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}
