package rules

import (
	nchess "github.com/corentings/chess/v2"
)

var pieceValues = map[nchess.PieceType]int{
	nchess.Pawn:   1,
	nchess.Knight: 3,
	nchess.Bishop: 3,
	nchess.Rook:   5,
	nchess.Queen:  9,
}

var initialCounts = map[nchess.PieceType]int{
	nchess.Pawn:   8,
	nchess.Knight: 2,
	nchess.Bishop: 2,
	nchess.Rook:   2,
	nchess.Queen:  1,
}

// captureOrder lists piece types from most to least valuable.
var captureOrder = []nchess.PieceType{nchess.Queen, nchess.Rook, nchess.Bishop, nchess.Knight, nchess.Pawn}

// Material is the point count per side plus the pieces each side has taken,
// as lowercase letters (q, r, b, n, p). Promotions can push a side above
// its starting count; those pieces are never reported as captured.
type Material struct {
	White           int
	Black           int
	CapturedByWhite []string
	CapturedByBlack []string
}

func MaterialOf(moves []string) (Material, error) {
	game, err := Replay(moves)
	if err != nil {
		return Material{}, err
	}
	counts := map[nchess.Color]map[nchess.PieceType]int{
		nchess.White: {},
		nchess.Black: {},
	}
	var m Material
	board := game.Position().Board()
	for sq := nchess.A1; sq <= nchess.H8; sq++ {
		piece := board.Piece(sq)
		if piece == nchess.NoPiece {
			continue
		}
		v, ok := pieceValues[piece.Type()]
		if !ok {
			continue
		}
		counts[piece.Color()][piece.Type()]++
		if piece.Color() == nchess.White {
			m.White += v
		} else {
			m.Black += v
		}
	}
	for _, pt := range captureOrder {
		for i := counts[nchess.Black][pt]; i < initialCounts[pt]; i++ {
			m.CapturedByWhite = append(m.CapturedByWhite, pieceLetter(pt))
		}
		for i := counts[nchess.White][pt]; i < initialCounts[pt]; i++ {
			m.CapturedByBlack = append(m.CapturedByBlack, pieceLetter(pt))
		}
	}
	return m, nil
}

func pieceLetter(pt nchess.PieceType) string {
	switch pt {
	case nchess.Queen:
		return "q"
	case nchess.Rook:
		return "r"
	case nchess.Bishop:
		return "b"
	case nchess.Knight:
		return "n"
	default:
		return "p"
	}
}
