package domain

import "time"

// GameRecord is a finished multiplayer game as persisted by the history
// repository. Result is "white", "black" or "draw".
type GameRecord struct {
	ID           int64
	SessionID    string
	WhiteID      string
	WhiteName    string
	BlackID      string
	BlackName    string
	Result       string
	ResultMethod string
	MovesUCI     []string
	MovesSAN     []string
	PGN          string
	OpeningCode  string
	OpeningTitle string
	StartedAt    time.Time
	EndedAt      time.Time
	Duration     time.Duration
}

// HistoryEntry is a GameRecord seen from one participant.
type HistoryEntry struct {
	SessionID    string
	OpponentID   string
	OpponentName string
	Color        string
	Outcome      string
	Method       string
	Moves        int
	OpeningTitle string
	EndedAt      time.Time
}

const (
	OutcomeWon  = "won"
	OutcomeLost = "lost"
	OutcomeDraw = "draw"
)

// Perspective returns the record from userID's side; ok is false when the
// user did not play in it.
func (g *GameRecord) Perspective(userID string) (HistoryEntry, bool) {
	var color, oppID, oppName string
	switch userID {
	case g.WhiteID:
		color, oppID, oppName = "white", g.BlackID, g.BlackName
	case g.BlackID:
		color, oppID, oppName = "black", g.WhiteID, g.WhiteName
	default:
		return HistoryEntry{}, false
	}
	outcome := OutcomeDraw
	switch g.Result {
	case color:
		outcome = OutcomeWon
	case "white", "black":
		outcome = OutcomeLost
	}
	return HistoryEntry{
		SessionID:    g.SessionID,
		OpponentID:   oppID,
		OpponentName: oppName,
		Color:        color,
		Outcome:      outcome,
		Method:       g.ResultMethod,
		Moves:        len(g.MovesUCI),
		OpeningTitle: g.OpeningTitle,
		EndedAt:      g.EndedAt,
	}, true
}
