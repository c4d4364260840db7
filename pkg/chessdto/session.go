package chessdto

import "time"

type MaterialScore struct {
	White int `json:"white"`
	Black int `json:"black"`
}

type CapturedPieces struct {
	White []string `json:"white"`
	Black []string `json:"black"`
}

type PlayerView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// SessionView is the full state sent with every session event.
type SessionView struct {
	ID                 string         `json:"id"`
	Visibility         string         `json:"visibility"`
	Status             string         `json:"status"`
	Players            []PlayerView   `json:"players"`
	Turn               string         `json:"turn"`
	FEN                string         `json:"fen"`
	MovesUCI           []string       `json:"movesUci"`
	MovesSAN           []string       `json:"movesSan"`
	LastMove           string         `json:"lastMove,omitempty"`
	InCheck            bool           `json:"inCheck"`
	CreatedBy          string         `json:"createdBy"`
	InvitedUser        string         `json:"invitedUser,omitempty"`
	InvitedName        string         `json:"invitedName,omitempty"`
	Winner             string         `json:"winner,omitempty"`
	EndReason          string         `json:"endReason,omitempty"`
	PendingDrawOfferer string         `json:"pendingDrawOfferer,omitempty"`
	OpeningCode        string         `json:"openingCode,omitempty"`
	OpeningTitle       string         `json:"openingTitle,omitempty"`
	Material           MaterialScore  `json:"material"`
	Captured           CapturedPieces `json:"captured"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
	Version            int64          `json:"version"`
}

type LobbyEntry struct {
	Session           SessionView `json:"session"`
	CreatorName       string      `json:"creatorName"`
	TimeSinceCreation string      `json:"timeSinceCreation"`
}

type HistoryEntry struct {
	SessionID    string    `json:"sessionId"`
	OpponentID   string    `json:"opponentId"`
	OpponentName string    `json:"opponentName"`
	Color        string    `json:"color"`
	Result       string    `json:"result"`
	Method       string    `json:"method,omitempty"`
	Moves        int       `json:"moves"`
	OpeningTitle string    `json:"openingTitle,omitempty"`
	Date         time.Time `json:"date"`
}

type Suggestion struct {
	MoveUCI string `json:"moveUci"`
	MoveSAN string `json:"moveSan"`
	Source  string `json:"source"`
	EvalCP  *int   `json:"evalCp,omitempty"`
	Mate    *int   `json:"mate,omitempty"`
}
