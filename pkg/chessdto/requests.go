package chessdto

type CreateGameRequest struct {
	Visibility      string `json:"visibility"`
	InviteeUsername string `json:"inviteeUsername,omitempty"`
}

type MoveRequest struct {
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Promotion string `json:"promotion,omitempty"`
	Notation  string `json:"notation,omitempty"`
}

// DrawResponseRequest needs Accepted present; a missing field is rejected.
type DrawResponseRequest struct {
	Accepted *bool `json:"accepted"`
}

type SuggestRequest struct {
	FEN string `json:"fen"`
}

type LobbyResponse struct {
	Games []LobbyEntry `json:"games"`
}

type HistoryResponse struct {
	Games []HistoryEntry `json:"games"`
}

type SessionResponse struct {
	Session SessionView `json:"session"`
}

type ErrorResponse struct {
	Error DomainError `json:"error"`
}
