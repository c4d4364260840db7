package chesspresenter

import (
	"github.com/park285/Cheese-Chess-Arena/internal/domain"
	"github.com/park285/Cheese-Chess-Arena/internal/lobby"
	"github.com/park285/Cheese-Chess-Arena/internal/rules"
	"github.com/park285/Cheese-Chess-Arena/internal/session"
	"github.com/park285/Cheese-Chess-Arena/pkg/chessdto"
)

func ToSessionView(s *session.Session) *chessdto.SessionView {
	if s == nil {
		return nil
	}
	players := make([]chessdto.PlayerView, 0, len(s.Players))
	for _, p := range s.Players {
		players = append(players, chessdto.PlayerView{ID: p.ID, Name: p.Name, Color: string(p.Color)})
	}
	v := &chessdto.SessionView{
		ID:                 s.ID,
		Visibility:         string(s.Visibility),
		Status:             string(s.Status),
		Players:            players,
		Turn:               string(s.Turn),
		FEN:                s.Position.FEN,
		MovesUCI:           append([]string{}, s.Position.MovesUCI...),
		MovesSAN:           append([]string{}, s.Position.MovesSAN...),
		LastMove:           s.LastMove(),
		InCheck:            s.InCheck,
		CreatedBy:          s.CreatedBy,
		InvitedUser:        s.InvitedUser,
		InvitedName:        s.InvitedName,
		Winner:             s.Winner,
		EndReason:          string(s.EndReason),
		PendingDrawOfferer: s.PendingDrawOfferer,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
		Version:            s.Version,
		Captured:           chessdto.CapturedPieces{White: []string{}, Black: []string{}},
	}
	v.OpeningCode, v.OpeningTitle = rules.Opening(s.Position.MovesUCI)
	if m, err := rules.MaterialOf(s.Position.MovesUCI); err == nil {
		v.Material = chessdto.MaterialScore{White: m.White, Black: m.Black}
		v.Captured = chessdto.CapturedPieces{
			White: append([]string{}, m.CapturedByWhite...),
			Black: append([]string{}, m.CapturedByBlack...),
		}
	}
	return v
}

func ToLobbyEntries(entries []lobby.Entry) []chessdto.LobbyEntry {
	out := make([]chessdto.LobbyEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, chessdto.LobbyEntry{
			Session:           *ToSessionView(e.Session),
			CreatorName:       e.CreatorName,
			TimeSinceCreation: e.TimeSinceCreation,
		})
	}
	return out
}

func ToHistoryEntries(entries []domain.HistoryEntry) []chessdto.HistoryEntry {
	out := make([]chessdto.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, chessdto.HistoryEntry{
			SessionID:    e.SessionID,
			OpponentID:   e.OpponentID,
			OpponentName: e.OpponentName,
			Color:        e.Color,
			Result:       e.Outcome,
			Method:       e.Method,
			Moves:        e.Moves,
			OpeningTitle: e.OpeningTitle,
			Date:         e.EndedAt,
		})
	}
	return out
}
