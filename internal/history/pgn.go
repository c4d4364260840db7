package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/Cheese-Chess-Arena/internal/domain"
	"github.com/park285/Cheese-Chess-Arena/internal/rules"
	"github.com/park285/Cheese-Chess-Arena/internal/session"
)

// FromSession builds a record from a session in any status; unfinished
// sessions get an empty Result.
func FromSession(s *session.Session) *domain.GameRecord {
	rec := &domain.GameRecord{
		SessionID:    s.ID,
		Result:       resultOf(s),
		ResultMethod: string(s.EndReason),
		MovesUCI:     append([]string(nil), s.Position.MovesUCI...),
		MovesSAN:     append([]string(nil), s.Position.MovesSAN...),
		StartedAt:    s.CreatedAt,
		EndedAt:      s.UpdatedAt,
	}
	if w, ok := s.PlayerByColor(session.White); ok {
		rec.WhiteID, rec.WhiteName = w.ID, w.Name
	}
	if b, ok := s.PlayerByColor(session.Black); ok {
		rec.BlackID, rec.BlackName = b.ID, b.Name
	}
	if d := rec.EndedAt.Sub(rec.StartedAt); d > 0 {
		rec.Duration = d
	}
	rec.OpeningCode, rec.OpeningTitle = rules.Opening(rec.MovesUCI)
	rec.PGN = BuildPGN(rec)
	return rec
}

func resultOf(s *session.Session) string {
	switch s.Status {
	case session.StatusCheckmate, session.StatusResigned:
		if p, ok := s.Player(s.Winner); ok {
			return string(p.Color)
		}
		return ""
	case session.StatusStalemate, session.StatusDraw:
		return "draw"
	}
	return ""
}

func mapResultToPGN(result string) string {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

// BuildPGN renders headers and numbered SAN movetext.
func BuildPGN(rec *domain.GameRecord) string {
	if rec == nil {
		return ""
	}
	pgnResult := mapResultToPGN(rec.Result)
	date := rec.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	var b strings.Builder
	b.WriteString("[Event \"Cheese Chess Arena\"]\n")
	b.WriteString(fmt.Sprintf("[Site \"arena/%s\"]\n", sanitizePGN(rec.SessionID)))
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(orUnknown(rec.WhiteName))))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(orUnknown(rec.BlackName))))
	if rec.OpeningCode != "" {
		b.WriteString(fmt.Sprintf("[ECO \"%s\"]\n", sanitizePGN(rec.OpeningCode)))
		b.WriteString(fmt.Sprintf("[Opening \"%s\"]\n", sanitizePGN(rec.OpeningTitle)))
	}
	if m := strings.TrimSpace(rec.ResultMethod); m != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(m)))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

	for i := 0; i < len(rec.MovesSAN); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", i/2+1, strings.TrimSpace(rec.MovesSAN[i])))
		if i+1 < len(rec.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(rec.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(pgnResult)
	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "?"
	}
	return s
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
