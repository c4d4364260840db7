package history

import (
	"context"
	"fmt"

	"github.com/park285/Cheese-Chess-Arena/internal/domain"
	"github.com/park285/Cheese-Chess-Arena/internal/session"
)

// Service records finished sessions and answers per-user history queries.
// It satisfies game.ResultRecorder.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) RecordResult(ctx context.Context, sess *session.Session) error {
	if sess == nil || !sess.Status.Terminal() {
		return nil
	}
	return s.repo.SaveResult(ctx, FromSession(sess))
}

// History lists the user's finished games from their side of the board.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	recs, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", userID, err)
	}
	out := make([]domain.HistoryEntry, 0, len(recs))
	for _, r := range recs {
		if e, ok := r.Perspective(userID); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// Record returns the stored record of a finished session, nil when absent.
func (s *Service) Record(ctx context.Context, sessionID string) (*domain.GameRecord, error) {
	return s.repo.GetBySession(ctx, sessionID)
}
