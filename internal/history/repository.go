package history

import (
	"context"

	"github.com/park285/Cheese-Chess-Arena/internal/domain"
)

// Repository persists finished games. SaveResult is an upsert keyed by
// session id so a replayed recorder call never duplicates a game.
type Repository interface {
	SaveResult(ctx context.Context, rec *domain.GameRecord) error
	GetBySession(ctx context.Context, sessionID string) (*domain.GameRecord, error)
	// ListByUser returns games the user played, most recent first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.GameRecord, error)
}

const defaultListLimit = 50
