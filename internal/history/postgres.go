package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/Cheese-Chess-Arena/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

type PostgresRepository struct {
	db *sql.DB
}

// OpenPostgres connects with lib/pq and makes sure the arena_games table exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	r := &PostgresRepository{db: db}
	if err := r.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository { return &PostgresRepository{db: db} }

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *PostgresRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *PostgresRepository) SaveResult(ctx context.Context, rec *domain.GameRecord) error {
	if rec == nil {
		return fmt.Errorf("nil game record")
	}
	movesUCI, err := json.Marshal(nonNil(rec.MovesUCI))
	if err != nil {
		return fmt.Errorf("marshal moves_uci: %w", err)
	}
	movesSAN, err := json.Marshal(nonNil(rec.MovesSAN))
	if err != nil {
		return fmt.Errorf("marshal moves_san: %w", err)
	}

	const q = `INSERT INTO arena_games (
        session_id, white_id, white_name, black_id, black_name,
        result, result_method, moves_uci, moves_san, pgn,
        opening_code, opening_title, started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8::jsonb,$9::jsonb,$10,$11,$12,$13,$14,$15
      ) ON CONFLICT (session_id) DO UPDATE SET
        result=EXCLUDED.result,
        result_method=EXCLUDED.result_method,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        pgn=EXCLUDED.pgn,
        opening_code=EXCLUDED.opening_code,
        opening_title=EXCLUDED.opening_title,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err = r.db.ExecContext(ctx, q,
		rec.SessionID,
		rec.WhiteID, rec.WhiteName,
		rec.BlackID, rec.BlackName,
		rec.Result, rec.ResultMethod, string(movesUCI), string(movesSAN), rec.PGN,
		rec.OpeningCode, rec.OpeningTitle,
		rec.StartedAt, rec.EndedAt, rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("save result %s: %w", rec.SessionID, err)
	}
	return nil
}

const selectColumns = `id, session_id, white_id, white_name, black_id, black_name,
        result, result_method, moves_uci, moves_san, pgn,
        opening_code, opening_title, started_at, ended_at, duration_ms`

func (r *PostgresRepository) GetBySession(ctx context.Context, sessionID string) (*domain.GameRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM arena_games WHERE session_id = $1`, sessionID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.GameRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM arena_games
        WHERE white_id = $1 OR black_id = $1
        ORDER BY ended_at DESC, id DESC
        LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()
	var out []*domain.GameRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*domain.GameRecord, error) {
	var (
		rec                domain.GameRecord
		movesUCI, movesSAN []byte
		durationMS         int64
	)
	err := s.Scan(
		&rec.ID, &rec.SessionID,
		&rec.WhiteID, &rec.WhiteName, &rec.BlackID, &rec.BlackName,
		&rec.Result, &rec.ResultMethod, &movesUCI, &movesSAN, &rec.PGN,
		&rec.OpeningCode, &rec.OpeningTitle, &rec.StartedAt, &rec.EndedAt, &durationMS,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(movesUCI, &rec.MovesUCI); err != nil {
		return nil, fmt.Errorf("unmarshal moves_uci: %w", err)
	}
	if err := json.Unmarshal(movesSAN, &rec.MovesSAN); err != nil {
		return nil, fmt.Errorf("unmarshal moves_san: %w", err)
	}
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	return &rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
