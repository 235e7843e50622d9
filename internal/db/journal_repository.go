package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// JournalRepository implements store.ScoreJournal on PostgreSQL.
type JournalRepository struct {
	pool *pgxpool.Pool
}

// NewJournalRepository creates a JournalRepository on the given pool.
func NewJournalRepository(pool *pgxpool.Pool) *JournalRepository {
	return &JournalRepository{pool: pool}
}

// MarkScored records gameID. Reports false when the game was already
// scored, so score application stays idempotent across restarts.
func (r *JournalRepository) MarkScored(ctx context.Context, gameID uint32) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO scored_games (game_id) VALUES ($1) ON CONFLICT (game_id) DO NOTHING`,
		int64(gameID),
	)
	if err != nil {
		return false, fmt.Errorf("marking game %d scored: %w", gameID, err)
	}
	return tag.RowsAffected() == 1, nil
}
