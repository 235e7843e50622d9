package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/mythmeta/internal/model"
)

// Score row scopes in user_scores.game_type.
const (
	scoreScopeRanked   = -1
	scoreScopeUnranked = -2
)

// UserRepository implements store.UserStore on PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a UserRepository on the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, login, name, password_scheme, password_hash, password_salt,
	flags, caste, order_id, banned_until, last_login_at, last_login_ip, player_data`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Login, &u.Name, &u.PasswordScheme, &u.PasswordHash, &u.PasswordSalt,
		&u.Flags, &u.Caste, &u.OrderID, &u.BannedUntil, &u.LastLoginAt, &u.LastLoginIP, &u.PlayerData,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID returns the user with the given id, or nil, nil.
func (r *UserRepository) GetByID(ctx context.Context, id uint32) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user %d: %w", id, err)
	}
	if err := r.loadChildren(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// GetByLogin returns the user with the given login (case-insensitive),
// or nil, nil.
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE login = $1`, strings.ToLower(login)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user %q: %w", login, err)
	}
	if err := r.loadChildren(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) loadChildren(ctx context.Context, u *model.User) error {
	rows, err := r.pool.Query(ctx,
		`SELECT buddy_id FROM user_buddies WHERE user_id = $1 ORDER BY position`, u.ID)
	if err != nil {
		return fmt.Errorf("querying buddies for user %d: %w", u.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scanning buddy row: %w", err)
		}
		u.Buddies = append(u.Buddies, uint32(id))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating buddy rows: %w", err)
	}

	scoreRows, err := r.pool.Query(ctx,
		`SELECT game_type, games_played, wins, losses, ties, damage_inflicted,
			damage_received, disconnects, points, rank, highest_points, highest_rank, numerical_rank
		 FROM user_scores WHERE user_id = $1`, u.ID)
	if err != nil {
		return fmt.Errorf("querying scores for user %d: %w", u.ID, err)
	}
	defer scoreRows.Close()
	for scoreRows.Next() {
		var gameType int16
		var s model.ScoreDatum
		if err := scoreRows.Scan(&gameType, &s.GamesPlayed, &s.Wins, &s.Losses, &s.Ties,
			&s.DamageInflicted, &s.DamageReceived, &s.Disconnects, &s.Points,
			&s.Rank, &s.HighestPoints, &s.HighestRank, &s.NumericalRank); err != nil {
			return fmt.Errorf("scanning score row: %w", err)
		}
		switch {
		case gameType == scoreScopeRanked:
			u.Ranked = s
		case gameType == scoreScopeUnranked:
			u.Unranked = s
		case gameType >= 0 && int(gameType) < model.MaximumGameTypes:
			u.RankedByGameType[gameType] = s
		}
	}
	if err := scoreRows.Err(); err != nil {
		return fmt.Errorf("iterating score rows: %w", err)
	}
	return nil
}

// Insert stores a new user and fills in the assigned id.
func (r *UserRepository) Insert(ctx context.Context, u *model.User) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning insert for user %q: %w", u.Login, err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO users (login, name, password_scheme, password_hash, password_salt,
			flags, caste, order_id, banned_until, last_login_at, last_login_ip, player_data)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id`,
		strings.ToLower(u.Login), u.Name, u.PasswordScheme, u.PasswordHash, u.PasswordSalt,
		u.Flags, u.Caste, u.OrderID, u.BannedUntil, u.LastLoginAt, u.LastLoginIP, u.PlayerData,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("inserting user %q: %w", u.Login, err)
	}

	if err := r.saveChildrenTx(ctx, tx, u); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing insert for user %q: %w", u.Login, err)
	}
	return nil
}

// Update overwrites the stored record, including buddies and scores.
func (r *UserRepository) Update(ctx context.Context, u *model.User) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning update for user %d: %w", u.ID, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE users SET name = $1, password_scheme = $2, password_hash = $3,
			password_salt = $4, flags = $5, caste = $6, order_id = $7, banned_until = $8,
			last_login_at = $9, last_login_ip = $10, player_data = $11
		 WHERE id = $12`,
		u.Name, u.PasswordScheme, u.PasswordHash, u.PasswordSalt,
		u.Flags, u.Caste, u.OrderID, u.BannedUntil,
		u.LastLoginAt, u.LastLoginIP, u.PlayerData, u.ID,
	)
	if err != nil {
		return fmt.Errorf("updating user %d: %w", u.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d not found", u.ID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM user_buddies WHERE user_id = $1`, u.ID); err != nil {
		return fmt.Errorf("clearing buddies for user %d: %w", u.ID, err)
	}
	if err := r.saveChildrenTx(ctx, tx, u); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing update for user %d: %w", u.ID, err)
	}
	return nil
}

// saveChildrenTx writes the buddy list and upserts all score rows.
func (r *UserRepository) saveChildrenTx(ctx context.Context, tx pgx.Tx, u *model.User) error {
	if len(u.Buddies) > 0 {
		rows := make([][]any, 0, len(u.Buddies))
		for i, id := range u.Buddies {
			rows = append(rows, []any{u.ID, int64(id), int16(i)})
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"user_buddies"},
			[]string{"user_id", "buddy_id", "position"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("inserting buddies for user %d: %w", u.ID, err)
		}
	}

	batch := &pgx.Batch{}
	upsert := func(gameType int16, s model.ScoreDatum) {
		batch.Queue(
			`INSERT INTO user_scores (user_id, game_type, games_played, wins, losses, ties,
				damage_inflicted, damage_received, disconnects, points, rank,
				highest_points, highest_rank, numerical_rank)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			 ON CONFLICT (user_id, game_type) DO UPDATE SET
				games_played = EXCLUDED.games_played, wins = EXCLUDED.wins,
				losses = EXCLUDED.losses, ties = EXCLUDED.ties,
				damage_inflicted = EXCLUDED.damage_inflicted,
				damage_received = EXCLUDED.damage_received,
				disconnects = EXCLUDED.disconnects, points = EXCLUDED.points,
				rank = EXCLUDED.rank, highest_points = EXCLUDED.highest_points,
				highest_rank = EXCLUDED.highest_rank, numerical_rank = EXCLUDED.numerical_rank`,
			u.ID, gameType, s.GamesPlayed, s.Wins, s.Losses, s.Ties,
			s.DamageInflicted, s.DamageReceived, s.Disconnects, s.Points, s.Rank,
			s.HighestPoints, s.HighestRank, s.NumericalRank,
		)
	}
	upsert(scoreScopeRanked, u.Ranked)
	upsert(scoreScopeUnranked, u.Unranked)
	for i, s := range u.RankedByGameType {
		upsert(int16(i), s)
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upserting scores for user %d: %w", u.ID, err)
		}
	}
	return nil
}

// IterateAll visits every user in id order, with children loaded. The
// visitor returns false to stop early.
func (r *UserRepository) IterateAll(ctx context.Context, fn func(*model.User) bool) error {
	rows, err := r.pool.Query(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return fmt.Errorf("querying user ids: %w", err)
	}
	var ids []uint32
	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scanning user id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating user ids: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		u, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if u == nil {
			continue
		}
		if !fn(u) {
			return nil
		}
	}
	return nil
}

// Count returns the number of users.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}
