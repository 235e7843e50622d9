package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BanRepository implements store.BanList on PostgreSQL. A zero until
// timestamp is a permanent ban.
type BanRepository struct {
	pool *pgxpool.Pool
}

// NewBanRepository creates a BanRepository on the given pool.
func NewBanRepository(pool *pgxpool.Pool) *BanRepository {
	return &BanRepository{pool: pool}
}

// IsBanned reports whether ip is refused at now.
func (r *BanRepository) IsBanned(ctx context.Context, ip string, now time.Time) (bool, error) {
	var until time.Time
	err := r.pool.QueryRow(ctx, `SELECT until FROM bans WHERE ip = $1`, ip).Scan(&until)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("querying ban for %s: %w", ip, err)
	}
	if until.Year() <= 1970 {
		return true, nil // permanent
	}
	return now.Before(until), nil
}

// Ban refuses connections from ip until the given time. Zero until is
// permanent. An existing entry is replaced.
func (r *BanRepository) Ban(ctx context.Context, ip string, until time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO bans (ip, until) VALUES ($1, $2)
		 ON CONFLICT (ip) DO UPDATE SET until = EXCLUDED.until, created_at = now()`,
		ip, until,
	)
	if err != nil {
		return fmt.Errorf("banning %s: %w", ip, err)
	}
	return nil
}

// Unban clears the entry for ip.
func (r *BanRepository) Unban(ctx context.Context, ip string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM bans WHERE ip = $1`, ip); err != nil {
		return fmt.Errorf("unbanning %s: %w", ip, err)
	}
	return nil
}
