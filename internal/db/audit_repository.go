package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/mythmeta/internal/store"
)

// AuditRepository implements store.AuditLog on PostgreSQL.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates an AuditRepository on the given pool.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Record appends the event. The timestamp defaults to now when unset.
func (r *AuditRepository) Record(ctx context.Context, ev store.AuditEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_log (at, kind, user_id, ip, detail) VALUES ($1, $2, $3, $4, $5)`,
		at, ev.Kind, int64(ev.UserID), ev.IP, ev.Detail,
	)
	if err != nil {
		return fmt.Errorf("recording audit event %q: %w", ev.Kind, err)
	}
	return nil
}
