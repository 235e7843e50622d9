package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/mythmeta/internal/model"
)

// OrderRepository implements store.OrderStore on PostgreSQL. Order
// score rows are kept only by the flatfile backend; the relational
// schema stores membership and metadata.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository creates an OrderRepository on the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `id, name, leader_id, founded_at, contact_email, url, motd,
	maintenance_password, member_password, below_minimum_since`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID, &o.Name, &o.LeaderID, &o.FoundedAt, &o.ContactEmail, &o.URL, &o.MOTD,
		&o.MaintenancePassword, &o.MemberPassword, &o.BelowMinimumSince,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetByID returns the order with the given id, or nil, nil. Unused
// orders are misses.
func (r *OrderRepository) GetByID(ctx context.Context, id uint32) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND NOT unused`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying order %d: %w", id, err)
	}
	if err := r.loadMembers(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// GetByName returns the order with the given name (case-insensitive),
// or nil, nil.
func (r *OrderRepository) GetByName(ctx context.Context, name string) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE lower(name) = lower($1) AND NOT unused`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying order %q: %w", name, err)
	}
	if err := r.loadMembers(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepository) loadMembers(ctx context.Context, o *model.Order) error {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM order_members WHERE order_id = $1 ORDER BY position`, o.ID)
	if err != nil {
		return fmt.Errorf("querying members for order %d: %w", o.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scanning member row: %w", err)
		}
		o.MemberIDs = append(o.MemberIDs, uint32(id))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating member rows: %w", err)
	}
	return nil
}

// Insert stores a new order and fills in the assigned id.
func (r *OrderRepository) Insert(ctx context.Context, o *model.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning insert for order %q: %w", o.Name, err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO orders (name, leader_id, founded_at, contact_email, url, motd,
			maintenance_password, member_password, below_minimum_since)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		o.Name, o.LeaderID, o.FoundedAt, o.ContactEmail, o.URL, o.MOTD,
		o.MaintenancePassword, o.MemberPassword, o.BelowMinimumSince,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("inserting order %q: %w", o.Name, err)
	}

	if err := r.saveMembersTx(ctx, tx, o); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing insert for order %q: %w", o.Name, err)
	}
	return nil
}

// Update overwrites the stored record, including the member roster.
func (r *OrderRepository) Update(ctx context.Context, o *model.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning update for order %d: %w", o.ID, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE orders SET name = $1, leader_id = $2, contact_email = $3, url = $4,
			motd = $5, maintenance_password = $6, member_password = $7, below_minimum_since = $8
		 WHERE id = $9 AND NOT unused`,
		o.Name, o.LeaderID, o.ContactEmail, o.URL,
		o.MOTD, o.MaintenancePassword, o.MemberPassword, o.BelowMinimumSince, o.ID,
	)
	if err != nil {
		return fmt.Errorf("updating order %d: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %d not found", o.ID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM order_members WHERE order_id = $1`, o.ID); err != nil {
		return fmt.Errorf("clearing members for order %d: %w", o.ID, err)
	}
	if err := r.saveMembersTx(ctx, tx, o); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing update for order %d: %w", o.ID, err)
	}
	return nil
}

func (r *OrderRepository) saveMembersTx(ctx context.Context, tx pgx.Tx, o *model.Order) error {
	if len(o.MemberIDs) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(o.MemberIDs))
	for i, id := range o.MemberIDs {
		rows = append(rows, []any{o.ID, int64(id), int16(i)})
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"order_members"},
		[]string{"order_id", "user_id", "position"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("inserting members for order %d: %w", o.ID, err)
	}
	return nil
}

// MarkUnused retires the order; the record stays for history but stops
// resolving.
func (r *OrderRepository) MarkUnused(ctx context.Context, id uint32) error {
	_, err := r.pool.Exec(ctx, `UPDATE orders SET unused = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("marking order %d unused: %w", id, err)
	}
	return nil
}

// IterateAll visits every live order.
func (r *OrderRepository) IterateAll(ctx context.Context, fn func(*model.Order) bool) error {
	rows, err := r.pool.Query(ctx, `SELECT id FROM orders WHERE NOT unused ORDER BY id`)
	if err != nil {
		return fmt.Errorf("querying order ids: %w", err)
	}
	var ids []uint32
	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scanning order id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating order ids: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		o, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if o == nil {
			continue
		}
		if !fn(o) {
			return nil
		}
	}
	return nil
}
