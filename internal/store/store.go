// Package store defines the persistence seams the metaserver core
// consumes. Implementations live in internal/db (Postgres),
// internal/flatfile (classic fixed-record files) and internal/testutil
// (in-memory, tests only).
//
// Lookup misses return nil, nil; callers branch on the nil record, not
// on a sentinel error.
package store

import (
	"context"
	"time"

	"github.com/udisondev/mythmeta/internal/model"
)

// UserStore is the authoritative home of user records.
type UserStore interface {
	// GetByID returns the user with the given id, or nil, nil.
	GetByID(ctx context.Context, id uint32) (*model.User, error)

	// GetByLogin returns the user with the given login name,
	// case-insensitively, or nil, nil.
	GetByLogin(ctx context.Context, login string) (*model.User, error)

	// Insert stores a new user and assigns the next monotonic id,
	// returned in u.ID.
	Insert(ctx context.Context, u *model.User) error

	// Update overwrites the stored record for u.ID.
	Update(ctx context.Context, u *model.User) error

	// IterateAll calls fn for every live user record. Returning false
	// from fn stops the iteration.
	IterateAll(ctx context.Context, fn func(*model.User) bool) error

	// Count returns the number of live user records.
	Count(ctx context.Context) (int, error)
}

// OrderStore is the authoritative home of order (clan) records.
type OrderStore interface {
	GetByID(ctx context.Context, id uint32) (*model.Order, error)
	GetByName(ctx context.Context, name string) (*model.Order, error)
	Insert(ctx context.Context, o *model.Order) error
	Update(ctx context.Context, o *model.Order) error

	// MarkUnused frees the record slot for id. The id is never reused
	// for lookups: GetByID on a marked order returns nil, nil.
	MarkUnused(ctx context.Context, id uint32) error

	IterateAll(ctx context.Context, fn func(*model.Order) bool) error
}

// BanList answers host-admission lookups and records admin bans.
type BanList interface {
	// IsBanned reports whether connections from ip are refused at now.
	IsBanned(ctx context.Context, ip string, now time.Time) (bool, error)

	// Ban refuses connections from ip until the given time. A zero
	// until bans permanently.
	Ban(ctx context.Context, ip string, until time.Time) error

	Unban(ctx context.Context, ip string) error
}

// AuditEvent is one recorded security-relevant action.
type AuditEvent struct {
	At     time.Time
	Kind   string // "login", "login_failed", "ban", "password_change", "score", ...
	UserID uint32 // 0 when not tied to an account
	IP     string
	Detail string
}

// AuditLog records security-relevant events. Failures to record are
// logged by implementations but never fail the calling operation.
type AuditLog interface {
	Record(ctx context.Context, ev AuditEvent) error
}

// ScoreJournal remembers which game ids already had their standings
// applied, making score application idempotent per game.
type ScoreJournal interface {
	// MarkScored records gameID as scored. Reports false when the id
	// was already present (the caller must then skip application).
	MarkScored(ctx context.Context, gameID uint32) (bool, error)
}
