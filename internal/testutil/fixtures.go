package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/udisondev/mythmeta/internal/auth"
	"github.com/udisondev/mythmeta/internal/model"
	"github.com/udisondev/mythmeta/internal/store"
)

// MemoryAuditLog records audit events in memory for assertions.
type MemoryAuditLog struct {
	mu     sync.Mutex
	events []store.AuditEvent
}

// NewMemoryAuditLog creates an empty audit log.
func NewMemoryAuditLog() *MemoryAuditLog {
	return &MemoryAuditLog{}
}

// Record appends the event.
func (m *MemoryAuditLog) Record(ctx context.Context, ev store.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// Events returns a snapshot of the recorded events.
func (m *MemoryAuditLog) Events() []store.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.AuditEvent, len(m.events))
	copy(out, m.events)
	return out
}

// NewUser inserts a user with the given login and password (bcrypt)
// into the store and returns the stored record.
func NewUser(t *testing.T, users *MemoryUserStore, login, password string) *model.User {
	t.Helper()

	rec, err := auth.HashPassword(password, auth.DefaultScheme)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	u := &model.User{
		Login:          login,
		Name:           login,
		PasswordScheme: int16(rec.Scheme),
		PasswordHash:   rec.Hash,
		PasswordSalt:   rec.Salt,
	}
	if err := users.Insert(context.Background(), u); err != nil {
		t.Fatalf("inserting user %q: %v", login, err)
	}
	return u
}
