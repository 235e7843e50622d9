// Package testutil provides in-memory store implementations and
// fixtures for unit tests. No real PostgreSQL or disk required.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/udisondev/mythmeta/internal/model"
)

// MemoryUserStore is an in-memory UserStore.
type MemoryUserStore struct {
	mu     sync.RWMutex
	users  map[uint32]*model.User
	nextID uint32

	// FailWrites makes Insert/Update fail, for storage-error paths.
	FailWrites bool
}

// NewMemoryUserStore creates an empty user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[uint32]*model.User), nextID: 1}
}

// GetByID returns a copy of the user, or nil, nil.
func (m *MemoryUserStore) GetByID(ctx context.Context, id uint32) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return u.Clone(), nil
}

// GetByLogin returns a copy of the user, case-insensitively, or nil, nil.
func (m *MemoryUserStore) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	login = strings.ToLower(login)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.ToLower(u.Login) == login {
			return u.Clone(), nil
		}
	}
	return nil, nil
}

// Insert stores a new user and assigns the next id.
func (m *MemoryUserStore) Insert(ctx context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return fmt.Errorf("simulated write failure")
	}
	for _, existing := range m.users {
		if strings.EqualFold(existing.Login, u.Login) {
			return fmt.Errorf("login %q already taken", u.Login)
		}
	}
	u.ID = m.nextID
	m.nextID++
	m.users[u.ID] = u.Clone()
	return nil
}

// Update overwrites the stored record.
func (m *MemoryUserStore) Update(ctx context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return fmt.Errorf("simulated write failure")
	}
	if _, ok := m.users[u.ID]; !ok {
		return fmt.Errorf("user %d not found", u.ID)
	}
	m.users[u.ID] = u.Clone()
	return nil
}

// IterateAll visits every user in id order.
func (m *MemoryUserStore) IterateAll(ctx context.Context, fn func(*model.User) bool) error {
	m.mu.RLock()
	ids := make([]uint32, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	snapshot := make([]*model.User, 0, len(ids))
	for _, id := range ids {
		snapshot = append(snapshot, m.users[id].Clone())
	}
	m.mu.RUnlock()

	for _, u := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(u) {
			return nil
		}
	}
	return nil
}

// Count returns the number of users.
func (m *MemoryUserStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// MemoryOrderStore is an in-memory OrderStore.
type MemoryOrderStore struct {
	mu     sync.RWMutex
	orders map[uint32]*model.Order
	nextID uint32
}

// NewMemoryOrderStore creates an empty order store.
func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{orders: make(map[uint32]*model.Order), nextID: 1}
}

// GetByID returns a copy of the order, or nil, nil.
func (m *MemoryOrderStore) GetByID(ctx context.Context, id uint32) (*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	return o.Clone(), nil
}

// GetByName returns a copy of the order, or nil, nil.
func (m *MemoryOrderStore) GetByName(ctx context.Context, name string) (*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if strings.EqualFold(o.Name, name) {
			return o.Clone(), nil
		}
	}
	return nil, nil
}

// Insert stores a new order and assigns the next id.
func (m *MemoryOrderStore) Insert(ctx context.Context, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = m.nextID
	m.nextID++
	m.orders[o.ID] = o.Clone()
	return nil
}

// Update overwrites the stored record.
func (m *MemoryOrderStore) Update(ctx context.Context, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; !ok {
		return fmt.Errorf("order %d not found", o.ID)
	}
	m.orders[o.ID] = o.Clone()
	return nil
}

// MarkUnused frees the record slot.
func (m *MemoryOrderStore) MarkUnused(ctx context.Context, id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.orders, id)
	return nil
}

// IterateAll visits every order.
func (m *MemoryOrderStore) IterateAll(ctx context.Context, fn func(*model.Order) bool) error {
	m.mu.RLock()
	snapshot := make([]*model.Order, 0, len(m.orders))
	for _, o := range m.orders {
		snapshot = append(snapshot, o.Clone())
	}
	m.mu.RUnlock()

	for _, o := range snapshot {
		if !fn(o) {
			return nil
		}
	}
	return nil
}

// MemoryBanList is an in-memory BanList.
type MemoryBanList struct {
	mu   sync.RWMutex
	bans map[string]time.Time // ip -> until; zero = permanent
}

// NewMemoryBanList creates an empty ban list.
func NewMemoryBanList() *MemoryBanList {
	return &MemoryBanList{bans: make(map[string]time.Time)}
}

// IsBanned reports whether ip is refused at now.
func (m *MemoryBanList) IsBanned(ctx context.Context, ip string, now time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	until, ok := m.bans[ip]
	if !ok {
		return false, nil
	}
	return until.IsZero() || now.Before(until), nil
}

// Ban refuses connections from ip until the given time.
func (m *MemoryBanList) Ban(ctx context.Context, ip string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bans[ip] = until
	return nil
}

// Unban clears the entry for ip.
func (m *MemoryBanList) Unban(ctx context.Context, ip string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bans, ip)
	return nil
}

// MemoryScoreJournal is an in-memory ScoreJournal.
type MemoryScoreJournal struct {
	mu     sync.Mutex
	scored map[uint32]bool
}

// NewMemoryScoreJournal creates an empty journal.
func NewMemoryScoreJournal() *MemoryScoreJournal {
	return &MemoryScoreJournal{scored: make(map[uint32]bool)}
}

// MarkScored records gameID, reporting false when already present.
func (m *MemoryScoreJournal) MarkScored(ctx context.Context, gameID uint32) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scored[gameID] {
		return false, nil
	}
	m.scored[gameID] = true
	return true, nil
}
