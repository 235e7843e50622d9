package metaserver

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// SessionManager is the bidirectional user↔connection registry. One
// mutex for both direction maps, held only for map operations; kicks
// and sends happen after release.
type SessionManager struct {
	mu     sync.Mutex
	byUser map[uint32]*Client
	byConn map[uuid.UUID]uint32
}

// NewSessionManager creates an empty registry.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		byUser: make(map[uint32]*Client),
		byConn: make(map[uuid.UUID]uint32),
	}
}

// Register binds userID to c and returns the previously bound client,
// if any. Duplicate-login policy is the caller's: kick the old one,
// then the new session stands.
func (s *SessionManager) Register(userID uint32, c *Client) (old *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byUser[userID]; ok && prev != c {
		delete(s.byConn, prev.ID())
		old = prev
	}
	s.byUser[userID] = c
	s.byConn[c.ID()] = userID
	return old
}

// Unregister drops the session for c. A connection that lost its
// binding to a newer login is left alone.
func (s *SessionManager) Unregister(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.byConn[c.ID()]
	if !ok {
		return
	}
	delete(s.byConn, c.ID())
	if s.byUser[userID] == c {
		delete(s.byUser, userID)
	}
	slog.Debug("session ended", "user", userID, "conn", c.ID())
}

// ClientOf returns the live client for userID, or nil.
func (s *SessionManager) ClientOf(userID uint32) *Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byUser[userID]
}

// UserOf returns the user bound to a connection id, 0 when anonymous.
func (s *SessionManager) UserOf(connID uuid.UUID) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byConn[connID]
}

// Count returns the number of authenticated sessions.
func (s *SessionManager) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUser)
}

// CloseAllFor closes every connection bound to userID. Used on
// password change and ban.
func (s *SessionManager) CloseAllFor(userID uint32) {
	s.mu.Lock()
	c := s.byUser[userID]
	if c != nil {
		delete(s.byUser, userID)
		delete(s.byConn, c.ID())
	}
	s.mu.Unlock()

	if c != nil {
		c.CloseAsync()
	}
}
