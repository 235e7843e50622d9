package auth

import (
	"sync"
	"time"
)

// TokenRegistry tracks every live token. A token missing from the
// registry is invalid even if its embedded fields still check out;
// logout, password change and expiry all remove entries.
// Thread-safe through sync.Map for read-heavy validation traffic.
type TokenRegistry struct {
	tokens sync.Map // map[Token]uint32 (user id)
}

// NewTokenRegistry creates an empty registry.
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{}
}

// Insert registers a freshly minted token.
func (r *TokenRegistry) Insert(t Token) {
	r.tokens.Store(t, t.UserID())
}

// Validate checks registry membership plus the token's own IP binding
// and expiry, returning the authenticated user id.
func (r *TokenRegistry) Validate(t Token, hostIP uint32, now time.Time) (uint32, bool) {
	if _, ok := r.tokens.Load(t); !ok {
		return 0, false
	}
	return t.Validate(hostIP, now)
}

// Invalidate drops a single token. Idempotent.
func (r *TokenRegistry) Invalidate(t Token) {
	r.tokens.Delete(t)
}

// InvalidateUser drops every token held by userID. Used on password
// change and account ban.
func (r *TokenRegistry) InvalidateUser(userID uint32) int {
	dropped := 0
	r.tokens.Range(func(key, value any) bool {
		if value.(uint32) == userID {
			r.tokens.Delete(key)
			dropped++
		}
		return true
	})
	return dropped
}

// CleanExpired drops tokens past their expiration at time now.
func (r *TokenRegistry) CleanExpired(now time.Time) int {
	dropped := 0
	r.tokens.Range(func(key, _ any) bool {
		if now.After(key.(Token).Expiration()) {
			r.tokens.Delete(key)
			dropped++
		}
		return true
	})
	return dropped
}

// Count returns the number of live tokens.
func (r *TokenRegistry) Count() int {
	count := 0
	r.tokens.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
