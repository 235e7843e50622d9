package auth

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

// TokenSize is the fixed wire size of a bearer token.
const TokenSize = 32

// DefaultTokenLifetime bounds how long a minted token authenticates.
const DefaultTokenLifetime = 48 * time.Hour

// Token is the opaque 32-byte bearer credential issued at login.
// Layout: host_ip:u32 LE | user_id:u32 LE | expiration:u32 LE (unix
// seconds) | random:20 bytes. A token authenticates exactly one user
// from exactly one network location until its expiration.
type Token [TokenSize]byte

// MintToken issues a token binding userID to the client host for the
// given lifetime from now.
func MintToken(hostIP uint32, userID uint32, now time.Time, lifetime time.Duration) (Token, error) {
	var t Token
	binary.LittleEndian.PutUint32(t[0:4], hostIP)
	binary.LittleEndian.PutUint32(t[4:8], userID)
	binary.LittleEndian.PutUint32(t[8:12], uint32(now.Add(lifetime).Unix()))
	if _, err := rand.Read(t[12:]); err != nil {
		return Token{}, fmt.Errorf("generating token padding: %w", err)
	}
	return t, nil
}

// HostIP returns the bound client address.
func (t Token) HostIP() uint32 {
	return binary.LittleEndian.Uint32(t[0:4])
}

// UserID returns the embedded user id.
func (t Token) UserID() uint32 {
	return binary.LittleEndian.Uint32(t[4:8])
}

// Expiration returns the embedded expiry time.
func (t Token) Expiration() time.Time {
	return time.Unix(int64(binary.LittleEndian.Uint32(t[8:12])), 0)
}

// Validate checks the token against the presenting host at time now and
// returns the embedded user id. IP mismatch and expiry both fail; the
// caller cannot distinguish the two by design.
func (t Token) Validate(hostIP uint32, now time.Time) (uint32, bool) {
	if t.HostIP() != hostIP {
		return 0, false
	}
	if now.After(t.Expiration()) {
		return 0, false
	}
	return t.UserID(), true
}

// TokenFromBytes copies a wire buffer into a Token.
func TokenFromBytes(b []byte) (Token, error) {
	var t Token
	if len(b) != TokenSize {
		return t, fmt.Errorf("token must be %d bytes, got %d", TokenSize, len(b))
	}
	copy(t[:], b)
	return t, nil
}

// IPv4ToUint32 converts a dotted-quad address to the 32-bit host-order
// integer used in tokens and the /24 admission heuristic. Non-IPv4
// addresses map to zero.
func IPv4ToUint32(ip string) uint32 {
	v4 := net.ParseIP(ip).To4()
	if v4 == nil {
		return 0
	}
	return binary.BigEndian.Uint32(v4)
}

// SameSlash24 reports whether two 32-bit host addresses share a /24
// network. This is an admission heuristic, not a security boundary.
func SameSlash24(a, b uint32) bool {
	return a>>8 == b>>8
}
