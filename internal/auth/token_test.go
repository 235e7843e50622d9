package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_ValidatesForBoundHost(t *testing.T) {
	now := time.Now()
	localhost := IPv4ToUint32("127.0.0.1")

	tok, err := MintToken(localhost, 42, now, DefaultTokenLifetime)
	require.NoError(t, err)

	userID, ok := tok.Validate(localhost, now)
	require.True(t, ok)
	assert.Equal(t, uint32(42), userID)

	// Same token from another host is invalid.
	_, ok = tok.Validate(IPv4ToUint32("10.0.0.1"), now)
	assert.False(t, ok)
}

func TestToken_Expires(t *testing.T) {
	now := time.Now()
	host := IPv4ToUint32("192.168.1.5")

	tok, err := MintToken(host, 7, now, time.Hour)
	require.NoError(t, err)

	_, ok := tok.Validate(host, now.Add(59*time.Minute))
	assert.True(t, ok)

	_, ok = tok.Validate(host, now.Add(2*time.Hour))
	assert.False(t, ok)
}

func TestToken_WireLayout(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tok, err := MintToken(0x7F000001, 0xDEADBEEF, now, time.Hour)
	require.NoError(t, err)

	// host_ip:u32 LE
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x7F}, tok[0:4])
	// user_id:u32 LE
	assert.Equal(t, []byte{0xEF, 0xBE, 0xAD, 0xDE}, tok[4:8])
	assert.Equal(t, now.Add(time.Hour).Unix(), tok.Expiration().Unix())

	back, err := TokenFromBytes(tok[:])
	require.NoError(t, err)
	assert.Equal(t, tok, back)

	_, err = TokenFromBytes(tok[:16])
	assert.Error(t, err)
}

func TestTokenRegistry_InvalidateIdempotent(t *testing.T) {
	reg := NewTokenRegistry()
	now := time.Now()
	host := IPv4ToUint32("127.0.0.1")

	tok, err := MintToken(host, 3, now, time.Hour)
	require.NoError(t, err)
	reg.Insert(tok)

	_, ok := reg.Validate(tok, host, now)
	require.True(t, ok)

	reg.Invalidate(tok)
	_, ok = reg.Validate(tok, host, now)
	assert.False(t, ok)

	// Second invalidate leaves the same post-state.
	reg.Invalidate(tok)
	_, ok = reg.Validate(tok, host, now)
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Count())
}

func TestTokenRegistry_InvalidateUser(t *testing.T) {
	reg := NewTokenRegistry()
	now := time.Now()
	host := IPv4ToUint32("127.0.0.1")

	var userTokens []Token
	for i := 0; i < 3; i++ {
		tok, err := MintToken(host, 9, now, time.Hour)
		require.NoError(t, err)
		reg.Insert(tok)
		userTokens = append(userTokens, tok)
	}
	other, err := MintToken(host, 10, now, time.Hour)
	require.NoError(t, err)
	reg.Insert(other)

	assert.Equal(t, 3, reg.InvalidateUser(9))
	for _, tok := range userTokens {
		_, ok := reg.Validate(tok, host, now)
		assert.False(t, ok)
	}
	_, ok := reg.Validate(other, host, now)
	assert.True(t, ok)
}

func TestTokenRegistry_CleanExpired(t *testing.T) {
	reg := NewTokenRegistry()
	now := time.Now()
	host := IPv4ToUint32("127.0.0.1")

	short, err := MintToken(host, 1, now, time.Minute)
	require.NoError(t, err)
	long, err := MintToken(host, 2, now, time.Hour)
	require.NoError(t, err)
	reg.Insert(short)
	reg.Insert(long)

	assert.Equal(t, 1, reg.CleanExpired(now.Add(30*time.Minute)))
	assert.Equal(t, 1, reg.Count())
}

func TestSameSlash24(t *testing.T) {
	a := IPv4ToUint32("192.168.1.10")
	b := IPv4ToUint32("192.168.1.250")
	c := IPv4ToUint32("192.168.2.10")
	assert.True(t, SameSlash24(a, b))
	assert.False(t, SameSlash24(a, c))
}

func TestIPv4ToUint32(t *testing.T) {
	assert.Equal(t, uint32(0x7F000001), IPv4ToUint32("127.0.0.1"))
	assert.Equal(t, uint32(0), IPv4ToUint32("::1"))
	assert.Equal(t, uint32(0), IPv4ToUint32("not-an-ip"))
}
