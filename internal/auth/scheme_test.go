package auth

import (
	"crypto/md5"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_Bcrypt(t *testing.T) {
	rec, err := HashPassword("hunter2", SchemeBcrypt)
	require.NoError(t, err)
	assert.Equal(t, SchemeBcrypt, rec.Scheme)

	ok, err := VerifyPassword("hunter2", rec)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong", rec)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_Argon2(t *testing.T) {
	rec, err := HashPassword("correct horse battery staple", SchemeArgon2)
	require.NoError(t, err)
	assert.Equal(t, SchemeArgon2, rec.Scheme)
	assert.Contains(t, rec.Hash, "$argon2id$")

	ok, err := VerifyPassword("correct horse battery staple", rec)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("incorrect horse", rec)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_LegacySchemesRefused(t *testing.T) {
	_, err := HashPassword("pw", SchemeSimple)
	assert.Error(t, err)
	_, err = HashPassword("pw", SchemeMD5)
	assert.Error(t, err)
	_, err = HashPassword("pw", Scheme(99))
	assert.Error(t, err)
}

func TestVerifyPassword_Plaintext(t *testing.T) {
	rec := PasswordRecord{Scheme: SchemePlaintext, Hash: "open sesame"}

	ok, err := VerifyPassword("open sesame", rec)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("shut sesame", rec)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPassword_LegacySimple(t *testing.T) {
	salt := []byte{0x10, 0x20, 0x30, 0x40}
	rec := PasswordRecord{
		Scheme: SchemeSimple,
		Salt:   salt,
		Hash:   simpleHash("hunter2", salt),
	}

	ok, err := VerifyPassword("hunter2", rec)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("hunter3", rec)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPassword_LegacyMD5(t *testing.T) {
	salt := []byte("pepper")
	sum := md5.Sum(append([]byte("hunter2"), salt...))
	rec := PasswordRecord{
		Scheme: SchemeMD5,
		Salt:   salt,
		Hash:   hex.EncodeToString(sum[:]),
	}

	ok, err := VerifyPassword("hunter2", rec)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("hunter2 ", rec)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPassword_CorruptRecords(t *testing.T) {
	_, err := VerifyPassword("pw", PasswordRecord{Scheme: SchemeArgon2, Hash: "garbage"})
	assert.Error(t, err)

	_, err = VerifyPassword("pw", PasswordRecord{Scheme: Scheme(42)})
	assert.Error(t, err)
}
