// Package auth implements credential verification, the IP-bound bearer
// token, and the in-memory token registry.
package auth

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Scheme tags the password hash algorithm stored on a user record.
// Verification dispatches on the stored tag; new hashes are always
// produced under DefaultScheme.
type Scheme int16

const (
	// SchemePlaintext stores the password as-is. Test databases only;
	// every verification logs a warning.
	SchemePlaintext Scheme = 0

	// SchemeSimple is the legacy XOR-with-salt encoding. Read-only:
	// existing records verify, new hashes are never produced under it.
	SchemeSimple Scheme = 1

	// SchemeMD5 is hex(md5(password || salt)). Legacy, read-only like
	// SchemeSimple but kept verifiable indefinitely.
	SchemeMD5 Scheme = 2

	// SchemeBcrypt is the default for new hashes.
	SchemeBcrypt Scheme = 3

	// SchemeArgon2 is the opt-in strong scheme (argon2id).
	SchemeArgon2 Scheme = 4
)

// DefaultScheme is applied on account creation and password change.
const DefaultScheme = SchemeBcrypt

const saltLength = 16

// Argon2id parameters for SchemeArgon2.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 2
	argonKeyLen  = 32
)

func (s Scheme) String() string {
	switch s {
	case SchemePlaintext:
		return "plaintext"
	case SchemeSimple:
		return "simple"
	case SchemeMD5:
		return "md5"
	case SchemeBcrypt:
		return "bcrypt"
	case SchemeArgon2:
		return "argon2"
	default:
		return fmt.Sprintf("scheme(%d)", int16(s))
	}
}

// PasswordRecord is the stored credential: scheme tag, encoded hash and
// the salt for the schemes that keep it externally.
type PasswordRecord struct {
	Scheme Scheme
	Hash   string
	Salt   []byte
}

// NewSalt returns a fresh random salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}

// HashPassword produces a credential record for password under scheme.
// Legacy schemes cannot be selected for new hashes.
func HashPassword(password string, scheme Scheme) (PasswordRecord, error) {
	switch scheme {
	case SchemeBcrypt:
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return PasswordRecord{}, fmt.Errorf("bcrypt hash: %w", err)
		}
		return PasswordRecord{Scheme: SchemeBcrypt, Hash: string(hash)}, nil

	case SchemeArgon2:
		salt, err := NewSalt()
		if err != nil {
			return PasswordRecord{}, err
		}
		key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
		hash := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
			argon2.Version, argonMemory, argonTime, argonThreads,
			base64.RawStdEncoding.EncodeToString(salt),
			base64.RawStdEncoding.EncodeToString(key))
		return PasswordRecord{Scheme: SchemeArgon2, Hash: hash, Salt: salt}, nil

	case SchemePlaintext:
		slog.Warn("storing plaintext password, test databases only")
		return PasswordRecord{Scheme: SchemePlaintext, Hash: password}, nil

	case SchemeSimple, SchemeMD5:
		return PasswordRecord{}, fmt.Errorf("scheme %s is read-only, cannot produce new hashes", scheme)

	default:
		return PasswordRecord{}, fmt.Errorf("unknown password scheme %d", scheme)
	}
}

// VerifyPassword checks password against the stored record. It returns
// plain false for a mismatch; an error means the record itself is
// unusable (unknown scheme, corrupt hash).
func VerifyPassword(password string, rec PasswordRecord) (bool, error) {
	switch rec.Scheme {
	case SchemePlaintext:
		slog.Warn("verifying against a plaintext password record")
		return subtle.ConstantTimeCompare([]byte(password), []byte(rec.Hash)) == 1, nil

	case SchemeSimple:
		return subtle.ConstantTimeCompare([]byte(simpleHash(password, rec.Salt)), []byte(rec.Hash)) == 1, nil

	case SchemeMD5:
		sum := md5.Sum(append([]byte(password), rec.Salt...))
		return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(rec.Hash)) == 1, nil

	case SchemeBcrypt:
		err := bcrypt.CompareHashAndPassword([]byte(rec.Hash), []byte(password))
		if err == nil {
			return true, nil
		}
		if err == bcrypt.ErrMismatchedHashAndPassword {
			return false, nil
		}
		return false, fmt.Errorf("bcrypt verify: %w", err)

	case SchemeArgon2:
		return verifyArgon2(password, rec.Hash)

	default:
		return false, fmt.Errorf("unknown password scheme %d", rec.Scheme)
	}
}

// simpleHash is the legacy XOR-with-salt encoding: each password byte
// xored with the salt byte at the same index (salt cycled), hex-encoded.
func simpleHash(password string, salt []byte) string {
	if len(salt) == 0 {
		return hex.EncodeToString([]byte(password))
	}
	out := make([]byte, len(password))
	for i := 0; i < len(password); i++ {
		out[i] = password[i] ^ salt[i%len(salt)]
	}
	return hex.EncodeToString(out)
}

func verifyArgon2(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	// "$argon2id$v=19$m=...,t=...,p=...$salt$key" splits into 6.
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, fmt.Errorf("malformed argon2 hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("malformed argon2 version: %w", err)
	}
	if version != argon2.Version {
		return false, fmt.Errorf("unsupported argon2 version %d", version)
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, fmt.Errorf("malformed argon2 parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("malformed argon2 salt: %w", err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("malformed argon2 key: %w", err)
	}

	got := argon2.IDKey([]byte(password), salt, iterations, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
