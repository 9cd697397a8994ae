// Package auth provides the credential primitives of the API server:
// password hashing, random token generation, and the error kinds shared
// between the service and HTTP layers.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	hasherSaltLen = 16
	hasherKeyLen  = 32
)

// HasherParams are the argon2id cost parameters. They can be tuned per
// deployment without changing the stored-hash format, since every hash
// embeds the parameters it was produced with.
type HasherParams struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

// DefaultHasherParams follows the OWASP argon2id recommendation.
func DefaultHasherParams() HasherParams {
	return HasherParams{Time: 1, Memory: 64 * 1024, Threads: 4}
}

// Hasher hashes and verifies passwords using argon2id. Output is the PHC
// string format, so the salt and costs travel with the hash and no external
// salt storage is needed.
type Hasher struct {
	params HasherParams
}

// NewHasher constructs a Hasher with the given cost parameters. Zero-valued
// fields fall back to the defaults.
func NewHasher(params HasherParams) *Hasher {
	defaults := DefaultHasherParams()
	if params.Time == 0 {
		params.Time = defaults.Time
	}
	if params.Memory == 0 {
		params.Memory = defaults.Memory
	}
	if params.Threads == 0 {
		params.Threads = defaults.Threads
	}
	return &Hasher{params: params}
}

// Hash produces an argon2id hash of the password with a fresh random salt.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}

	salt := make([]byte, hasherSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, hasherKeyLen)

	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return encoded, nil
}

// Verify reports whether the password matches the encoded hash. A mismatch is
// a false result, not an error; errors indicate a malformed hash. The derived
// key comparison is constant-time.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, errors.New("malformed password hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("malformed password hash: %w", err)
	}

	var memory, time uint32
	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, fmt.Errorf("malformed password hash: %w", err)
	}
	if threads == 0 || threads > 255 {
		return false, errors.New("malformed password hash: parallelism out of range")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("malformed password hash: %w", err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("malformed password hash: %w", err)
	}
	if len(expected) == 0 {
		return false, errors.New("malformed password hash: empty key")
	}

	// Recompute with the parameters embedded in the hash, not the hasher's
	// current parameters, so old hashes keep verifying after a cost change.
	computed := argon2.IDKey([]byte(password), salt, time, memory, uint8(threads), uint32(len(expected)))

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}
