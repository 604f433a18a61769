// Package auth implements password hashing and session-token issuance of
// spec.md §4.C. Password hashing generalizes the teacher's dependency on
// golang.org/x/crypto to this spec's PBKDF2-HMAC-SHA256 requirement; token
// issuance generalizes the teacher's server/auth/token/auth_token.go binary
// HMAC token into this spec's JSON-body token format.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

// MinIterations is the floor enforced regardless of configuration
// (spec.md §4.C: "PBKDF2-HMAC-SHA256 with ≥10^5 iterations").
const MinIterations = 100_000

// DefaultIterations is used when the supervisor config does not override it.
const DefaultIterations = 210_000

const saltLength = 16
const keyLength = 32

// ErrWeakConfig is returned by HashPassword when iterations is below
// MinIterations.
var ErrWeakConfig = errors.New("auth: iteration count below minimum")

// HashPassword derives a PBKDF2-HMAC-SHA256 key from password with a fresh
// random salt. The caller is responsible for zeroing the plaintext
// password slice after this call returns (spec.md §4.C: "zeroised from
// buffers after use").
func HashPassword(password []byte, iterations int) (hash, salt []byte, err error) {
	if iterations < MinIterations {
		return nil, nil, ErrWeakConfig
	}
	salt = make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, err
	}
	hash = pbkdf2.Key(password, salt, iterations, keyLength, sha256.New)
	return hash, salt, nil
}

// VerifyPassword recomputes the PBKDF2 derivation and compares it to the
// stored hash in constant time.
func VerifyPassword(password, storedHash, salt []byte, iterations int) bool {
	if iterations < MinIterations {
		iterations = DefaultIterations
	}
	candidate := pbkdf2.Key(password, salt, iterations, keyLength, sha256.New)
	return subtle.ConstantTimeCompare(candidate, storedHash) == 1
}

// Zero overwrites a byte slice in place, best-effort zeroisation of a
// plaintext password buffer once it has crossed the process boundary.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
