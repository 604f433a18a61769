package auth

import (
	"errors"
	"strings"
)

// RegisterPolicy bundles the register-time validation limits of
// spec.md §4.C, configurable by the supervisor.
type RegisterPolicy struct {
	MaxUsernameLen int
	MinPasswordLen int
}

// DefaultRegisterPolicy matches the spec's default caps.
var DefaultRegisterPolicy = RegisterPolicy{MaxUsernameLen: 50, MinPasswordLen: 8}

// Validation errors for register(). These are returned, not just logged,
// because register() reports a specific reason on failure (spec.md §4.C,
// §8 property 2).
var (
	ErrUsernameEmpty      = errors.New("username must not be empty")
	ErrUsernameWhitespace = errors.New("username must not contain whitespace")
	ErrUsernameTooLong    = errors.New("username exceeds maximum length")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrBadPublicKey       = errors.New("malformed public key")
)

// ValidateRegistration checks username, password, and an optional PEM
// public key against policy.
func (p RegisterPolicy) ValidateRegistration(username, password, publicKeyPEM string) error {
	if username == "" {
		return ErrUsernameEmpty
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return ErrUsernameWhitespace
	}
	maxLen := p.MaxUsernameLen
	if maxLen <= 0 {
		maxLen = DefaultRegisterPolicy.MaxUsernameLen
	}
	if len(username) > maxLen {
		return ErrUsernameTooLong
	}
	minLen := p.MinPasswordLen
	if minLen <= 0 {
		minLen = DefaultRegisterPolicy.MinPasswordLen
	}
	if len(password) < minLen {
		return ErrPasswordTooShort
	}
	if publicKeyPEM != "" && !isWellFormedPEM(publicKeyPEM) {
		return ErrBadPublicKey
	}
	return nil
}

func isWellFormedPEM(s string) bool {
	const header = "-----BEGIN"
	const footer = "-----END"
	return strings.Contains(s, header) && strings.Contains(s, footer) &&
		strings.Index(s, header) < strings.LastIndex(s, footer)
}
