package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
)

// TokenBody is the JSON structure signed inside a session token
// (spec.md §4.C: "base64(json{user_id, username, nonce})").
type TokenBody struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Nonce    string `json:"nonce"`
}

// ErrInvalidToken is returned by VerifyToken for any malformed or
// forged token.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenIssuer signs and verifies opaque session tokens with a single
// server secret, grounded on the teacher's
// server/auth/token/auth_token.go TokenAuth, generalized from its fixed
// binary layout to this spec's JSON-body format.
type TokenIssuer struct {
	secret []byte
}

// NewTokenIssuer constructs an issuer bound to secret. The secret must stay
// stable across restarts or all previously issued tokens stop verifying.
func NewTokenIssuer(secret []byte) *TokenIssuer {
	return &TokenIssuer{secret: secret}
}

// Issue produces "base64(json(body)).hex(hmac)" for the given identity.
func (ti *TokenIssuer) Issue(userID int64, username string) (string, error) {
	nonce := make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	body := TokenBody{UserID: userID, Username: username, Nonce: base64.RawURLEncoding.EncodeToString(nonce)}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	encoded := base64.StdEncoding.EncodeToString(raw)

	mac := hmac.New(sha256.New, ti.secret)
	mac.Write([]byte(encoded))
	sig := hex.EncodeToString(mac.Sum(nil))

	return encoded + "." + sig, nil
}

// Verify recomputes the HMAC with constant-time comparison and, if it
// matches, decodes the body (spec.md §4.C).
func (ti *TokenIssuer) Verify(token string) (*TokenBody, error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return nil, ErrInvalidToken
	}
	encoded, sigHex := parts[0], parts[1]

	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return nil, ErrInvalidToken
	}
	mac := hmac.New(sha256.New, ti.secret)
	mac.Write([]byte(encoded))
	expected := mac.Sum(nil)
	if !hmac.Equal(expected, sig) {
		return nil, ErrInvalidToken
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var body TokenBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, ErrInvalidToken
	}
	return &body, nil
}
