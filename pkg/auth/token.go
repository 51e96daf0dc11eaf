package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// TokenPrefix marks a communityhub session token
	TokenPrefix = "chs_"

	tokenBytes    = 32
	displayLength = 8
)

// ErrMalformedToken is returned for bearer values that cannot be session tokens
var ErrMalformedToken = errors.New("malformed session token")

// SessionToken is a newly issued bearer token. Value goes to the client once;
// only Hash is persisted.
type SessionToken struct {
	Value   string
	Hash    string
	Display string
}

// NewSessionToken draws a random token of the form chs_<base64url(32 bytes)>
func NewSessionToken() (SessionToken, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return SessionToken{}, fmt.Errorf("failed to read random bytes: %w", err)
	}
	value := TokenPrefix + base64.RawURLEncoding.EncodeToString(raw)
	return SessionToken{
		Value:   value,
		Hash:    HashSessionToken(value),
		Display: value[:len(TokenPrefix)+displayLength],
	}, nil
}

// HashSessionToken is the lookup key stored in sessions.token_hash
func HashSessionToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// CheckSessionToken rejects values that could never match a stored hash, so
// garbage bearer headers skip the database
func CheckSessionToken(value string) error {
	body, ok := strings.CutPrefix(value, TokenPrefix)
	if !ok {
		return fmt.Errorf("%w: missing %q prefix", ErrMalformedToken, TokenPrefix)
	}
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if len(raw) != tokenBytes {
		return fmt.Errorf("%w: want %d bytes, got %d", ErrMalformedToken, tokenBytes, len(raw))
	}
	return nil
}
