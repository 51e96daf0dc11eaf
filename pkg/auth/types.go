package auth

import (
	"errors"
	"time"
)

// ErrSessionNotFound is returned when a session token does not map to a live session
var ErrSessionNotFound = errors.New("session not found")

// Principal is an authenticated actor. It is owned by the identity provider;
// this service only reads it.
type Principal struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
}

// IsVerified reports whether the principal has confirmed their email address
func (p *Principal) IsVerified() bool {
	return p != nil && p.EmailVerifiedAt != nil
}

// Session represents a signed-in browser or API session
type Session struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	TokenHash   string     `json:"-"` // Never expose hash
	TokenPrefix string     `json:"token_prefix"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

// AuthContext holds the authenticated principal for one request
type AuthContext struct {
	Principal *Principal
	SessionID string
}
