package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionStore resolves bearer tokens into principals
type SessionStore interface {
	// LookupPrincipal returns the principal owning a live session token
	LookupPrincipal(ctx context.Context, token string) (*Principal, string, error)
}

// PostgresSessionStore implements SessionStore on the sessions and users tables
type PostgresSessionStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewPostgresSessionStore creates a new session store
func NewPostgresSessionStore(db *sql.DB, ttl time.Duration) *PostgresSessionStore {
	return &PostgresSessionStore{
		db:  db,
		ttl: ttl,
		now: time.Now,
	}
}

// CreateSession issues a new session for a user. The plaintext token is
// returned once and never stored.
func (s *PostgresSessionStore) CreateSession(ctx context.Context, userID string) (*Session, string, error) {
	token, err := NewSessionToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.now().UTC()
	session := &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		TokenHash:   token.Hash,
		TokenPrefix: token.Display,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	query := `
		INSERT INTO sessions (id, user_id, token_hash, token_prefix, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.TokenHash, session.TokenPrefix,
		session.CreatedAt, session.ExpiresAt,
	); err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	return session, token.Value, nil
}

// LookupPrincipal validates a token and returns its principal and session ID
func (s *PostgresSessionStore) LookupPrincipal(ctx context.Context, token string) (*Principal, string, error) {
	if err := CheckSessionToken(token); err != nil {
		return nil, "", ErrSessionNotFound
	}

	query := `
		SELECT s.id, u.id, u.email, u.email_verified_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = $1
		  AND s.revoked_at IS NULL
		  AND s.expires_at > $2
	`

	var sessionID string
	var verifiedAt sql.NullTime
	principal := &Principal{}
	err := s.db.QueryRowContext(ctx, query, HashSessionToken(token), s.now().UTC()).Scan(
		&sessionID, &principal.ID, &principal.Email, &verifiedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrSessionNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up session: %w", err)
	}

	if verifiedAt.Valid {
		t := verifiedAt.Time
		principal.EmailVerifiedAt = &t
	}

	return principal, sessionID, nil
}

// RevokeSession revokes a session on sign-out
func (s *PostgresSessionStore) RevokeSession(ctx context.Context, sessionID string) error {
	query := `UPDATE sessions SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`
	result, err := s.db.ExecContext(ctx, query, s.now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// PurgeExpiredSessions deletes sessions that expired or were revoked more
// than retention ago and returns how many were removed
func (s *PostgresSessionStore) PurgeExpiredSessions(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-retention)
	query := `DELETE FROM sessions WHERE expires_at < $1 OR revoked_at < $1`
	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
