// Package auth provides principals and session tokens.
//
// # Overview
//
// A Principal is the authenticated actor: a stable identifier, an email and
// the time the email was verified (nil when unverified). Principals are owned
// by the identity provider; this package only reads them.
//
// Session tokens have the form chs_<base64url(32 random bytes)> and are
// stored as a SHA256 hash:
//
//	store := auth.NewPostgresSessionStore(db, 24*time.Hour)
//	session, token, err := store.CreateSession(ctx, userID)
//	principal, sessionID, err := store.LookupPrincipal(ctx, token)
//
// LookupPrincipal returns ErrSessionNotFound for malformed, unknown, expired
// and revoked tokens alike.
//
// # Related Packages
//
//   - pkg/middleware: Bearer token extraction
//   - pkg/identity: Role resolution for a principal
package auth
