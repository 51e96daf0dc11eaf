package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/communityhub/pkg/auth"
	"github.com/platinummonkey/communityhub/pkg/contextkeys"
	"github.com/platinummonkey/communityhub/pkg/guard"
	"github.com/platinummonkey/communityhub/pkg/httputil"
	"github.com/platinummonkey/communityhub/pkg/identity"
	"github.com/platinummonkey/communityhub/pkg/observability"
	"github.com/platinummonkey/communityhub/pkg/orgs"
)

// AuthMiddleware resolves bearer session tokens to principals
type AuthMiddleware struct {
	sessions auth.SessionStore
	logger   logrus.FieldLogger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(sessions auth.SessionStore, logger logrus.FieldLogger) *AuthMiddleware {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &AuthMiddleware{
		sessions: sessions,
		logger:   logger,
	}
}

// Handler wraps an HTTP handler with session authentication. Requests
// without an Authorization header continue anonymously so that guards can
// answer them with an unauthenticated decision and its sign-in redirect.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		// Format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		principal, sessionID, err := m.sessions.LookupPrincipal(r.Context(), parts[1])
		if errors.Is(err, auth.ErrSessionNotFound) {
			httputil.WriteUnauthorized(w, "invalid or expired session")
			return
		}
		if err != nil {
			observability.FromContext(r.Context()).WithError(err).Error("Session lookup failed")
			httputil.WriteServiceUnavailable(w, "session lookup unavailable")
			return
		}

		ctx := context.WithValue(r.Context(), contextkeys.AuthKey, &auth.AuthContext{
			Principal: principal,
			SessionID: sessionID,
		})
		ctx = observability.WithUserID(ctx, principal.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext extracts the auth context from the request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	authCtx, _ := r.Context().Value(contextkeys.AuthKey).(*auth.AuthContext)
	return authCtx
}

// GetPrincipal returns the signed-in principal, or nil for anonymous requests
func GetPrincipal(r *http.Request) *auth.Principal {
	if authCtx := GetAuthContext(r); authCtx != nil {
		return authCtx.Principal
	}
	return nil
}

// GetIdentity returns the identity resolved by a guard for this request
func GetIdentity(r *http.Request) *identity.ResolvedIdentity {
	id, _ := r.Context().Value(contextkeys.IdentityKey).(*identity.ResolvedIdentity)
	return id
}

// GetOrganization returns the organization a tenant guard admitted the request into
func GetOrganization(r *http.Request) *orgs.Organization {
	org, _ := r.Context().Value(contextkeys.OrganizationKey).(*orgs.Organization)
	return org
}

// GetDecision returns the guard decision that admitted the request
func GetDecision(r *http.Request) (guard.Decision, bool) {
	d, ok := r.Context().Value(contextkeys.DecisionKey).(guard.Decision)
	return d, ok
}
