package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/communityhub/pkg/contextkeys"
	"github.com/platinummonkey/communityhub/pkg/guard"
	"github.com/platinummonkey/communityhub/pkg/httputil"
	"github.com/platinummonkey/communityhub/pkg/orgs"
	"github.com/platinummonkey/communityhub/pkg/paths"
)

// SlugVar is the route variable naming the organization
const SlugVar = "slug"

// DecisionResponse is the wire form of a guard decision
type DecisionResponse struct {
	State      guard.State  `json:"state"`
	Reason     guard.Reason `json:"reason,omitempty"`
	RedirectTo string       `json:"redirect_to,omitempty"`
}

// NewDecisionResponse converts a decision for the wire. The error of an
// error decision stays server side.
func NewDecisionResponse(d guard.Decision) DecisionResponse {
	return DecisionResponse{
		State:      d.State,
		Reason:     d.Reason,
		RedirectTo: d.RedirectTo,
	}
}

// StatusForDecision maps a decision to its HTTP status code
func StatusForDecision(d guard.Decision) int {
	switch d.State {
	case guard.StateAllow:
		return http.StatusOK
	case guard.StateDeny:
		if d.Reason == guard.ReasonUnauthenticated {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	case guard.StateLoading:
		return http.StatusAccepted
	default:
		return http.StatusServiceUnavailable
	}
}

// WriteDecision writes the decision body with its mapped status
func WriteDecision(w http.ResponseWriter, d guard.Decision) {
	_ = httputil.WriteJSON(w, StatusForDecision(d), NewDecisionResponse(d))
}

// GuardMiddleware admits requests through access policies
type GuardMiddleware struct {
	checker *guard.Checker
}

// NewGuardMiddleware creates a new guard middleware
func NewGuardMiddleware(checker *guard.Checker) *GuardMiddleware {
	return &GuardMiddleware{checker: checker}
}

// Check evaluates the policy for the request's principal and {slug} variable
func (m *GuardMiddleware) Check(r *http.Request, policy guard.Policy) guard.Outcome {
	return m.checker.Check(r.Context(), guard.Request{
		Policy:    policy,
		Principal: GetPrincipal(r),
		Slug:      mux.Vars(r)[SlugVar],
	})
}

// Require creates middleware that only lets allowed requests through. The
// resolved identity and organization are stored on the request context.
// Tenant routes never reach next without their organization, even when the
// decision was made before the organization lookup finished.
func (m *GuardMiddleware) Require(policy guard.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			out := m.Check(r, policy)
			if !out.Decision.Allowed() {
				WriteDecision(w, out.Decision)
				return
			}

			slug := mux.Vars(r)[SlugVar]
			if out.Organization == nil && policy.Scope.IsTenant() && slug != "" {
				org, err := m.checker.Organization(r.Context(), slug)
				switch {
				case errors.Is(err, orgs.ErrOrganizationNotFound):
					WriteDecision(w, guard.Deny(guard.ReasonNoOrganization, paths.NoOrganization))
					return
				case err != nil:
					WriteDecision(w, guard.Failed(err))
					return
				}
				out.Organization = org
			}

			ctx := context.WithValue(r.Context(), contextkeys.DecisionKey, out.Decision)
			if out.Identity != nil {
				ctx = context.WithValue(ctx, contextkeys.IdentityKey, out.Identity)
			}
			if out.Organization != nil {
				ctx = context.WithValue(ctx, contextkeys.OrganizationKey, out.Organization)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
