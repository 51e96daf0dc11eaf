package api

import (
	"net/http"

	"github.com/platinummonkey/communityhub/pkg/guard"
	"github.com/platinummonkey/communityhub/pkg/httputil"
	"github.com/platinummonkey/communityhub/pkg/middleware"
	"github.com/platinummonkey/communityhub/pkg/observability"
	"github.com/platinummonkey/communityhub/pkg/paths"
)

// LandingResponse carries the post sign-in destination
type LandingResponse struct {
	Path string `json:"path"`
}

// getLanding handles GET /me/landing. Anonymous callers receive the
// sign-in path rather than an error.
func (s *Server) getLanding(w http.ResponseWriter, r *http.Request) {
	path, err := s.landing.ResolveLandingPath(r.Context(), middleware.GetPrincipal(r))
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Failed to resolve landing path")
		middleware.WriteDecision(w, guard.Failed(err))
		return
	}
	_ = httputil.WriteSuccess(w, LandingResponse{Path: path})
}

// getIdentity handles GET /me/identity
func (s *Server) getIdentity(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		middleware.WriteDecision(w, guard.Deny(guard.ReasonUnauthenticated, paths.SignIn))
		return
	}

	id, err := s.identities.ResolveIdentity(r.Context(), principal)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Failed to resolve identity")
		middleware.WriteDecision(w, guard.Failed(err))
		return
	}
	_ = httputil.WriteSuccess(w, id)
}

// accessHandler reports the policy's decision for the caller without
// protecting anything behind it
func (s *Server) accessHandler(policy guard.Policy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := s.guards.Check(r, policy)
		middleware.WriteDecision(w, out.Decision)
	}
}
