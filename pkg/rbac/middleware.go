package rbac

import (
	"net/http"

	"github.com/platinummonkey/communityhub/pkg/guard"
	"github.com/platinummonkey/communityhub/pkg/middleware"
	"github.com/platinummonkey/communityhub/pkg/observability"
	"github.com/platinummonkey/communityhub/pkg/permissions"
)

// PermissionMiddleware checks effective permissions inside a tenant route.
// It must run after a tenant guard has stored the identity and organization.
type PermissionMiddleware struct {
	resolver Resolver
}

// NewPermissionMiddleware creates a new permission middleware
func NewPermissionMiddleware(resolver Resolver) *PermissionMiddleware {
	return &PermissionMiddleware{resolver: resolver}
}

// RequirePermission creates middleware that requires every listed key
func (pm *PermissionMiddleware) RequirePermission(keys ...permissions.Key) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := middleware.GetIdentity(r)
			org := middleware.GetOrganization(r)
			if id == nil || org == nil {
				middleware.WriteDecision(w, guard.Deny(guard.ReasonInsufficientRole, ""))
				return
			}

			set, err := pm.resolver.ResolvePermissions(r.Context(), id, org.ID)
			if err != nil {
				observability.FromContext(r.Context()).WithError(err).Error("Permission check failed")
				middleware.WriteDecision(w, guard.Failed(err))
				return
			}

			if !set.HasAll(keys...) {
				middleware.WriteDecision(w, guard.Deny(guard.ReasonInsufficientRole, ""))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
