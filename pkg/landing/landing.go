// Package landing computes where a principal is sent after signing in.
package landing

import (
	"context"

	"github.com/platinummonkey/communityhub/pkg/auth"
	"github.com/platinummonkey/communityhub/pkg/identity"
	"github.com/platinummonkey/communityhub/pkg/paths"
)

// Path returns the landing path for a resolved identity. The first match
// wins: platform admins go to the platform console, then the first
// organization administered, then the first organization joined as a
// member. Memberships are scanned in the resolver's order, so the result is
// deterministic for an unchanged identity.
func Path(id *identity.ResolvedIdentity) string {
	if id == nil {
		return paths.NoOrganization
	}
	if id.IsPlatformAdmin {
		return paths.PlatformConsole
	}
	if !id.HasOrganization() {
		return paths.NoOrganization
	}
	for _, m := range id.Memberships {
		if m.Role.CanAdminister() {
			return paths.AdminConsole(m.Slug)
		}
	}
	for _, m := range id.Memberships {
		if m.Role == identity.RoleMember {
			return paths.MemberPortal(m.Slug)
		}
	}
	return paths.NoOrganization
}

// Resolver resolves landing paths for principals
type Resolver struct {
	identities identity.Provider
}

// NewResolver creates a landing resolver on top of an identity provider
func NewResolver(identities identity.Provider) *Resolver {
	return &Resolver{identities: identities}
}

// ResolveLandingPath resolves the principal's identity and returns its
// landing path. An unauthenticated caller lands on sign-in.
func (r *Resolver) ResolveLandingPath(ctx context.Context, principal *auth.Principal) (string, error) {
	if principal == nil {
		return paths.SignIn, nil
	}
	id, err := r.identities.ResolveIdentity(ctx, principal)
	if err != nil {
		return "", err
	}
	return Path(id), nil
}
