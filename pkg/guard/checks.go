package guard

import (
	"github.com/platinummonkey/communityhub/pkg/auth"
	"github.com/platinummonkey/communityhub/pkg/identity"
	"github.com/platinummonkey/communityhub/pkg/orgs"
	"github.com/platinummonkey/communityhub/pkg/paths"
)

// Scope is what a guard protects
type Scope string

const (
	// ScopeRole protects flat routes by role, such as the platform console
	ScopeRole Scope = "role"
	// ScopeAdmin protects an organization's admin console
	ScopeAdmin Scope = "admin"
	// ScopePortal protects an organization's member portal
	ScopePortal Scope = "portal"
)

// IsTenant reports whether the scope is bound to an organization slug
func (s Scope) IsTenant() bool {
	return s == ScopeAdmin || s == ScopePortal
}

// Inputs are the lookups a guard decides on
type Inputs struct {
	Session      Lookup[*auth.Principal]
	Identity     Lookup[*identity.ResolvedIdentity]
	Organization Lookup[*orgs.Organization]
}

// requirePrincipal handles the session lookup shared by every guard. ok is
// true when a principal is present and evaluation can continue.
func requirePrincipal(session Lookup[*auth.Principal]) (Decision, bool) {
	switch {
	case !session.Done:
		return Loading(), false
	case session.Err != nil:
		return Failed(session.Err), false
	case session.Value == nil:
		return Deny(ReasonUnauthenticated, paths.SignIn), false
	}
	return Decision{}, true
}

func requireIdentity(id Lookup[*identity.ResolvedIdentity]) (Decision, bool) {
	switch {
	case !id.Done:
		return Loading(), false
	case id.Err != nil:
		return Failed(id.Err), false
	case id.Value == nil:
		return Failed(identity.ErrNoPrincipal), false
	}
	return Decision{}, true
}

// EvaluateRole allows platform admins and principals holding any of the
// required roles in some organization
func EvaluateRole(in Inputs, required []identity.Role) Decision {
	if d, ok := requirePrincipal(in.Session); !ok {
		return d
	}
	if d, ok := requireIdentity(in.Identity); !ok {
		return d
	}

	id := in.Identity.Value
	if id.IsPlatformAdmin {
		return Allow()
	}
	if id.HasAnyRole(required...) {
		return Allow()
	}
	return Deny(ReasonInsufficientRole, "")
}

// EvaluateTenant decides access to an organization's admin console or member
// portal. Checks run in precedence order and evaluation stops at the first
// one still loading, so a denial is never issued ahead of a pending
// higher-precedence check. Platform admins are allowed before the
// organization lookup is consulted at all.
func EvaluateTenant(scope Scope, slug string, in Inputs) Decision {
	if d, ok := requirePrincipal(in.Session); !ok {
		return d
	}
	if d, ok := requireIdentity(in.Identity); !ok {
		return d
	}

	id := in.Identity.Value
	if id.IsPlatformAdmin {
		return Allow()
	}

	if slug == "" {
		return Deny(ReasonNoOrganization, paths.NoOrganization)
	}
	switch {
	case !in.Organization.Done:
		return Loading()
	case in.Organization.Err != nil:
		return Failed(in.Organization.Err)
	case in.Organization.Value == nil:
		return Deny(ReasonNoOrganization, paths.NoOrganization)
	}
	org := in.Organization.Value

	membership, ok := id.Membership(org.ID)
	if !ok {
		return Deny(ReasonNotMember, "")
	}
	if !org.IsAccessible() {
		return Deny(ReasonOrganizationNotAccessible, "")
	}
	if scope == ScopeAdmin && !membership.Role.CanAdminister() {
		return Deny(ReasonInsufficientRole, "")
	}
	return Allow()
}

// EvaluateVerification requires a verified email outside development. A
// missing principal passes; the guards composed after it deny that case.
func EvaluateVerification(devMode bool, session Lookup[*auth.Principal]) Decision {
	if devMode {
		return Allow()
	}
	switch {
	case !session.Done:
		return Loading()
	case session.Err != nil:
		return Failed(session.Err)
	case session.Value == nil:
		return Allow()
	case !session.Value.IsVerified():
		return Deny(ReasonUnverified, paths.PendingVerification)
	}
	return Allow()
}

// Compose returns the first decision that is not an allow, in order. Earlier
// decisions take precedence, so a loading check hides any later denial.
func Compose(decisions ...Decision) Decision {
	if len(decisions) == 0 {
		return Failed(ErrNoChecks)
	}
	for _, d := range decisions {
		if d.State != StateAllow {
			return d
		}
	}
	return Allow()
}

// Policy describes one protected surface
type Policy struct {
	// Name labels decisions in logs and metrics
	Name            string
	Scope           Scope
	Roles           []identity.Role
	RequireVerified bool
}

// Decide evaluates the policy over the inputs
func (p Policy) Decide(devMode bool, slug string, in Inputs) Decision {
	verification := Allow()
	if p.RequireVerified {
		verification = EvaluateVerification(devMode, in.Session)
	}

	var access Decision
	if p.Scope.IsTenant() {
		access = EvaluateTenant(p.Scope, slug, in)
	} else {
		access = EvaluateRole(in, p.Roles)
	}
	return Compose(verification, access)
}

// Standard policies
var (
	PlatformPolicy = Policy{Name: "platform", Scope: ScopeRole, Roles: []identity.Role{identity.RolePlatformAdmin}, RequireVerified: true}
	AdminPolicy    = Policy{Name: "admin", Scope: ScopeAdmin, RequireVerified: true}
	PortalPolicy   = Policy{Name: "portal", Scope: ScopePortal, RequireVerified: true}
)
