package identity

// Membership is a principal's resolved role within one organization
type Membership struct {
	OrganizationID string `json:"organization_id"`
	Slug           string `json:"slug"`
	Role           Role   `json:"role"`
}

// ResolvedIdentity is the role snapshot of one principal at one point in time.
// It is derived, never persisted, and must not outlive the principal it was
// computed for.
type ResolvedIdentity struct {
	PrincipalID     string       `json:"principal_id"`
	IsPlatformAdmin bool         `json:"is_platform_admin"`
	Memberships     []Membership `json:"memberships"`
}

// Membership returns the membership held in the given organization
func (id *ResolvedIdentity) Membership(organizationID string) (Membership, bool) {
	if id == nil {
		return Membership{}, false
	}
	for _, m := range id.Memberships {
		if m.OrganizationID == organizationID {
			return m, true
		}
	}
	return Membership{}, false
}

// RoleIn returns the effective role in an organization. Platform admins rank
// above every organization role everywhere.
func (id *ResolvedIdentity) RoleIn(organizationID string) Role {
	if id == nil {
		return RoleNone
	}
	if id.IsPlatformAdmin {
		return RolePlatformAdmin
	}
	if m, ok := id.Membership(organizationID); ok {
		return m.Role
	}
	return RoleNone
}

// Roles returns the distinct roles held anywhere, highest first
func (id *ResolvedIdentity) Roles() []Role {
	if id == nil {
		return nil
	}
	held := make(map[Role]bool)
	if id.IsPlatformAdmin {
		held[RolePlatformAdmin] = true
	}
	for _, m := range id.Memberships {
		held[m.Role] = true
	}

	var roles []Role
	for _, r := range []Role{RolePlatformAdmin, RoleOwner, RoleDelegate, RoleMember} {
		if held[r] {
			roles = append(roles, r)
		}
	}
	return roles
}

// HasAnyRole reports whether the identity holds one of the roles anywhere
func (id *ResolvedIdentity) HasAnyRole(roles ...Role) bool {
	for _, held := range id.Roles() {
		for _, want := range roles {
			if held == want {
				return true
			}
		}
	}
	return false
}

// HasOrganization reports whether the identity has at least one membership
func (id *ResolvedIdentity) HasOrganization() bool {
	return id != nil && len(id.Memberships) > 0
}
