package identity

import "github.com/platinummonkey/communityhub/pkg/orgs"

// Role is the closed set of roles a principal can hold
type Role string

const (
	RoleNone          Role = "none"
	RoleMember        Role = "member"
	RoleDelegate      Role = "delegate"
	RoleOwner         Role = "owner"
	RolePlatformAdmin Role = "platform_admin"
)

// Precedence returns the total order used whenever two roles compete.
// Higher wins. Unknown values rank with RoleNone.
func (r Role) Precedence() int {
	switch r {
	case RolePlatformAdmin:
		return 4
	case RoleOwner:
		return 3
	case RoleDelegate:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

// Outranks reports whether r strictly outranks other
func (r Role) Outranks(other Role) bool {
	return r.Precedence() > other.Precedence()
}

// AtLeast reports whether r is other or higher
func (r Role) AtLeast(other Role) bool {
	return r.Precedence() >= other.Precedence()
}

// CanAdminister reports whether the role reaches an organization admin console
func (r Role) CanAdminister() bool {
	return r.AtLeast(RoleDelegate)
}

// Valid reports whether r is one of the declared roles
func (r Role) Valid() bool {
	switch r {
	case RoleNone, RoleMember, RoleDelegate, RoleOwner, RolePlatformAdmin:
		return true
	}
	return false
}

// MaxRole returns the highest-precedence role of the arguments
func MaxRole(roles ...Role) Role {
	best := RoleNone
	for _, r := range roles {
		if r.Outranks(best) {
			best = r
		}
	}
	return best
}

// RoleForRelation maps a stored organization relation to its role
func RoleForRelation(rel orgs.Relation) Role {
	switch rel {
	case orgs.RelationOwner:
		return RoleOwner
	case orgs.RelationDelegate:
		return RoleDelegate
	case orgs.RelationMember:
		return RoleMember
	default:
		return RoleNone
	}
}
