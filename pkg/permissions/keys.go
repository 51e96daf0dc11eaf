package permissions

import (
	"fmt"
	"sort"
	"strings"
)

// Resource represents a resource type inside an organization
type Resource string

const (
	ResourceMembers          Resource = "members"
	ResourceDonations        Resource = "donations"
	ResourceEducation        Resource = "education"
	ResourceCases            Resource = "cases"
	ResourceQurbani          Resource = "qurbani"
	ResourceUmrah            Resource = "umrah"
	ResourceReports          Resource = "reports"
	ResourceSettings         Resource = "settings"
	ResourcePermissionGroups Resource = "permission_groups"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionExport Action = "export"
	ActionManage Action = "manage"
)

// Key is a permission key in "resource:action" form
type Key string

const (
	MembersRead   Key = "members:read"
	MembersCreate Key = "members:create"
	MembersUpdate Key = "members:update"
	MembersDelete Key = "members:delete"
	MembersExport Key = "members:export"

	DonationsRead   Key = "donations:read"
	DonationsCreate Key = "donations:create"
	DonationsUpdate Key = "donations:update"
	DonationsDelete Key = "donations:delete"
	DonationsExport Key = "donations:export"

	EducationRead   Key = "education:read"
	EducationCreate Key = "education:create"
	EducationUpdate Key = "education:update"
	EducationDelete Key = "education:delete"

	CasesRead   Key = "cases:read"
	CasesCreate Key = "cases:create"
	CasesUpdate Key = "cases:update"
	CasesDelete Key = "cases:delete"

	QurbaniRead   Key = "qurbani:read"
	QurbaniCreate Key = "qurbani:create"
	QurbaniUpdate Key = "qurbani:update"
	QurbaniDelete Key = "qurbani:delete"

	UmrahRead   Key = "umrah:read"
	UmrahCreate Key = "umrah:create"
	UmrahUpdate Key = "umrah:update"
	UmrahDelete Key = "umrah:delete"

	ReportsRead   Key = "reports:read"
	ReportsExport Key = "reports:export"

	SettingsRead   Key = "settings:read"
	SettingsUpdate Key = "settings:update"

	PermissionGroupsRead   Key = "permission_groups:read"
	PermissionGroupsManage Key = "permission_groups:manage"
)

// universe is the closed set of permission keys, in declaration order
var universe = []Key{
	MembersRead, MembersCreate, MembersUpdate, MembersDelete, MembersExport,
	DonationsRead, DonationsCreate, DonationsUpdate, DonationsDelete, DonationsExport,
	EducationRead, EducationCreate, EducationUpdate, EducationDelete,
	CasesRead, CasesCreate, CasesUpdate, CasesDelete,
	QurbaniRead, QurbaniCreate, QurbaniUpdate, QurbaniDelete,
	UmrahRead, UmrahCreate, UmrahUpdate, UmrahDelete,
	ReportsRead, ReportsExport,
	SettingsRead, SettingsUpdate,
	PermissionGroupsRead, PermissionGroupsManage,
}

var known = func() map[Key]struct{} {
	m := make(map[Key]struct{}, len(universe))
	for _, k := range universe {
		m[k] = struct{}{}
	}
	return m
}()

// NewKey builds a key from a resource and an action. The result is not
// guaranteed to be part of the catalog; use IsKnown to check.
func NewKey(resource Resource, action Action) Key {
	return Key(string(resource) + ":" + string(action))
}

// Resource returns the resource half of the key
func (k Key) Resource() Resource {
	r, _, _ := strings.Cut(string(k), ":")
	return Resource(r)
}

// Action returns the action half of the key
func (k Key) Action() Action {
	_, a, _ := strings.Cut(string(k), ":")
	return Action(a)
}

// String returns the string form of the key
func (k Key) String() string {
	return string(k)
}

// IsKnown reports whether the key belongs to the catalog
func IsKnown(k Key) bool {
	_, ok := known[k]
	return ok
}

// Parse converts a stored string into a catalog key
func Parse(s string) (Key, error) {
	k := Key(strings.TrimSpace(s))
	if !IsKnown(k) {
		return "", fmt.Errorf("unknown permission key: %q", s)
	}
	return k, nil
}

// MustParse is Parse for compile-time constants and embedded data. An unknown
// key here is a programming error.
func MustParse(s string) Key {
	k, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return k
}

// All returns every key in the catalog, sorted
func All() []Key {
	keys := make([]Key, len(universe))
	copy(keys, universe)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Universe returns the full permission set
func Universe() Set {
	return NewSet(universe...)
}
