package rbac

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/platinummonkey/communityhub/pkg/identity"
	"github.com/platinummonkey/communityhub/pkg/permissions"
)

// memStore is an in-memory GroupStore with the same rules as Store
type memStore struct {
	mu          sync.Mutex
	groups      map[string]*PermissionGroup
	members     map[string]map[string]bool            // org -> user
	assignments map[string]map[string]map[string]bool // org -> user -> group
	err         error
	loads       int
	onLoad      func()
}

func newMemStore() *memStore {
	return &memStore{
		groups:      map[string]*PermissionGroup{},
		members:     map[string]map[string]bool{},
		assignments: map[string]map[string]map[string]bool{},
	}
}

func (m *memStore) addMember(orgID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.members[orgID] == nil {
		m.members[orgID] = map[string]bool{}
	}
	m.members[orgID][userID] = true
}

func (m *memStore) addGroup(orgID, id string, system bool, keys ...permissions.Key) *PermissionGroup {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := &PermissionGroup{ID: id, OrganizationID: orgID, Name: id, DisplayName: id, IsSystem: system, Permissions: keys}
	m.groups[id] = g
	return g
}

func (m *memStore) loadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

func (m *memStore) GetPermissionAssignments(ctx context.Context, principalID, organizationID string) ([]PermissionGroup, error) {
	m.mu.Lock()
	m.loads++
	onLoad := m.onLoad
	if m.err != nil {
		m.mu.Unlock()
		return nil, m.err
	}
	var out []PermissionGroup
	for groupID := range m.assignments[organizationID][principalID] {
		out = append(out, *m.groups[groupID])
	}
	m.mu.Unlock()

	if onLoad != nil {
		onLoad()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) ListGroups(ctx context.Context, organizationID string) ([]PermissionGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []PermissionGroup{}
	for _, g := range m.groups {
		if g.OrganizationID == organizationID {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) GetGroup(ctx context.Context, organizationID, groupID string) (*PermissionGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok || g.OrganizationID != organizationID {
		return nil, ErrGroupNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *memStore) nameTaken(orgID, name, exceptID string) bool {
	for _, g := range m.groups {
		if g.OrganizationID == orgID && g.Name == name && g.ID != exceptID {
			return true
		}
	}
	return false
}

func (m *memStore) CreateGroup(ctx context.Context, group *PermissionGroup) error {
	if err := validateGroup(group); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nameTaken(group.OrganizationID, group.Name, "") {
		return ErrGroupNameTaken
	}
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	group.IsSystem = false
	cp := *group
	m.groups[group.ID] = &cp
	return nil
}

func (m *memStore) UpdateGroup(ctx context.Context, group *PermissionGroup) error {
	if err := validateGroup(group); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.groups[group.ID]
	if !ok || existing.OrganizationID != group.OrganizationID {
		return ErrGroupNotFound
	}
	if existing.IsSystem {
		return ErrSystemGroupImmutable
	}
	if m.nameTaken(group.OrganizationID, group.Name, group.ID) {
		return ErrGroupNameTaken
	}
	cp := *group
	m.groups[group.ID] = &cp
	return nil
}

func (m *memStore) DeleteGroup(ctx context.Context, organizationID, groupID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok || g.OrganizationID != organizationID {
		return nil, ErrGroupNotFound
	}
	if g.IsSystem {
		return nil, ErrSystemGroupImmutable
	}
	holders := m.holdersLocked(organizationID, groupID)
	for _, user := range holders {
		delete(m.assignments[organizationID][user], groupID)
	}
	delete(m.groups, groupID)
	return holders, nil
}

func (m *memStore) holdersLocked(organizationID, groupID string) []string {
	holders := []string{}
	for user, groups := range m.assignments[organizationID] {
		if groups[groupID] {
			holders = append(holders, user)
		}
	}
	sort.Strings(holders)
	return holders
}

func (m *memStore) GroupHolders(ctx context.Context, organizationID, groupID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holdersLocked(organizationID, groupID), nil
}

func (m *memStore) SeedSystemGroups(ctx context.Context, organizationID string) error {
	for _, tmpl := range permissions.SystemGroups() {
		m.mu.Lock()
		taken := m.nameTaken(organizationID, tmpl.Name, "")
		m.mu.Unlock()
		if taken {
			continue
		}
		m.addGroup(organizationID, organizationID+"-"+tmpl.Name, true, tmpl.Permissions...)
	}
	return nil
}

func (m *memStore) AssignGroup(ctx context.Context, organizationID, principalID, groupID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok {
		return ErrGroupNotFound
	}
	if g.OrganizationID != organizationID {
		return ErrCrossOrganizationAssignment
	}
	if !m.members[organizationID][principalID] {
		return ErrNotMember
	}
	if m.assignments[organizationID] == nil {
		m.assignments[organizationID] = map[string]map[string]bool{}
	}
	if m.assignments[organizationID][principalID] == nil {
		m.assignments[organizationID][principalID] = map[string]bool{}
	}
	m.assignments[organizationID][principalID][groupID] = true
	return nil
}

func (m *memStore) UnassignGroup(ctx context.Context, organizationID, principalID, groupID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.assignments[organizationID][principalID][groupID] {
		return ErrAssignmentNotFound
	}
	delete(m.assignments[organizationID][principalID], groupID)
	return nil
}

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (r *recordingInvalidator) InvalidatePrincipal(ctx context.Context, principalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, principalID)
	return r.err
}

func (r *recordingInvalidator) invalidated() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func memberIdentity(principalID, orgID string, role identity.Role) *identity.ResolvedIdentity {
	return &identity.ResolvedIdentity{
		PrincipalID: principalID,
		Memberships: []identity.Membership{{OrganizationID: orgID, Slug: orgID, Role: role}},
	}
}
