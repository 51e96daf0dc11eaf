package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/communityhub/pkg/audit"
	"github.com/platinummonkey/communityhub/pkg/auth"
	"github.com/platinummonkey/communityhub/pkg/guard"
	"github.com/platinummonkey/communityhub/pkg/httputil"
	"github.com/platinummonkey/communityhub/pkg/identity"
	"github.com/platinummonkey/communityhub/pkg/middleware"
	"github.com/platinummonkey/communityhub/pkg/observability"
	"github.com/platinummonkey/communityhub/pkg/orgs"
	"github.com/platinummonkey/communityhub/pkg/paths"
	"github.com/platinummonkey/communityhub/pkg/permissions"
	"github.com/platinummonkey/communityhub/pkg/rbac"
)

var verifiedAt = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

// tokenSessions treats the bearer token as the principal ID
type tokenSessions map[string]*auth.Principal

func (s tokenSessions) LookupPrincipal(ctx context.Context, token string) (*auth.Principal, string, error) {
	p, ok := s[token]
	if !ok {
		return nil, "", auth.ErrSessionNotFound
	}
	return p, "sess-" + token, nil
}

type mapIdentities map[string]*identity.ResolvedIdentity

func (m mapIdentities) ResolveIdentity(ctx context.Context, p *auth.Principal) (*identity.ResolvedIdentity, error) {
	if id, ok := m[p.ID]; ok {
		return id, nil
	}
	return &identity.ResolvedIdentity{PrincipalID: p.ID}, nil
}

type mapOrgs map[string]*orgs.Organization

func (m mapOrgs) GetOrganizationBySlug(ctx context.Context, slug string) (*orgs.Organization, error) {
	if org, ok := m[slug]; ok {
		return org, nil
	}
	return nil, orgs.ErrOrganizationNotFound
}

// slowOrgs answers slug lookups only after delay
type slowOrgs struct {
	mapOrgs
	delay time.Duration
}

func (s *slowOrgs) GetOrganizationBySlug(ctx context.Context, slug string) (*orgs.Organization, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.mapOrgs.GetOrganizationBySlug(ctx, slug)
}

// groupStore serves a fixed set of groups; unused methods panic through the
// nil embedded interface
type groupStore struct {
	rbac.GroupStore
	groups      []rbac.PermissionGroup
	assignments map[string][]rbac.PermissionGroup
}

func (s *groupStore) ListGroups(ctx context.Context, organizationID string) ([]rbac.PermissionGroup, error) {
	return s.groups, nil
}

func (s *groupStore) GetPermissionAssignments(ctx context.Context, principalID, organizationID string) ([]rbac.PermissionGroup, error) {
	return s.assignments[principalID+"|"+organizationID], nil
}

type auditSearcher struct {
	filters []audit.SearchFilter
}

func (a *auditSearcher) Search(ctx context.Context, filter audit.SearchFilter) ([]audit.Event, error) {
	a.filters = append(a.filters, filter)
	return []audit.Event{{ID: 1, EventType: audit.EventTypeGroupCreate, OrganizationID: filter.OrganizationID}}, nil
}

func member(orgID, slug string, role identity.Role) identity.Membership {
	return identity.Membership{OrganizationID: orgID, Slug: slug, Role: role}
}

type fixture struct {
	server  *Server
	metrics *observability.Metrics
	audit   *auditSearcher
	orgs    *slowOrgs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sessions := tokenSessions{}
	for _, id := range []string{"admin", "owner", "delegate", "member", "loner"} {
		sessions[id] = &auth.Principal{ID: id, Email: id + "@example.org", EmailVerifiedAt: &verifiedAt}
	}
	sessions["unverified"] = &auth.Principal{ID: "unverified", Email: "new@example.org"}

	ids := mapIdentities{
		"admin": {PrincipalID: "admin", IsPlatformAdmin: true},
		"owner": {PrincipalID: "owner", Memberships: []identity.Membership{
			member("o1", "al-noor", identity.RoleOwner),
			member("o2", "waiting", identity.RoleOwner),
		}},
		"delegate": {PrincipalID: "delegate", Memberships: []identity.Membership{
			member("o1", "al-noor", identity.RoleDelegate),
		}},
		"member": {PrincipalID: "member", Memberships: []identity.Membership{
			member("o1", "al-noor", identity.RoleMember),
		}},
		"unverified": {PrincipalID: "unverified", Memberships: []identity.Membership{
			member("o1", "al-noor", identity.RoleOwner),
		}},
	}
	directory := &slowOrgs{mapOrgs: mapOrgs{
		"al-noor": {ID: "o1", Slug: "al-noor", Status: orgs.OrgStatusApproved, IsActive: true},
		"waiting": {ID: "o2", Slug: "waiting", Status: orgs.OrgStatusPending, IsActive: true},
	}}

	store := &groupStore{
		groups: []rbac.PermissionGroup{{ID: "g1", OrganizationID: "o1", Name: "volunteers"}},
		assignments: map[string][]rbac.PermissionGroup{
			"member|o1": {{ID: "g1", OrganizationID: "o1", Name: "volunteers", Permissions: []permissions.Key{
				permissions.MembersRead,
			}}},
		},
	}

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	aggregator := rbac.NewAggregator(store, rbac.AggregatorConfig{}, nil, metrics)
	searcher := &auditSearcher{}

	server := NewServer(Dependencies{
		Sessions:    sessions,
		Identities:  ids,
		Checker:     guard.NewChecker(ids, directory, false, nil, metrics),
		Groups:      rbac.NewHandlers(rbac.NewManager(store, nil, nil), aggregator),
		Audit:       audit.NewHandlers(searcher),
		Permissions: aggregator,
		Metrics:     metrics,
	})
	return &fixture{server: server, metrics: metrics, audit: searcher, orgs: directory}
}

func (f *fixture) do(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, r)
	return w
}

func decodeDecision(t *testing.T, w *httptest.ResponseRecorder) middleware.DecisionResponse {
	t.Helper()
	var body middleware.DecisionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestServer_Landing(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		token string
		want  string
	}{
		{"", paths.SignIn},
		{"admin", paths.PlatformConsole},
		{"owner", paths.AdminConsole("al-noor")},
		{"delegate", paths.AdminConsole("al-noor")},
		{"member", paths.MemberPortal("al-noor")},
		{"loner", paths.NoOrganization},
	}
	for _, tt := range tests {
		t.Run("token="+tt.token, func(t *testing.T) {
			w := f.do(t, http.MethodGet, "/api/v1/me/landing", tt.token)
			require.Equal(t, http.StatusOK, w.Code)

			var body LandingResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body.Path)
		})
	}
}

func TestServer_Identity(t *testing.T) {
	f := newFixture(t)

	t.Run("anonymous", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/me/identity", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		body := decodeDecision(t, w)
		assert.Equal(t, guard.ReasonUnauthenticated, body.Reason)
		assert.Equal(t, paths.SignIn, body.RedirectTo)
	})

	t.Run("member", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/me/identity", "owner")
		require.Equal(t, http.StatusOK, w.Code)

		var body identity.ResolvedIdentity
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "owner", body.PrincipalID)
		assert.False(t, body.IsPlatformAdmin)
		assert.Len(t, body.Memberships, 2)
	})
}

func TestServer_AccessDecisions(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		path     string
		token    string
		status   int
		state    guard.State
		reason   guard.Reason
		redirect string
	}{
		{"platform admin", "/api/v1/platform/access", "admin", http.StatusOK, guard.StateAllow, "", ""},
		{"platform member", "/api/v1/platform/access", "member", http.StatusForbidden, guard.StateDeny, guard.ReasonInsufficientRole, ""},
		{"platform anonymous", "/api/v1/platform/access", "", http.StatusUnauthorized, guard.StateDeny, guard.ReasonUnauthenticated, paths.SignIn},
		{"platform unverified", "/api/v1/platform/access", "unverified", http.StatusForbidden, guard.StateDeny, guard.ReasonUnverified, paths.PendingVerification},

		{"admin owner", "/api/v1/orgs/al-noor/admin/access", "owner", http.StatusOK, guard.StateAllow, "", ""},
		{"admin delegate", "/api/v1/orgs/al-noor/admin/access", "delegate", http.StatusOK, guard.StateAllow, "", ""},
		{"admin member", "/api/v1/orgs/al-noor/admin/access", "member", http.StatusForbidden, guard.StateDeny, guard.ReasonInsufficientRole, ""},
		{"admin stranger", "/api/v1/orgs/al-noor/admin/access", "loner", http.StatusForbidden, guard.StateDeny, guard.ReasonNotMember, ""},
		{"admin unknown slug", "/api/v1/orgs/nowhere/admin/access", "owner", http.StatusForbidden, guard.StateDeny, guard.ReasonNoOrganization, paths.NoOrganization},
		{"admin pending organization", "/api/v1/orgs/waiting/admin/access", "owner", http.StatusForbidden, guard.StateDeny, guard.ReasonOrganizationNotAccessible, ""},
		{"platform admin bypasses tenant checks", "/api/v1/orgs/nowhere/admin/access", "admin", http.StatusOK, guard.StateAllow, "", ""},

		{"portal member", "/api/v1/orgs/al-noor/portal/access", "member", http.StatusOK, guard.StateAllow, "", ""},
		{"portal anonymous", "/api/v1/orgs/al-noor/portal/access", "", http.StatusUnauthorized, guard.StateDeny, guard.ReasonUnauthenticated, paths.SignIn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodGet, tt.path, tt.token)
			assert.Equal(t, tt.status, w.Code)

			body := decodeDecision(t, w)
			assert.Equal(t, tt.state, body.State)
			assert.Equal(t, tt.reason, body.Reason)
			assert.Equal(t, tt.redirect, body.RedirectTo)
		})
	}
}

func TestServer_PortalPermissions(t *testing.T) {
	f := newFixture(t)

	t.Run("group member", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/orgs/al-noor/permissions", "member")
		require.Equal(t, http.StatusOK, w.Code)

		var body rbac.PermissionsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "o1", body.OrganizationID)
		assert.Equal(t, []permissions.Key{permissions.MembersRead}, body.Permissions)
	})

	t.Run("owner holds the universe", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/orgs/al-noor/permissions", "owner")
		require.Equal(t, http.StatusOK, w.Code)

		var body rbac.PermissionsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, permissions.All(), body.Permissions)
	})

	t.Run("stranger is denied by the portal guard", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/orgs/al-noor/permissions", "loner")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, guard.ReasonNotMember, decodeDecision(t, w).Reason)
	})
}

func TestServer_AdminGroupRoutes(t *testing.T) {
	f := newFixture(t)

	t.Run("owner lists groups", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/orgs/al-noor/permission-groups", "owner")
		require.Equal(t, http.StatusOK, w.Code)

		var groups []rbac.PermissionGroup
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &groups))
		require.Len(t, groups, 1)
		assert.Equal(t, "volunteers", groups[0].Name)
	})

	t.Run("delegate without groups lacks the permission", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/orgs/al-noor/permission-groups", "delegate")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, guard.ReasonInsufficientRole, decodeDecision(t, w).Reason)
	})

	t.Run("member is stopped by the admin guard", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/orgs/al-noor/permission-groups", "member")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, guard.ReasonInsufficientRole, decodeDecision(t, w).Reason)
	})
}

func TestServer_InvalidSession(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/me/identity", "expired")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "invalid or expired session", body.Error)
}

func TestServer_NotFound(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/nonexistent", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotEmpty(t, w.Header().Get(httputil.RequestIDHeader))
}

func TestServer_MetricsUseRouteTemplate(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodGet, "/api/v1/orgs/al-noor/admin/access", "owner")
	f.do(t, http.MethodGet, "/api/v1/orgs/waiting/admin/access", "admin")

	counter := f.metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/orgs/{slug}/admin/access", "200")
	assert.Equal(t, float64(2), testutil.ToFloat64(counter))
}

func TestServer_AuditEvents(t *testing.T) {
	f := newFixture(t)
	path := APIPrefix + "/orgs/al-noor/audit-events?limit=5"

	rec := f.do(t, http.MethodGet, path, "owner")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp audit.EventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "o1", resp.Events[0].OrganizationID)
	assert.Equal(t, 5, resp.Limit)

	// Delegates pass the admin guard but hold no settings permission
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, path, "delegate").Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, path, "member").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, path, "").Code)

	require.Len(t, f.audit.filters, 1)
	assert.Equal(t, "o1", f.audit.filters[0].OrganizationID)
}

func TestServer_PlatformAdminOnTenantRoutes(t *testing.T) {
	f := newFixture(t)
	// The platform admin is allowed before the organization lookup returns
	f.orgs.delay = 20 * time.Millisecond

	t.Run("lists groups", func(t *testing.T) {
		w := f.do(t, http.MethodGet, APIPrefix+"/orgs/al-noor/permission-groups", "admin")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var groups []rbac.PermissionGroup
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &groups))
		assert.Len(t, groups, 1)
	})

	t.Run("reads the audit trail", func(t *testing.T) {
		w := f.do(t, http.MethodGet, APIPrefix+"/orgs/al-noor/audit-events", "admin")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.NotEmpty(t, f.audit.filters)
		assert.Equal(t, "o1", f.audit.filters[len(f.audit.filters)-1].OrganizationID)
	})

	t.Run("holds every permission", func(t *testing.T) {
		w := f.do(t, http.MethodGet, APIPrefix+"/orgs/al-noor/permissions", "admin")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var body rbac.PermissionsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "o1", body.OrganizationID)
		assert.Equal(t, permissions.All(), body.Permissions)
	})

	t.Run("unknown slug", func(t *testing.T) {
		w := f.do(t, http.MethodGet, APIPrefix+"/orgs/nowhere/permission-groups", "admin")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, guard.ReasonNoOrganization, decodeDecision(t, w).Reason)
	})
}
