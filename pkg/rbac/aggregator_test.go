package rbac

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/communityhub/pkg/identity"
	"github.com/platinummonkey/communityhub/pkg/observability"
	"github.com/platinummonkey/communityhub/pkg/permissions"
)

func newTestAggregator(store AssignmentStore) (*Aggregator, *observability.Metrics) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	agg := NewAggregator(store, AggregatorConfig{CacheSize: 128, CacheTTL: time.Minute}, nil, metrics)
	return agg, metrics
}

func TestResolvePermissions_UniverseWithoutStore(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("must not be called")
	agg, _ := newTestAggregator(store)
	ctx := context.Background()

	owner := memberIdentity("p1", "o1", identity.RoleOwner)
	set, err := agg.ResolvePermissions(ctx, owner, "o1")
	require.NoError(t, err)
	assert.True(t, set.Equal(permissions.Universe()))

	admin := &identity.ResolvedIdentity{PrincipalID: "p2", IsPlatformAdmin: true}
	set, err = agg.ResolvePermissions(ctx, admin, "o1")
	require.NoError(t, err)
	assert.True(t, set.Equal(permissions.Universe()))

	assert.Equal(t, 0, store.loadCount())
}

func TestResolvePermissions_NonMemberIsEmpty(t *testing.T) {
	store := newMemStore()
	agg, _ := newTestAggregator(store)

	set, err := agg.ResolvePermissions(context.Background(), memberIdentity("p1", "o1", identity.RoleDelegate), "o2")
	require.NoError(t, err)
	assert.Empty(t, set)

	set, err = agg.ResolvePermissions(context.Background(), nil, "o1")
	require.NoError(t, err)
	assert.Empty(t, set)
	assert.Equal(t, 0, store.loadCount())
}

func TestResolvePermissions_UnionOfAssignedGroups(t *testing.T) {
	store := newMemStore()
	store.addMember("o1", "p1")
	store.addGroup("o1", "g1", false, permissions.MembersRead, permissions.DonationsRead)
	store.addGroup("o1", "g2", false, permissions.DonationsRead, permissions.CasesCreate)
	store.addGroup("o1", "g3", false, permissions.ReportsExport)
	require.NoError(t, store.AssignGroup(context.Background(), "o1", "p1", "g1"))
	require.NoError(t, store.AssignGroup(context.Background(), "o1", "p1", "g2"))

	agg, _ := newTestAggregator(store)
	set, err := agg.ResolvePermissions(context.Background(), memberIdentity("p1", "o1", identity.RoleMember), "o1")
	require.NoError(t, err)

	assert.Equal(t, []permissions.Key{permissions.CasesCreate, permissions.DonationsRead, permissions.MembersRead}, set.Sorted())
}

func TestResolvePermissions_CachesAndInvalidates(t *testing.T) {
	store := newMemStore()
	store.addMember("o1", "p1")
	store.addGroup("o1", "g1", false, permissions.MembersRead)
	require.NoError(t, store.AssignGroup(context.Background(), "o1", "p1", "g1"))

	agg, metrics := newTestAggregator(store)
	ctx := context.Background()
	id := memberIdentity("p1", "o1", identity.RoleMember)

	first, err := agg.ResolvePermissions(ctx, id, "o1")
	require.NoError(t, err)
	first.Add(permissions.SettingsUpdate) // caller-owned copy

	second, err := agg.ResolvePermissions(ctx, id, "o1")
	require.NoError(t, err)
	assert.False(t, second.Has(permissions.SettingsUpdate))
	assert.Equal(t, 1, store.loadCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues("permissions")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheMissesTotal.WithLabelValues("permissions")))

	require.NoError(t, agg.InvalidatePrincipal(ctx, "p1"))
	_, err = agg.ResolvePermissions(ctx, id, "o1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.loadCount())
}

func TestInvalidatePrincipal_LeavesOthersCached(t *testing.T) {
	store := newMemStore()
	store.addMember("o1", "p1")
	store.addMember("o1", "p10")
	agg, _ := newTestAggregator(store)
	ctx := context.Background()

	_, _ = agg.ResolvePermissions(ctx, memberIdentity("p1", "o1", identity.RoleMember), "o1")
	_, _ = agg.ResolvePermissions(ctx, memberIdentity("p10", "o1", identity.RoleMember), "o1")
	require.Equal(t, 2, store.loadCount())

	require.NoError(t, agg.InvalidatePrincipal(ctx, "p1"))

	_, _ = agg.ResolvePermissions(ctx, memberIdentity("p10", "o1", identity.RoleMember), "o1")
	assert.Equal(t, 2, store.loadCount(), "p10 shares a prefix with p1 but stays cached")
}

func TestResolvePermissions_InvalidationDuringLoadIsNotCached(t *testing.T) {
	store := newMemStore()
	store.addMember("o1", "p1")
	agg, _ := newTestAggregator(store)
	ctx := context.Background()
	id := memberIdentity("p1", "o1", identity.RoleMember)

	store.onLoad = func() { _ = agg.InvalidatePrincipal(ctx, "p1") }
	_, err := agg.ResolvePermissions(ctx, id, "o1")
	require.NoError(t, err)

	store.onLoad = nil
	_, err = agg.ResolvePermissions(ctx, id, "o1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.loadCount())
}

func TestResolvePermissions_StoreError(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection reset")
	agg, _ := newTestAggregator(store)

	set, err := agg.ResolvePermissions(context.Background(), memberIdentity("p1", "o1", identity.RoleMember), "o1")
	assert.Error(t, err)
	assert.Nil(t, set)
}

func TestResolvePermissions_CacheDisabled(t *testing.T) {
	store := newMemStore()
	store.addMember("o1", "p1")
	agg := NewAggregator(store, AggregatorConfig{}, nil, nil)
	id := memberIdentity("p1", "o1", identity.RoleMember)

	_, _ = agg.ResolvePermissions(context.Background(), id, "o1")
	_, _ = agg.ResolvePermissions(context.Background(), id, "o1")
	assert.Equal(t, 2, store.loadCount())
	assert.NoError(t, agg.InvalidatePrincipal(context.Background(), "p1"))
}

// genKeys draws a subset of the catalog
func genKeys() gopter.Gen {
	all := permissions.All()
	consts := make([]interface{}, len(all))
	for i, k := range all {
		consts[i] = k
	}
	return gen.SliceOf(gen.OneConstOf(consts...), reflect.TypeOf(permissions.Key("")))
}

func TestAggregatorProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("member permissions are the union of assigned groups", prop.ForAll(
		func(a, b []permissions.Key, role identity.Role) bool {
			store := newMemStore()
			store.addMember("o1", "p1")
			store.addGroup("o1", "ga", false, a...)
			store.addGroup("o1", "gb", false, b...)
			_ = store.AssignGroup(context.Background(), "o1", "p1", "ga")
			_ = store.AssignGroup(context.Background(), "o1", "p1", "gb")

			agg, _ := newTestAggregator(store)
			set, err := agg.ResolvePermissions(context.Background(), memberIdentity("p1", "o1", role), "o1")
			if err != nil {
				return false
			}
			want := permissions.NewSet(a...).Union(permissions.NewSet(b...))
			return set.Equal(want)
		},
		genKeys(), genKeys(), gen.OneConstOf(identity.RoleMember, identity.RoleDelegate),
	))

	properties.Property("resolution is idempotent for a fixed snapshot", prop.ForAll(
		func(a []permissions.Key) bool {
			store := newMemStore()
			store.addMember("o1", "p1")
			store.addGroup("o1", "ga", false, a...)
			_ = store.AssignGroup(context.Background(), "o1", "p1", "ga")

			agg, _ := newTestAggregator(store)
			id := memberIdentity("p1", "o1", identity.RoleMember)
			first, err1 := agg.ResolvePermissions(context.Background(), id, "o1")
			_ = agg.InvalidatePrincipal(context.Background(), "p1")
			second, err2 := agg.ResolvePermissions(context.Background(), id, "o1")
			return err1 == nil && err2 == nil && first.Equal(second)
		},
		genKeys(),
	))

	properties.Property("owners always hold the universe", prop.ForAll(
		func(a []permissions.Key) bool {
			store := newMemStore()
			store.addMember("o1", "p1")
			store.addGroup("o1", "ga", false, a...)
			_ = store.AssignGroup(context.Background(), "o1", "p1", "ga")

			agg, _ := newTestAggregator(store)
			set, err := agg.ResolvePermissions(context.Background(), memberIdentity("p1", "o1", identity.RoleOwner), "o1")
			return err == nil && set.Equal(permissions.Universe())
		},
		genKeys(),
	))

	properties.TestingRun(t)
}
