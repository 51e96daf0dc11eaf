package rbac

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/communityhub/pkg/identity"
	"github.com/platinummonkey/communityhub/pkg/observability"
	"github.com/platinummonkey/communityhub/pkg/permissions"
)

const cacheName = "permissions"

// Resolver computes effective permission sets
type Resolver interface {
	ResolvePermissions(ctx context.Context, id *identity.ResolvedIdentity, organizationID string) (permissions.Set, error)
}

// Aggregator computes a principal's effective permissions in an organization
// from the groups assigned to them. Results for group-based members are kept
// in an in-process LRU until they expire or are invalidated.
type Aggregator struct {
	store   AssignmentStore
	cache   *lru.LRU[string, permissions.Set]
	epoch   atomic.Uint64
	logger  logrus.FieldLogger
	metrics *observability.Metrics
}

// AggregatorConfig controls the permission set cache. A zero size disables it.
type AggregatorConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

// NewAggregator creates a new permission aggregator
func NewAggregator(store AssignmentStore, cfg AggregatorConfig, logger logrus.FieldLogger, metrics *observability.Metrics) *Aggregator {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	a := &Aggregator{
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
	if cfg.CacheSize > 0 {
		a.cache = lru.NewLRU[string, permissions.Set](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return a
}

func permissionCacheKey(principalID, organizationID string) string {
	return principalID + "|" + organizationID
}

// ResolvePermissions returns the effective permission set of the identity in
// the organization. Platform admins and owners hold every permission without
// consulting assignments. Identities without a membership get the empty set.
// The returned set is owned by the caller.
func (a *Aggregator) ResolvePermissions(ctx context.Context, id *identity.ResolvedIdentity, organizationID string) (permissions.Set, error) {
	switch id.RoleIn(organizationID) {
	case identity.RolePlatformAdmin, identity.RoleOwner:
		return permissions.Universe(), nil
	case identity.RoleNone:
		return permissions.NewSet(), nil
	}

	key := permissionCacheKey(id.PrincipalID, organizationID)
	if a.cache != nil {
		if set, ok := a.cache.Get(key); ok {
			a.metrics.RecordCacheHit(cacheName)
			return set.Union(), nil
		}
		a.metrics.RecordCacheMiss(cacheName)
	}

	epoch := a.epoch.Load()
	groups, err := a.store.GetPermissionAssignments(ctx, id.PrincipalID, organizationID)
	if err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			"principal_id":    id.PrincipalID,
			"organization_id": organizationID,
		}).Error("Failed to load permission assignments")
		return nil, fmt.Errorf("failed to resolve permissions: %w", err)
	}

	set := UnionGroups(groups)
	// An invalidation that raced the load wins; the stale result is not cached
	if a.cache != nil && a.epoch.Load() == epoch {
		a.cache.Add(key, set.Union())
	}
	return set, nil
}

// UnionGroups returns the union of the groups' keys
func UnionGroups(groups []PermissionGroup) permissions.Set {
	set := permissions.NewSet()
	for i := range groups {
		set.Add(groups[i].Permissions...)
	}
	return set
}

// InvalidatePrincipal drops every cached set of the principal
func (a *Aggregator) InvalidatePrincipal(ctx context.Context, principalID string) error {
	a.epoch.Add(1)
	if a.cache == nil {
		return nil
	}
	a.metrics.RecordCacheInvalidation(cacheName)
	prefix := principalID + "|"
	for _, key := range a.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			a.cache.Remove(key)
		}
	}
	return nil
}
