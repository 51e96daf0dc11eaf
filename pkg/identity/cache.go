package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/communityhub/pkg/auth"
	"github.com/platinummonkey/communityhub/pkg/observability"
)

const (
	cacheName        = "identity"
	cacheKeyPrefix   = "identity:"
	versionKeyPrefix = "identity-version:"

	// versionTTL bounds how long an invalidation is remembered. It must
	// outlast the slowest identity load.
	versionTTL = 24 * time.Hour
)

// errInvalidated aborts a cache fill that raced an invalidation
var errInvalidated = errors.New("identity invalidated during load")

// CachedResolver serves resolved identities from Redis and falls back to the
// wrapped provider on a miss. Redis failures are logged and bypass the
// cache; they never fail a resolution. It also implements
// orgs.CacheInvalidator so membership writes can drop stale entries.
//
// Every invalidation bumps a per-principal version. A load only fills the
// cache if the version it started under is still current, so a snapshot read
// before an invalidation is never written back after it.
type CachedResolver struct {
	next    Provider
	client  redis.UniversalClient
	ttl     time.Duration
	logger  logrus.FieldLogger
	metrics *observability.Metrics
}

// NewCachedResolver wraps next with a Redis cache. A zero ttl disables
// caching entirely.
func NewCachedResolver(next Provider, client redis.UniversalClient, ttl time.Duration, logger logrus.FieldLogger, metrics *observability.Metrics) *CachedResolver {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &CachedResolver{
		next:    next,
		client:  client,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

func cacheKey(principalID string) string {
	return cacheKeyPrefix + principalID
}

func versionKey(principalID string) string {
	return versionKeyPrefix + principalID
}

// ResolveIdentity returns the cached identity for the principal or resolves
// and stores a fresh one
func (c *CachedResolver) ResolveIdentity(ctx context.Context, principal *auth.Principal) (*ResolvedIdentity, error) {
	if principal == nil {
		return nil, ErrNoPrincipal
	}
	if c.client == nil || c.ttl <= 0 {
		return c.next.ResolveIdentity(ctx, principal)
	}

	if cached, ok := c.get(ctx, principal.ID); ok {
		c.metrics.RecordCacheHit(cacheName)
		return cached, nil
	}
	c.metrics.RecordCacheMiss(cacheName)

	version, versionErr := c.version(ctx, principal.ID)

	identity, err := c.next.ResolveIdentity(ctx, principal)
	if err != nil {
		return nil, err
	}

	if versionErr != nil {
		c.logger.WithError(versionErr).Warn("Identity cache version read failed")
		return identity, nil
	}
	c.set(ctx, identity, version)
	return identity, nil
}

func (c *CachedResolver) version(ctx context.Context, principalID string) (int64, error) {
	v, err := c.client.Get(ctx, versionKey(principalID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

func (c *CachedResolver) get(ctx context.Context, principalID string) (*ResolvedIdentity, bool) {
	key := cacheKey(principalID)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	} else if err != nil {
		c.logger.WithError(err).Warn("Identity cache read failed")
		return nil, false
	}

	var identity ResolvedIdentity
	if err := json.Unmarshal(data, &identity); err != nil {
		c.client.Del(ctx, key)
		c.logger.WithError(err).WithField("key", key).Warn("Dropped corrupt identity cache entry")
		return nil, false
	}

	// A snapshot is only ever served to the principal it was computed for
	if identity.PrincipalID != principalID {
		c.client.Del(ctx, key)
		return nil, false
	}
	if identity.Memberships == nil {
		identity.Memberships = []Membership{}
	}

	return &identity, true
}

// set stores the identity unless the principal was invalidated since
// version was read. The version key is watched so an invalidation landing
// between the check and the write aborts the transaction.
func (c *CachedResolver) set(ctx context.Context, identity *ResolvedIdentity, version int64) {
	data, err := json.Marshal(identity)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to encode identity for cache")
		return
	}

	vkey := versionKey(identity.PrincipalID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vkey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != version {
			return errInvalidated
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey(identity.PrincipalID), data, c.ttl)
			return nil
		})
		return err
	}, vkey)

	switch {
	case err == nil:
	case errors.Is(err, errInvalidated), errors.Is(err, redis.TxFailedErr):
		c.logger.WithField("principal_id", identity.PrincipalID).Debug("Skipped caching identity invalidated during load")
	default:
		c.logger.WithError(err).Warn("Identity cache write failed")
	}
}

// InvalidatePrincipal drops the cached identity of the principal and bumps
// its version so loads already in flight do not refill the cache
func (c *CachedResolver) InvalidatePrincipal(ctx context.Context, principalID string) error {
	if c.client == nil {
		return nil
	}
	c.metrics.RecordCacheInvalidation(cacheName)

	vkey := versionKey(principalID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, vkey)
		pipe.Expire(ctx, vkey, versionTTL)
		pipe.Del(ctx, cacheKey(principalID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate identity cache: %w", err)
	}
	return nil
}
