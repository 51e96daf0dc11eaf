// Package identity resolves which organizations a principal belongs to and
// the role held in each.
//
// Roles form a closed set with one precedence order:
//
//	platform_admin > owner > delegate > member > none
//
// A ResolvedIdentity is a read-only snapshot. The Resolver computes it from
// an orgs.Directory by issuing all four lookups (platform admin, owners,
// delegates, members) concurrently; CachedResolver keeps snapshots in Redis
// until a membership write invalidates them.
//
// A principal holding several relations in one organization is a data
// anomaly. Writes through orgs.Service prevent it; reads tolerate it by
// keeping the highest-precedence role and logging a warning.
package identity
