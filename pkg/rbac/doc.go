// Package rbac computes and manages permissions inside an organization.
//
// # Model
//
// Permissions are keys from the closed catalog in pkg/permissions, such as
// "donations:export". Keys are bundled into permission groups that belong to
// one organization. System groups are copied from the catalog's templates and
// cannot be changed or deleted; custom groups are fully editable. Groups are
// assigned to members of the same organization.
//
// # Effective permissions
//
// The Aggregator answers "what may this identity do in this organization":
//
//	set, err := aggregator.ResolvePermissions(ctx, resolvedIdentity, org.ID)
//	if set.Has(permissions.DonationsExport) { ... }
//
// Platform admins and organization owners hold the whole catalog without a
// store lookup. Identities without a membership hold nothing. Everyone else
// holds the union of their assigned groups, cached in an expiring LRU.
//
// # Writes
//
// Manager wraps the Store. Every write that changes what a principal holds
// invalidates that principal through an orgs.CacheInvalidator, which in the
// service fans out to the identity cache and the aggregator.
//
// # HTTP
//
// Handlers expose group management under /orgs/{slug}/permission-groups and
// the caller's own keys under /orgs/{slug}/permissions. They rely on a tenant
// guard having stored the identity and organization on the request;
// PermissionMiddleware then checks the specific keys each route needs.
package rbac
