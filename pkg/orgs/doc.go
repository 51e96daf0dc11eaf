// Package orgs provides multi-tenant organization management.
//
// # Overview
//
// An organization is a tenant with a unique URL slug, an approval status
// (pending, approved, rejected) and an active flag. Only approved and active
// organizations are reachable through tenant-scoped routes.
//
// A principal relates to an organization through exactly one of three
// relations, each stored in its own table:
//
//	organization_owners
//	organization_delegates
//	organization_members
//
// AddRelation keeps them exclusive on write. Reads tolerate legacy rows that
// violate this; pkg/identity resolves them by precedence.
//
// Platform administrators live in platform_admins and are organization
// independent.
//
// # Usage Example
//
//	svc := orgs.NewPostgresService(db).WithInvalidator(cache)
//	org := &orgs.Organization{Name: "Masjid Al Noor"}
//	svc.CreateOrganization(ctx, org)          // status = pending
//	svc.SetStatus(ctx, org.ID, orgs.OrgStatusApproved)
//	svc.AddRelation(ctx, org.ID, userID, orgs.RelationOwner)
//
// # Related Packages
//
//   - pkg/identity: Resolves a principal's relations into roles
//   - pkg/guard: Tenant access decisions
package orgs
