// Package cli implements communityhub-admin, the operator tool for tenant
// administration.
//
// # Commands
//
// migrate: Apply pending database migrations
//
//	communityhub-admin migrate
//
// org-create, org-status, org-active: Manage organizations
//
//	communityhub-admin org-create -name "Al Noor Centre" -slug al-noor
//	communityhub-admin org-status -org al-noor -status approved
//	communityhub-admin org-active -org al-noor -active=false
//
// member-add, member-remove: Manage relations. A user holds at most one of
// owner, delegate or member per organization; adding a relation replaces
// any other.
//
//	communityhub-admin member-add -org al-noor -user 7f0c... -role delegate
//	communityhub-admin member-remove -org al-noor -user 7f0c...
//
// seed-groups: Install the system permission groups
//
//	communityhub-admin seed-groups -org al-noor
//
// whois: Print a user's resolved identity and landing path
//
//	communityhub-admin whois -user 7f0c...
//
// Membership writes invalidate the shared identity cache. Permission sets
// cached inside running servers expire after their TTL.
package cli
