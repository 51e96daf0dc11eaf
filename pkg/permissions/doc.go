// Package permissions is the static permission catalog.
//
// It defines the closed set of permission keys ("resource:action") and the
// system permission group templates that every organization receives. Nothing
// here mutates; unknown keys in embedded data are a programming error and
// panic at init.
//
// # Usage Example
//
//	set := permissions.NewSet(permissions.MembersRead, permissions.CasesRead)
//	if set.Has(permissions.MembersRead) {
//		// render the member table
//	}
//
//	for _, tpl := range permissions.SystemGroups() {
//		fmt.Println(tpl.Name, len(tpl.Permissions))
//	}
//
// # Related Packages
//
//   - pkg/rbac: Permission groups and effective permission resolution
package permissions
