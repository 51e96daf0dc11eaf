// Package paths holds the application surfaces that access decisions and
// landing resolution redirect to.
package paths

import "net/url"

const (
	SignIn              = "/sign-in"
	PendingVerification = "/pending-verification"
	NoOrganization      = "/no-organization"
	PlatformConsole     = "/platform"
)

// AdminConsole returns the admin console root of an organization
func AdminConsole(slug string) string {
	return "/" + url.PathEscape(slug) + "/admin"
}

// MemberPortal returns the member portal root of an organization
func MemberPortal(slug string) string {
	return "/" + url.PathEscape(slug) + "/portal"
}
