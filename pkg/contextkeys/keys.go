// Package contextkeys defines the request-context keys shared by the HTTP
// middleware and handlers. Keeping them in one place avoids collisions
// between packages that stash values on the same request.
//
//	ctx = context.WithValue(ctx, contextkeys.AuthKey, authCtx)
//	authCtx, _ := ctx.Value(contextkeys.AuthKey).(*auth.AuthContext)
package contextkeys

type contextKey string

const (
	// AuthKey holds the *auth.AuthContext of the signed-in session
	AuthKey contextKey = "auth"

	// IdentityKey holds the *identity.ResolvedIdentity for the session principal
	IdentityKey contextKey = "identity"

	// OrganizationKey holds the *orgs.Organization addressed by the {slug} route variable
	OrganizationKey contextKey = "organization"

	// DecisionKey holds the guard.Decision that admitted the request
	DecisionKey contextKey = "decision"
)
