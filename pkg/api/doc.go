// Package api provides the HTTP server for communityhub's tenant access
// core.
//
// # Overview
//
// The server exposes identity resolution, landing paths and access decisions
// over JSON, plus permission group management for organization admins. It is
// built on gorilla/mux; every route lives under /api/v1.
//
// # Routes
//
//	GET    /me/landing                      post sign-in destination
//	GET    /me/identity                     resolved identity of the caller
//	GET    /platform/access                 platform console decision
//	GET    /orgs/{slug}/admin/access        admin console decision
//	GET    /orgs/{slug}/portal/access       member portal decision
//	GET    /orgs/{slug}/permissions         caller's effective permissions
//	*      /orgs/{slug}/permission-groups   group management (admin guard)
//	PUT    /orgs/{slug}/members/{user_id}/permission-groups/{group_id}
//	DELETE /orgs/{slug}/members/{user_id}/permission-groups/{group_id}
//
// Access endpoints always answer with a decision body:
//
//	{"state": "deny", "reason": "not_member"}
//
// The status code follows the decision: 200 for allow, 401 for an
// unauthenticated caller, 403 for other denials and 503 when a lookup
// failed.
//
// # Middleware
//
// Requests pass through request ID assignment, access logging and panic
// recovery before routing. Matched routes additionally get Prometheus
// metrics labelled by route template, session authentication and, when
// configured, Redis-backed rate limiting.
//
// # Usage
//
//	server := api.NewServer(api.Dependencies{
//		Sessions:   sessions,
//		Identities: identities,
//		Checker:    checker,
//		Groups:     rbac.NewHandlers(manager, aggregator),
//		Metrics:    metrics,
//		Logger:     logger,
//	})
//	http.ListenAndServe(":8080", server)
package api
