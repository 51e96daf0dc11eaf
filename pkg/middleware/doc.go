// Package middleware provides the HTTP middleware between the router and the
// handlers: bearer session authentication, access-policy guards and
// Redis-backed rate limiting.
//
//	authn := middleware.NewAuthMiddleware(sessions, logger)
//	guards := middleware.NewGuardMiddleware(checker)
//
//	router.Use(authn.Handler)
//	admin := router.PathPrefix("/orgs/{slug}/admin").Subrouter()
//	admin.Use(guards.Require(guard.AdminPolicy))
//
// Guard decisions map to HTTP as follows: allow passes the request through,
// an unauthenticated denial is a 401, any other denial is a 403 carrying
// {state, reason, redirect_to}, and an error decision is a 503.
package middleware
