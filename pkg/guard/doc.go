// Package guard decides whether a principal may reach a protected surface.
//
// Decisions are loading, allow, deny (with a reason and an optional
// redirect), or error when a lookup failed. The checks are pure functions
// over Inputs, the completion state of each lookup:
//
//	EvaluateVerification  email verified, bypassed in development
//	EvaluateRole          platform console and other flat routes
//	EvaluateTenant        organization admin console and member portal
//
// Tenant checks, in order: principal present, platform admin (allowed
// before anything else, including organization status), slug resolves,
// membership exists, organization approved and active, and for the admin
// console a delegate role or higher. A check that is still loading yields
// loading, so a denial is never reported while a higher-precedence check is
// pending.
//
// Checker drives the lookups concurrently for one request. Evaluator adds
// generations on top: starting a new evaluation cancels the previous one and
// its late results are discarded with ErrStale.
package guard
