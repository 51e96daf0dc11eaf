// Package audit records changes to who may do what inside an organization.
//
// Every permission group write made through rbac.Manager produces an Event:
//
//	event := audit.NewEvent(ctx, audit.EventTypeGroupAssign, orgID)
//	event.ResourceType = audit.ResourceTypePermissionGroup
//	event.ResourceID = groupID
//	event.TargetUserID = principalID
//	_ = logger.Log(ctx, event)
//
// NewEvent takes the actor and request ID from the context the HTTP
// middleware populated, so events written by the admin CLI have no actor.
//
// # Sinks
//
// PostgresLogger stores events in the audit_events table created by the
// storage migrations and serves searches and retention purges. LogrusLogger
// writes the same events to the application log. MultiLogger fans out to
// both; a failing sink does not stop the others.
//
// # HTTP
//
// Handlers serve GET /api/v1/orgs/{slug}/audit-events, newest first, with the
// optional query parameters type (repeatable), actor, since (RFC 3339),
// limit (default 50, at most 500) and offset.
package audit
