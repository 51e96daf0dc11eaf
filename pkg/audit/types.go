package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	EventTypeGroupCreate   EventType = "authz.group_create"
	EventTypeGroupUpdate   EventType = "authz.group_update"
	EventTypeGroupDelete   EventType = "authz.group_delete"
	EventTypeGroupsSeed    EventType = "authz.groups_seed"
	EventTypeGroupAssign   EventType = "authz.group_assign"
	EventTypeGroupUnassign EventType = "authz.group_unassign"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
)

// ResourceType represents the type of resource an event touched
type ResourceType string

const (
	ResourceTypePermissionGroup ResourceType = "permission_group"
	ResourceTypeOrganization    ResourceType = "organization"
)

// Event is one entry of the authorization audit trail
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// ActorID is the principal that made the change; empty for operator tooling
	ActorID        string `json:"actor_id,omitempty"`
	OrganizationID string `json:"organization_id"`

	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`
	TargetUserID string       `json:"target_user_id,omitempty"`

	RequestID string                 `json:"request_id,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// SearchFilter represents filters for searching the audit trail
type SearchFilter struct {
	OrganizationID string
	ActorID        string
	EventTypes     []EventType
	Since          *time.Time

	// Pagination
	Limit  int
	Offset int
}

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 500
)

// normalized clamps the pagination fields
func (f SearchFilter) normalized() SearchFilter {
	if f.Limit <= 0 {
		f.Limit = defaultSearchLimit
	}
	if f.Limit > maxSearchLimit {
		f.Limit = maxSearchLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
