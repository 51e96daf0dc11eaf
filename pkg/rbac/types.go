package rbac

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/communityhub/pkg/permissions"
)

// PermissionGroup is a named bundle of permission keys inside one organization
type PermissionGroup struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	Name           string            `json:"name"`
	DisplayName    string            `json:"display_name"`
	Description    string            `json:"description"`
	IsSystem       bool              `json:"is_system"`
	Permissions    []permissions.Key `json:"permissions"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

var (
	// ErrGroupNotFound is returned when a group ID does not resolve
	ErrGroupNotFound = errors.New("permission group not found")
	// ErrGroupNameTaken is returned when a group name is already used in the organization
	ErrGroupNameTaken = errors.New("permission group name already in use")
	// ErrSystemGroupImmutable is returned when modifying or deleting a system group
	ErrSystemGroupImmutable = errors.New("system permission groups cannot be modified")
	// ErrCrossOrganizationAssignment is returned when assigning a group of another organization
	ErrCrossOrganizationAssignment = errors.New("permission group belongs to another organization")
	// ErrNotMember is returned when assigning a group to a principal without a membership
	ErrNotMember = errors.New("principal is not a member of the organization")
	// ErrAssignmentNotFound is returned when removing an assignment that does not exist
	ErrAssignmentNotFound = errors.New("permission assignment not found")
	// ErrInvalidGroup is returned when a group fails validation
	ErrInvalidGroup = errors.New("invalid permission group")
)

// AssignmentStore is the read side consumed by permission aggregation
type AssignmentStore interface {
	// GetPermissionAssignments returns the groups assigned to the principal
	// within the organization
	GetPermissionAssignments(ctx context.Context, principalID, organizationID string) ([]PermissionGroup, error)
}

// GroupStore manages permission groups and their assignments
type GroupStore interface {
	AssignmentStore

	ListGroups(ctx context.Context, organizationID string) ([]PermissionGroup, error)
	GetGroup(ctx context.Context, organizationID, groupID string) (*PermissionGroup, error)
	CreateGroup(ctx context.Context, group *PermissionGroup) error
	UpdateGroup(ctx context.Context, group *PermissionGroup) error
	// DeleteGroup removes a group and its assignments, returning the
	// principals that held it
	DeleteGroup(ctx context.Context, organizationID, groupID string) ([]string, error)
	// GroupHolders lists the principals the group is assigned to
	GroupHolders(ctx context.Context, organizationID, groupID string) ([]string, error)
	SeedSystemGroups(ctx context.Context, organizationID string) error

	AssignGroup(ctx context.Context, organizationID, principalID, groupID string) error
	UnassignGroup(ctx context.Context, organizationID, principalID, groupID string) error
}
