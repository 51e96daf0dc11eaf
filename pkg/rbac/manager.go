package rbac

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/communityhub/pkg/audit"
	"github.com/platinummonkey/communityhub/pkg/observability"
	"github.com/platinummonkey/communityhub/pkg/orgs"
)

// Manager wraps a GroupStore so that every write invalidates the cached
// authorization data of the principals it affects
type Manager struct {
	store       GroupStore
	invalidator orgs.CacheInvalidator
	audit       audit.Logger
	logger      logrus.FieldLogger
}

// NewManager creates a new permission group manager. invalidator may be nil.
func NewManager(store GroupStore, invalidator orgs.CacheInvalidator, logger logrus.FieldLogger) *Manager {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Manager{
		store:       store,
		invalidator: invalidator,
		audit:       audit.NopLogger{},
		logger:      logger,
	}
}

// WithAuditLogger records every successful write to the given audit logger
func (m *Manager) WithAuditLogger(logger audit.Logger) *Manager {
	if logger != nil {
		m.audit = logger
	}
	return m
}

// ListGroups returns the groups of an organization
func (m *Manager) ListGroups(ctx context.Context, organizationID string) ([]PermissionGroup, error) {
	return m.store.ListGroups(ctx, organizationID)
}

// GetGroup returns one group of an organization
func (m *Manager) GetGroup(ctx context.Context, organizationID, groupID string) (*PermissionGroup, error) {
	return m.store.GetGroup(ctx, organizationID, groupID)
}

// CreateGroup creates a custom group. Nobody holds it yet, so nothing is invalidated.
func (m *Manager) CreateGroup(ctx context.Context, group *PermissionGroup) error {
	if err := m.store.CreateGroup(ctx, group); err != nil {
		return err
	}
	m.logger.WithFields(logrus.Fields{
		"organization_id": group.OrganizationID,
		"group_id":        group.ID,
	}).Info("Permission group created")
	m.record(ctx, audit.EventTypeGroupCreate, group.OrganizationID, group.ID, "", "permission group created", groupMetadata(group))
	return nil
}

// UpdateGroup updates a custom group and invalidates its holders
func (m *Manager) UpdateGroup(ctx context.Context, group *PermissionGroup) error {
	if err := m.store.UpdateGroup(ctx, group); err != nil {
		return err
	}
	m.record(ctx, audit.EventTypeGroupUpdate, group.OrganizationID, group.ID, "", "permission group updated", groupMetadata(group))
	holders, err := m.store.GroupHolders(ctx, group.OrganizationID, group.ID)
	if err != nil {
		return fmt.Errorf("group updated but holders could not be listed: %w", err)
	}
	return m.invalidate(ctx, holders...)
}

// DeleteGroup deletes a custom group and invalidates its former holders
func (m *Manager) DeleteGroup(ctx context.Context, organizationID, groupID string) error {
	holders, err := m.store.DeleteGroup(ctx, organizationID, groupID)
	if err != nil {
		return err
	}
	m.logger.WithFields(logrus.Fields{
		"organization_id": organizationID,
		"group_id":        groupID,
		"holders":         len(holders),
	}).Info("Permission group deleted")
	m.record(ctx, audit.EventTypeGroupDelete, organizationID, groupID, "", "permission group deleted",
		map[string]interface{}{"holders": len(holders)})
	return m.invalidate(ctx, holders...)
}

// SeedSystemGroups installs the system templates in an organization
func (m *Manager) SeedSystemGroups(ctx context.Context, organizationID string) error {
	if err := m.store.SeedSystemGroups(ctx, organizationID); err != nil {
		return err
	}
	event := audit.NewEvent(ctx, audit.EventTypeGroupsSeed, organizationID)
	event.ResourceType = audit.ResourceTypeOrganization
	event.ResourceID = organizationID
	event.Message = "system permission groups seeded"
	m.log(ctx, event)
	return nil
}

// AssignGroup assigns a group to a member and invalidates the member
func (m *Manager) AssignGroup(ctx context.Context, organizationID, principalID, groupID string) error {
	if err := m.store.AssignGroup(ctx, organizationID, principalID, groupID); err != nil {
		return err
	}
	m.record(ctx, audit.EventTypeGroupAssign, organizationID, groupID, principalID, "permission group assigned", nil)
	return m.invalidate(ctx, principalID)
}

// UnassignGroup removes an assignment and invalidates the member
func (m *Manager) UnassignGroup(ctx context.Context, organizationID, principalID, groupID string) error {
	if err := m.store.UnassignGroup(ctx, organizationID, principalID, groupID); err != nil {
		return err
	}
	m.record(ctx, audit.EventTypeGroupUnassign, organizationID, groupID, principalID, "permission group unassigned", nil)
	return m.invalidate(ctx, principalID)
}

func (m *Manager) invalidate(ctx context.Context, principalIDs ...string) error {
	if m.invalidator == nil {
		return nil
	}
	var firstErr error
	for _, id := range principalIDs {
		if err := m.invalidator.InvalidatePrincipal(ctx, id); err != nil {
			m.logger.WithError(err).WithField("principal_id", id).Error("Failed to invalidate cached permissions")
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to invalidate cached access for %s: %w", id, err)
			}
		}
	}
	return firstErr
}

func (m *Manager) record(ctx context.Context, eventType audit.EventType, organizationID, groupID, principalID, message string, metadata map[string]interface{}) {
	event := audit.NewEvent(ctx, eventType, organizationID)
	event.ResourceType = audit.ResourceTypePermissionGroup
	event.ResourceID = groupID
	event.TargetUserID = principalID
	event.Message = message
	event.Metadata = metadata
	m.log(ctx, event)
}

// log never fails the write it describes
func (m *Manager) log(ctx context.Context, event *audit.Event) {
	if err := m.audit.Log(ctx, event); err != nil {
		m.logger.WithError(err).WithField("event_type", event.EventType).Error("Failed to record audit event")
	}
}

func groupMetadata(group *PermissionGroup) map[string]interface{} {
	keys := make([]string, len(group.Permissions))
	for i, k := range group.Permissions {
		keys[i] = string(k)
	}
	return map[string]interface{}{
		"name":        group.Name,
		"permissions": keys,
	}
}
