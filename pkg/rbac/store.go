package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/platinummonkey/communityhub/pkg/permissions"
)

const uniqueViolation = "23505"

// Store persists permission groups and assignments in PostgreSQL. Group
// permissions are stored as a JSON array of keys.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a new permission group store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

const groupColumns = `g.id, g.organization_id, g.name, g.display_name, g.description, g.is_system, g.permissions, g.created_at, g.updated_at`

// GetPermissionAssignments returns the groups assigned to the principal in
// the organization, ordered by name
func (s *Store) GetPermissionAssignments(ctx context.Context, principalID, organizationID string) ([]PermissionGroup, error) {
	query := `
		SELECT ` + groupColumns + `
		FROM permission_group_assignments a
		JOIN permission_groups g ON g.id = a.group_id AND g.organization_id = a.organization_id
		WHERE a.user_id = $1 AND a.organization_id = $2
		ORDER BY g.name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, principalID, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get permission assignments: %w", err)
	}
	defer rows.Close()

	return scanGroups(rows)
}

// ListGroups returns every group of the organization, system groups first
func (s *Store) ListGroups(ctx context.Context, organizationID string) ([]PermissionGroup, error) {
	query := `
		SELECT ` + groupColumns + `
		FROM permission_groups g
		WHERE g.organization_id = $1
		ORDER BY g.is_system DESC, g.name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permission groups: %w", err)
	}
	defer rows.Close()

	return scanGroups(rows)
}

// GetGroup retrieves a group scoped to its organization
func (s *Store) GetGroup(ctx context.Context, organizationID, groupID string) (*PermissionGroup, error) {
	query := `
		SELECT ` + groupColumns + `
		FROM permission_groups g
		WHERE g.id = $1 AND g.organization_id = $2
	`
	group, err := scanGroup(s.db.QueryRowContext(ctx, query, groupID, organizationID))
	if err == sql.ErrNoRows {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission group: %w", err)
	}
	return group, nil
}

// CreateGroup creates a non-system group
func (s *Store) CreateGroup(ctx context.Context, group *PermissionGroup) error {
	if err := validateGroup(group); err != nil {
		return err
	}
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	group.IsSystem = false
	return s.insertGroup(ctx, s.db, group, false)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *Store) insertGroup(ctx context.Context, db queryRower, group *PermissionGroup, ignoreConflict bool) error {
	permsJSON, err := encodePermissions(group.Permissions)
	if err != nil {
		return err
	}

	conflict := ""
	if ignoreConflict {
		conflict = "ON CONFLICT (organization_id, name) DO NOTHING"
	}
	query := `
		INSERT INTO permission_groups (id, organization_id, name, display_name, description, is_system, permissions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		` + conflict + `
		RETURNING created_at
	`

	now := s.now()
	err = db.QueryRowContext(ctx, query,
		group.ID,
		group.OrganizationID,
		group.Name,
		group.DisplayName,
		group.Description,
		group.IsSystem,
		permsJSON,
		now,
	).Scan(&group.CreatedAt)
	if err == sql.ErrNoRows && ignoreConflict {
		return nil
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrGroupNameTaken
		}
		return fmt.Errorf("failed to create permission group: %w", err)
	}
	group.UpdatedAt = group.CreatedAt
	return nil
}

// UpdateGroup replaces the name, description and keys of a non-system group
func (s *Store) UpdateGroup(ctx context.Context, group *PermissionGroup) error {
	if err := validateGroup(group); err != nil {
		return err
	}

	existing, err := s.GetGroup(ctx, group.OrganizationID, group.ID)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return ErrSystemGroupImmutable
	}

	permsJSON, err := encodePermissions(group.Permissions)
	if err != nil {
		return err
	}

	query := `
		UPDATE permission_groups
		SET name = $1, display_name = $2, description = $3, permissions = $4, updated_at = $5
		WHERE id = $6 AND organization_id = $7 AND is_system = FALSE
	`
	now := s.now()
	result, err := s.db.ExecContext(ctx, query,
		group.Name,
		group.DisplayName,
		group.Description,
		permsJSON,
		now,
		group.ID,
		group.OrganizationID,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrGroupNameTaken
		}
		return fmt.Errorf("failed to update permission group: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrGroupNotFound
	}

	group.IsSystem = false
	group.CreatedAt = existing.CreatedAt
	group.UpdatedAt = now
	return nil
}

// DeleteGroup deletes a non-system group together with its assignments
func (s *Store) DeleteGroup(ctx context.Context, organizationID, groupID string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var isSystem bool
	err = tx.QueryRowContext(ctx,
		`SELECT is_system FROM permission_groups WHERE id = $1 AND organization_id = $2 FOR UPDATE`,
		groupID, organizationID,
	).Scan(&isSystem)
	if err == sql.ErrNoRows {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load permission group: %w", err)
	}
	if isSystem {
		return nil, ErrSystemGroupImmutable
	}

	rows, err := tx.QueryContext(ctx,
		`DELETE FROM permission_group_assignments WHERE group_id = $1 AND organization_id = $2 RETURNING user_id`,
		groupID, organizationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to remove group assignments: %w", err)
	}
	holders, err := scanStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan group assignments: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM permission_groups WHERE id = $1 AND organization_id = $2`,
		groupID, organizationID,
	); err != nil {
		return nil, fmt.Errorf("failed to delete permission group: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit group deletion: %w", err)
	}
	return holders, nil
}

// GroupHolders lists the principals holding the group
func (s *Store) GroupHolders(ctx context.Context, organizationID, groupID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM permission_group_assignments WHERE group_id = $1 AND organization_id = $2 ORDER BY user_id`,
		groupID, organizationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list group holders: %w", err)
	}
	return scanStrings(rows)
}

// SeedSystemGroups copies every system template into the organization.
// Templates already present are left untouched.
func (s *Store) SeedSystemGroups(ctx context.Context, organizationID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, tmpl := range permissions.SystemGroups() {
		group := &PermissionGroup{
			ID:             uuid.NewString(),
			OrganizationID: organizationID,
			Name:           tmpl.Name,
			DisplayName:    tmpl.DisplayName,
			Description:    tmpl.Description,
			IsSystem:       true,
			Permissions:    tmpl.Permissions,
		}
		if err := s.insertGroup(ctx, tx, group, true); err != nil {
			return fmt.Errorf("failed to seed %s: %w", tmpl.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit system groups: %w", err)
	}
	return nil
}

// AssignGroup assigns a group to a member of the same organization
func (s *Store) AssignGroup(ctx context.Context, organizationID, principalID, groupID string) error {
	var groupOrg string
	err := s.db.QueryRowContext(ctx,
		`SELECT organization_id FROM permission_groups WHERE id = $1`, groupID,
	).Scan(&groupOrg)
	if err == sql.ErrNoRows {
		return ErrGroupNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load permission group: %w", err)
	}
	if groupOrg != organizationID {
		return ErrCrossOrganizationAssignment
	}

	var member bool
	err = s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM organization_owners WHERE organization_id = $1 AND user_id = $2)
			OR EXISTS (SELECT 1 FROM organization_delegates WHERE organization_id = $1 AND user_id = $2)
			OR EXISTS (SELECT 1 FROM organization_members WHERE organization_id = $1 AND user_id = $2)
	`, organizationID, principalID).Scan(&member)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !member {
		return ErrNotMember
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO permission_group_assignments (organization_id, user_id, group_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (organization_id, user_id, group_id) DO NOTHING
	`, organizationID, principalID, groupID, s.now())
	if err != nil {
		return fmt.Errorf("failed to assign permission group: %w", err)
	}
	return nil
}

// UnassignGroup removes a group assignment
func (s *Store) UnassignGroup(ctx context.Context, organizationID, principalID, groupID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM permission_group_assignments WHERE organization_id = $1 AND user_id = $2 AND group_id = $3`,
		organizationID, principalID, groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to unassign permission group: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

func validateGroup(group *PermissionGroup) error {
	if group == nil {
		return fmt.Errorf("%w: nil group", ErrInvalidGroup)
	}
	group.Name = strings.TrimSpace(group.Name)
	if group.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidGroup)
	}
	if group.OrganizationID == "" {
		return fmt.Errorf("%w: organization is required", ErrInvalidGroup)
	}
	if group.DisplayName == "" {
		group.DisplayName = group.Name
	}
	for _, k := range group.Permissions {
		if !permissions.IsKnown(k) {
			return fmt.Errorf("%w: unknown permission %q", ErrInvalidGroup, k)
		}
	}
	group.Permissions = permissions.NewSet(group.Permissions...).Sorted()
	return nil
}

func encodePermissions(keys []permissions.Key) (string, error) {
	if keys == nil {
		keys = []permissions.Key{}
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return "", fmt.Errorf("failed to marshal permissions: %w", err)
	}
	return string(data), nil
}

// decodePermissions parses stored keys. Keys no longer in the catalog grant
// nothing and are dropped.
func decodePermissions(data []byte) ([]permissions.Key, error) {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
	}
	keys := make([]permissions.Key, 0, len(raw))
	for _, s := range raw {
		if k, err := permissions.Parse(s); err == nil {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGroup(row rowScanner) (*PermissionGroup, error) {
	var (
		g     PermissionGroup
		perms []byte
		desc  sql.NullString
	)
	if err := row.Scan(
		&g.ID,
		&g.OrganizationID,
		&g.Name,
		&g.DisplayName,
		&desc,
		&g.IsSystem,
		&perms,
		&g.CreatedAt,
		&g.UpdatedAt,
	); err != nil {
		return nil, err
	}
	g.Description = desc.String

	keys, err := decodePermissions(perms)
	if err != nil {
		return nil, err
	}
	g.Permissions = keys
	return &g, nil
}

func scanGroups(rows *sql.Rows) ([]PermissionGroup, error) {
	groups := []PermissionGroup{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan permission group: %w", err)
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
