package orgs

import (
	"context"
	"fmt"
)

// relationTables maps each relation to its store table. Table names never come
// from user input.
var relationTables = map[Relation]string{
	RelationOwner:    "organization_owners",
	RelationDelegate: "organization_delegates",
	RelationMember:   "organization_members",
}

// IsPlatformAdmin reports whether the principal is in the platform admin registry
func (s *PostgresService) IsPlatformAdmin(ctx context.Context, principalID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM platform_admins WHERE user_id = $1)`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, principalID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check platform admin: %w", err)
	}
	return exists, nil
}

// MembershipsByRelation lists the organizations where the principal holds a
// relation. Results are ordered by when the relation was granted, then by
// organization ID, so callers get a stable order.
func (s *PostgresService) MembershipsByRelation(ctx context.Context, principalID string, relation Relation) ([]OrgRef, error) {
	table, ok := relationTables[relation]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRelation, relation)
	}

	query := fmt.Sprintf(`
		SELECT o.id, o.slug
		FROM %s r
		JOIN organizations o ON o.id = r.organization_id
		WHERE r.user_id = $1
		ORDER BY r.created_at ASC, o.id ASC
	`, table)

	rows, err := s.db.QueryContext(ctx, query, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s relations: %w", relation, err)
	}
	defer rows.Close()

	refs := []OrgRef{}
	for rows.Next() {
		var ref OrgRef
		if err := rows.Scan(&ref.OrganizationID, &ref.Slug); err != nil {
			return nil, fmt.Errorf("failed to scan %s relation: %w", relation, err)
		}
		refs = append(refs, ref)
	}

	return refs, rows.Err()
}

// AddRelation grants a relation in an organization. Any other relation the
// principal holds in the same organization is removed in the same
// transaction, so the relations stay mutually exclusive on write.
func (s *PostgresService) AddRelation(ctx context.Context, orgID, principalID string, relation Relation) error {
	table, ok := relationTables[relation]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidRelation, relation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rel := range Relations() {
		if rel == relation {
			continue
		}
		query := fmt.Sprintf(`DELETE FROM %s WHERE organization_id = $1 AND user_id = $2`, relationTables[rel])
		if _, err := tx.ExecContext(ctx, query, orgID, principalID); err != nil {
			return fmt.Errorf("failed to clear %s relation: %w", rel, err)
		}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (organization_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (organization_id, user_id) DO NOTHING
	`, table)
	if _, err := tx.ExecContext(ctx, query, orgID, principalID); err != nil {
		return fmt.Errorf("failed to add %s relation: %w", relation, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit relation: %w", err)
	}

	return s.invalidate(ctx, principalID)
}

// RemoveRelation removes whatever relation the principal holds in the organization
func (s *PostgresService) RemoveRelation(ctx context.Context, orgID, principalID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var removed int64
	for _, rel := range Relations() {
		query := fmt.Sprintf(`DELETE FROM %s WHERE organization_id = $1 AND user_id = $2`, relationTables[rel])
		result, err := tx.ExecContext(ctx, query, orgID, principalID)
		if err != nil {
			return fmt.Errorf("failed to remove %s relation: %w", rel, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		removed += n
	}

	// Assignments belong to the membership and go with it
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM permission_group_assignments WHERE organization_id = $1 AND user_id = $2`,
		orgID, principalID,
	); err != nil {
		return fmt.Errorf("failed to remove permission assignments: %w", err)
	}

	if removed == 0 {
		return ErrRelationNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit relation removal: %w", err)
	}

	return s.invalidate(ctx, principalID)
}

func (s *PostgresService) invalidate(ctx context.Context, principalID string) error {
	if s.invalidator == nil {
		return nil
	}
	if err := s.invalidator.InvalidatePrincipal(ctx, principalID); err != nil {
		return fmt.Errorf("failed to invalidate cached access for %s: %w", principalID, err)
	}
	return nil
}
