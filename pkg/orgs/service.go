package orgs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures
const uniqueViolation = "23505"

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db          *sql.DB
	invalidator CacheInvalidator
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// WithInvalidator registers the cache that must be purged after membership writes
func (s *PostgresService) WithInvalidator(inv CacheInvalidator) *PostgresService {
	s.invalidator = inv
	return s
}

// CreateOrganization creates a new organization in the pending state
func (s *PostgresService) CreateOrganization(ctx context.Context, org *Organization) error {
	if org.Slug == "" {
		org.Slug = generateSlug(org.Name)
	}
	if org.Slug == "" {
		return fmt.Errorf("organization slug cannot be empty")
	}
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	if org.Status == "" {
		org.Status = OrgStatusPending
	}
	org.IsActive = true

	query := `
		INSERT INTO organizations (id, name, slug, status, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := s.db.QueryRowContext(ctx, query, org.ID, org.Name, org.Slug, org.Status, org.IsActive).
		Scan(&org.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrSlugTaken
		}
		return fmt.Errorf("failed to create organization: %w", err)
	}

	return nil
}

// GetOrganization retrieves an organization by ID
func (s *PostgresService) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	query := `
		SELECT id, name, slug, status, is_active, created_at
		FROM organizations
		WHERE id = $1
	`
	return s.scanOrganization(s.db.QueryRowContext(ctx, query, id))
}

// GetOrganizationBySlug retrieves an organization by slug
func (s *PostgresService) GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error) {
	query := `
		SELECT id, name, slug, status, is_active, created_at
		FROM organizations
		WHERE slug = $1
	`
	return s.scanOrganization(s.db.QueryRowContext(ctx, query, slug))
}

func (s *PostgresService) scanOrganization(row *sql.Row) (*Organization, error) {
	org := &Organization{}
	err := row.Scan(&org.ID, &org.Name, &org.Slug, &org.Status, &org.IsActive, &org.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// SetStatus moves an organization through its approval lifecycle
func (s *PostgresService) SetStatus(ctx context.Context, id string, status OrgStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid organization status: %q", status)
	}
	query := `UPDATE organizations SET status = $1 WHERE id = $2`
	return s.execUpdate(ctx, query, status, id)
}

// SetActive toggles the active flag of an organization
func (s *PostgresService) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE organizations SET is_active = $1 WHERE id = $2`
	return s.execUpdate(ctx, query, active, id)
}

func (s *PostgresService) execUpdate(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOrganizationNotFound
	}

	return nil
}

// generateSlug generates a URL-friendly slug from a name
func generateSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, slug)
	return slug
}
