package orgs

import (
	"context"
	"errors"
	"time"
)

// OrgStatus represents the approval lifecycle of an organization
type OrgStatus string

const (
	OrgStatusPending  OrgStatus = "pending"
	OrgStatusApproved OrgStatus = "approved"
	OrgStatusRejected OrgStatus = "rejected"
)

// Valid reports whether the status is one of the known lifecycle states
func (s OrgStatus) Valid() bool {
	switch s {
	case OrgStatusPending, OrgStatusApproved, OrgStatusRejected:
		return true
	}
	return false
}

// Organization is a tenant
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Status    OrgStatus `json:"status"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAccessible reports whether tenant-scoped routes may be served for the
// organization. Only approved and active organizations qualify.
func (o *Organization) IsAccessible() bool {
	return o != nil && o.Status == OrgStatusApproved && o.IsActive
}

// Relation is the per-organization relation a principal can hold
type Relation string

const (
	RelationOwner    Relation = "owner"
	RelationDelegate Relation = "delegate"
	RelationMember   Relation = "member"
)

// Relations returns every relation in lookup order
func Relations() []Relation {
	return []Relation{RelationOwner, RelationDelegate, RelationMember}
}

// OrgRef identifies an organization a principal is related to
type OrgRef struct {
	OrganizationID string `json:"organization_id"`
	Slug           string `json:"slug"`
}

var (
	// ErrOrganizationNotFound is returned when an ID or slug does not resolve
	ErrOrganizationNotFound = errors.New("organization not found")
	// ErrSlugTaken is returned when creating an organization with a used slug
	ErrSlugTaken = errors.New("organization slug already in use")
	// ErrInvalidRelation is returned for relations outside owner/delegate/member
	ErrInvalidRelation = errors.New("invalid relation")
	// ErrRelationNotFound is returned when removing a relation that does not exist
	ErrRelationNotFound = errors.New("relation not found")
)

// Directory is the read side of the membership store consumed by identity
// resolution and the access guards.
type Directory interface {
	IsPlatformAdmin(ctx context.Context, principalID string) (bool, error)
	MembershipsByRelation(ctx context.Context, principalID string, relation Relation) ([]OrgRef, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error)
}

// CacheInvalidator drops cached authorization data after a write
type CacheInvalidator interface {
	InvalidatePrincipal(ctx context.Context, principalID string) error
}

// Service defines organization management on top of the Directory
type Service interface {
	Directory

	CreateOrganization(ctx context.Context, org *Organization) error
	GetOrganization(ctx context.Context, id string) (*Organization, error)
	SetStatus(ctx context.Context, id string, status OrgStatus) error
	SetActive(ctx context.Context, id string, active bool) error

	AddRelation(ctx context.Context, orgID, principalID string, relation Relation) error
	RemoveRelation(ctx context.Context, orgID, principalID string) error
}

// MultiInvalidator fans an invalidation out to several caches. Every cache is
// attempted; the first error is returned.
type MultiInvalidator []CacheInvalidator

// InvalidatePrincipal invalidates the principal in every cache
func (m MultiInvalidator) InvalidatePrincipal(ctx context.Context, principalID string) error {
	var firstErr error
	for _, inv := range m {
		if inv == nil {
			continue
		}
		if err := inv.InvalidatePrincipal(ctx, principalID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
