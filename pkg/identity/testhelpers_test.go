package identity

import (
	"context"
	"sync"

	"github.com/platinummonkey/communityhub/pkg/auth"
	"github.com/platinummonkey/communityhub/pkg/orgs"
)

// fakeDirectory is an in-memory orgs.Directory
type fakeDirectory struct {
	mu        sync.Mutex
	admins    map[string]bool
	relations map[orgs.Relation]map[string][]orgs.OrgRef
	orgs      map[string]*orgs.Organization
	errs      map[orgs.Relation]error
	adminErr  error
	calls     map[string]int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		admins:    make(map[string]bool),
		relations: make(map[orgs.Relation]map[string][]orgs.OrgRef),
		orgs:      make(map[string]*orgs.Organization),
		errs:      make(map[orgs.Relation]error),
		calls:     make(map[string]int),
	}
}

func (f *fakeDirectory) grant(principalID string, rel orgs.Relation, orgID, slug string) {
	if f.relations[rel] == nil {
		f.relations[rel] = make(map[string][]orgs.OrgRef)
	}
	f.relations[rel][principalID] = append(f.relations[rel][principalID], orgs.OrgRef{OrganizationID: orgID, Slug: slug})
}

func (f *fakeDirectory) IsPlatformAdmin(ctx context.Context, principalID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["admin"]++
	if f.adminErr != nil {
		return false, f.adminErr
	}
	return f.admins[principalID], nil
}

func (f *fakeDirectory) MembershipsByRelation(ctx context.Context, principalID string, rel orgs.Relation) ([]orgs.OrgRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[string(rel)]++
	if err := f.errs[rel]; err != nil {
		return nil, err
	}
	refs := append([]orgs.OrgRef{}, f.relations[rel][principalID]...)
	return refs, nil
}

func (f *fakeDirectory) GetOrganizationBySlug(ctx context.Context, slug string) (*orgs.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if org, ok := f.orgs[slug]; ok {
		return org, nil
	}
	return nil, orgs.ErrOrganizationNotFound
}

// countingProvider counts how often the wrapped provider is reached
type countingProvider struct {
	mu    sync.Mutex
	next  Provider
	count int
}

func (p *countingProvider) ResolveIdentity(ctx context.Context, principal *auth.Principal) (*ResolvedIdentity, error) {
	p.mu.Lock()
	p.count++
	p.mu.Unlock()
	return p.next.ResolveIdentity(ctx, principal)
}

func (p *countingProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}
