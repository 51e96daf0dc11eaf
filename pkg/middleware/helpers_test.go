package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/platinummonkey/communityhub/pkg/auth"
	"github.com/platinummonkey/communityhub/pkg/contextkeys"
	"github.com/platinummonkey/communityhub/pkg/identity"
	"github.com/platinummonkey/communityhub/pkg/orgs"
)

type fakeSessions struct {
	principals map[string]*auth.Principal
	err        error
}

func (f *fakeSessions) LookupPrincipal(ctx context.Context, token string) (*auth.Principal, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	p, ok := f.principals[token]
	if !ok {
		return nil, "", auth.ErrSessionNotFound
	}
	return p, "sess-" + p.ID, nil
}

type fakeIdentities map[string]*identity.ResolvedIdentity

func (f fakeIdentities) ResolveIdentity(ctx context.Context, p *auth.Principal) (*identity.ResolvedIdentity, error) {
	if id, ok := f[p.ID]; ok {
		return id, nil
	}
	return &identity.ResolvedIdentity{PrincipalID: p.ID}, nil
}

type fakeOrgs map[string]*orgs.Organization

func (f fakeOrgs) GetOrganizationBySlug(ctx context.Context, slug string) (*orgs.Organization, error) {
	if org, ok := f[slug]; ok {
		return org, nil
	}
	return nil, orgs.ErrOrganizationNotFound
}

type failingOrgs struct{}

func (failingOrgs) GetOrganizationBySlug(ctx context.Context, slug string) (*orgs.Organization, error) {
	return nil, errors.New("connection refused")
}

var verifiedAt = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

func verified(id string) *auth.Principal {
	return &auth.Principal{ID: id, Email: id + "@example.org", EmailVerifiedAt: &verifiedAt}
}

func withPrincipal(r *http.Request, p *auth.Principal) *http.Request {
	ctx := context.WithValue(r.Context(), contextkeys.AuthKey, &auth.AuthContext{Principal: p, SessionID: "s1"})
	return r.WithContext(ctx)
}

// slowOrgs answers slug lookups only after delay
type slowOrgs struct {
	fakeOrgs
	delay time.Duration
}

func (s slowOrgs) GetOrganizationBySlug(ctx context.Context, slug string) (*orgs.Organization, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.fakeOrgs.GetOrganizationBySlug(ctx, slug)
}
