package identity

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/communityhub/pkg/auth"
	"github.com/platinummonkey/communityhub/pkg/observability"
	"github.com/platinummonkey/communityhub/pkg/orgs"
)

// ErrNoPrincipal is returned when resolution is requested without a principal
var ErrNoPrincipal = errors.New("no principal to resolve")

// Provider resolves the role snapshot of a principal
type Provider interface {
	ResolveIdentity(ctx context.Context, principal *auth.Principal) (*ResolvedIdentity, error)
}

// Resolver resolves identities directly against the membership directory
type Resolver struct {
	dir     orgs.Directory
	logger  logrus.FieldLogger
	metrics *observability.Metrics
}

// NewResolver creates a resolver. logger and metrics may be nil.
func NewResolver(dir orgs.Directory, logger logrus.FieldLogger, metrics *observability.Metrics) *Resolver {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Resolver{
		dir:     dir,
		logger:  logger,
		metrics: metrics,
	}
}

// ResolveIdentity issues the platform-admin check and the three relation
// lookups concurrently and merges the results. All four lookups always run;
// the first failure cancels the rest and is returned. A principal unknown to
// every store resolves to an empty, non-admin identity.
func (r *Resolver) ResolveIdentity(ctx context.Context, principal *auth.Principal) (*ResolvedIdentity, error) {
	if principal == nil {
		return nil, ErrNoPrincipal
	}

	ctx, span := observability.Tracer("communityhub/identity").Start(ctx, "identity.resolve")
	defer span.End()
	span.SetAttributes(attribute.String("principal.id", principal.ID))

	start := time.Now()
	identity, err := r.resolve(ctx, principal.ID)
	r.metrics.RecordIdentityResolution(time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "identity resolution failed")
		r.logger.WithError(err).WithField("principal_id", principal.ID).Error("Failed to resolve identity")
		return nil, err
	}

	span.SetAttributes(
		attribute.Bool("identity.platform_admin", identity.IsPlatformAdmin),
		attribute.Int("identity.memberships", len(identity.Memberships)),
	)
	return identity, nil
}

func (r *Resolver) resolve(ctx context.Context, principalID string) (*ResolvedIdentity, error) {
	var (
		isAdmin bool
		byRel   = make([][]orgs.OrgRef, len(orgs.Relations()))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		isAdmin, err = r.dir.IsPlatformAdmin(gctx, principalID)
		return err
	})
	for i, rel := range orgs.Relations() {
		i, rel := i, rel
		g.Go(func() error {
			refs, err := r.dir.MembershipsByRelation(gctx, principalID, rel)
			if err != nil {
				return err
			}
			byRel[i] = refs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	memberships, anomalies := mergeMemberships(orgs.Relations(), byRel)
	for _, a := range anomalies {
		r.metrics.RecordRoleAnomaly()
		r.logger.WithFields(logrus.Fields{
			"principal_id":    principalID,
			"organization_id": a.OrganizationID,
			"roles":           a.Roles,
			"resolved_role":   a.Resolved,
		}).Warn("Principal holds more than one relation in an organization")
	}

	return &ResolvedIdentity{
		PrincipalID:     principalID,
		IsPlatformAdmin: isAdmin,
		Memberships:     memberships,
	}, nil
}

// roleAnomaly records an organization reached through several relations
type roleAnomaly struct {
	OrganizationID string
	Roles          []Role
	Resolved       Role
}

// mergeMemberships collapses per-relation lookups into one membership per
// organization. Entries keep the position of their first appearance, scanning
// relations in the given order, and carry the highest-precedence role seen.
func mergeMemberships(relations []orgs.Relation, byRel [][]orgs.OrgRef) ([]Membership, []roleAnomaly) {
	memberships := []Membership{}
	index := make(map[string]int)
	seen := make(map[string][]Role)
	var order []string

	for i, rel := range relations {
		role := RoleForRelation(rel)
		for _, ref := range byRel[i] {
			roles := seen[ref.OrganizationID]
			if !containsRole(roles, role) {
				seen[ref.OrganizationID] = append(roles, role)
			}

			pos, ok := index[ref.OrganizationID]
			if !ok {
				index[ref.OrganizationID] = len(memberships)
				order = append(order, ref.OrganizationID)
				memberships = append(memberships, Membership{
					OrganizationID: ref.OrganizationID,
					Slug:           ref.Slug,
					Role:           role,
				})
				continue
			}
			memberships[pos].Role = MaxRole(memberships[pos].Role, role)
		}
	}

	var anomalies []roleAnomaly
	for _, orgID := range order {
		if roles := seen[orgID]; len(roles) > 1 {
			anomalies = append(anomalies, roleAnomaly{
				OrganizationID: orgID,
				Roles:          roles,
				Resolved:       memberships[index[orgID]].Role,
			})
		}
	}
	return memberships, anomalies
}

func containsRole(roles []Role, r Role) bool {
	for _, held := range roles {
		if held == r {
			return true
		}
	}
	return false
}
