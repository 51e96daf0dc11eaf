package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/communityhub/pkg/auth"
	"github.com/platinummonkey/communityhub/pkg/identity"
	"github.com/platinummonkey/communityhub/pkg/observability"
	"github.com/platinummonkey/communityhub/pkg/orgs"
)

// ErrStale is returned for an evaluation superseded by a newer request
var ErrStale = errors.New("evaluation superseded by a newer request")

var errIncomplete = errors.New("lookups finished without a decision")

// OrganizationLookup resolves organization slugs
type OrganizationLookup interface {
	GetOrganizationBySlug(ctx context.Context, slug string) (*orgs.Organization, error)
}

// Request is one guard evaluation
type Request struct {
	Policy    Policy
	Principal *auth.Principal
	Slug      string
}

// Checker runs the lookups a policy needs and decides on them. It is safe
// for concurrent use and keeps no per-request state.
type Checker struct {
	identities identity.Provider
	orgs       OrganizationLookup
	devMode    bool
	logger     logrus.FieldLogger
	metrics    *observability.Metrics
}

// NewChecker creates a new checker. devMode bypasses email verification.
func NewChecker(identities identity.Provider, organizations OrganizationLookup, devMode bool, logger logrus.FieldLogger, metrics *observability.Metrics) *Checker {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Checker{
		identities: identities,
		orgs:       organizations,
		devMode:    devMode,
		logger:     logger,
		metrics:    metrics,
	}
}

// Outcome is a terminal decision with the inputs it was based on
type Outcome struct {
	Decision     Decision
	Identity     *identity.ResolvedIdentity
	Organization *orgs.Organization
}

// Check evaluates the request to a terminal decision
func (c *Checker) Check(ctx context.Context, req Request) Outcome {
	out, _ := c.run(ctx, req, nil)
	return out
}

// Organization looks up an organization outside of any evaluation. Unknown
// slugs return orgs.ErrOrganizationNotFound.
func (c *Checker) Organization(ctx context.Context, slug string) (*orgs.Organization, error) {
	return c.orgs.GetOrganizationBySlug(ctx, slug)
}

// publishFunc receives every intermediate decision. Returning false stops
// the evaluation as stale.
type publishFunc func(Decision) bool

// run issues the identity and organization lookups concurrently, re-deciding
// as each completes. Once the decision is terminal the remaining lookups are
// cancelled, so a platform-admin allow does not wait on the organization.
func (c *Checker) run(ctx context.Context, req Request, publish publishFunc) (Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := Inputs{
		Session:      Resolved(req.Principal),
		Identity:     Pending[*identity.ResolvedIdentity](),
		Organization: Pending[*orgs.Organization](),
	}

	results := make(chan func(*Inputs), 2)
	pending := 0

	if req.Principal != nil {
		pending++
		go func() {
			id, err := c.identities.ResolveIdentity(ctx, req.Principal)
			results <- func(in *Inputs) {
				in.Identity = Lookup[*identity.ResolvedIdentity]{Done: true, Value: id, Err: err}
			}
		}()
	} else {
		in.Identity = Resolved[*identity.ResolvedIdentity](nil)
	}

	if req.Policy.Scope.IsTenant() && req.Slug != "" && req.Principal != nil {
		pending++
		go func() {
			org, err := c.orgs.GetOrganizationBySlug(ctx, req.Slug)
			if errors.Is(err, orgs.ErrOrganizationNotFound) {
				org, err = nil, nil
			}
			results <- func(in *Inputs) {
				in.Organization = Lookup[*orgs.Organization]{Done: true, Value: org, Err: err}
			}
		}()
	} else {
		in.Organization = Resolved[*orgs.Organization](nil)
	}

	decision := req.Policy.Decide(c.devMode, req.Slug, in)
	if publish != nil && !publish(decision) {
		return Outcome{Decision: decision}, ErrStale
	}

	for !decision.IsTerminal() && pending > 0 {
		select {
		case apply := <-results:
			pending--
			apply(&in)
			decision = req.Policy.Decide(c.devMode, req.Slug, in)
			if publish != nil && !publish(decision) {
				return Outcome{Decision: decision}, ErrStale
			}
		case <-ctx.Done():
			if publish != nil && !publish(Failed(ctx.Err())) {
				return Outcome{Decision: decision}, ErrStale
			}
			decision = Failed(ctx.Err())
		}
	}

	if !decision.IsTerminal() {
		decision = Failed(errIncomplete)
	}

	c.record(req, decision)
	return Outcome{
		Decision:     decision,
		Identity:     in.Identity.Value,
		Organization: in.Organization.Value,
	}, nil
}

func (c *Checker) record(req Request, d Decision) {
	c.metrics.RecordGuardDecision(req.Policy.Name, string(d.State), string(d.Reason))

	fields := logrus.Fields{
		"guard": req.Policy.Name,
		"slug":  req.Slug,
	}
	if req.Principal != nil {
		fields["principal_id"] = req.Principal.ID
	}
	switch d.State {
	case StateDeny:
		fields["reason"] = d.Reason
		c.logger.WithFields(fields).Debug("Access denied")
	case StateError:
		c.logger.WithFields(fields).WithError(d.Err).Error("Access could not be determined")
	}
}

// Evaluator tracks the evaluations of one navigation context, such as one
// signed-in session. Each Evaluate call supersedes the previous one: the
// older evaluation is cancelled and its results are never published.
type Evaluator struct {
	checker *Checker

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	current    Decision
	onChange   func(Decision)
}

// NewEvaluator creates an evaluator. onChange, if set, receives every
// decision of the current generation in order; it runs under the
// evaluator's lock and must not call back into the evaluator.
func NewEvaluator(checker *Checker, onChange func(Decision)) *Evaluator {
	return &Evaluator{
		checker:  checker,
		current:  Loading(),
		onChange: onChange,
	}
}

// Evaluate runs the request as the newest generation. It returns ErrStale
// if another Evaluate call started before this one reached a terminal
// decision; nothing from the superseded run is published.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (Decision, error) {
	ctx, gen := e.begin(ctx)

	out, err := e.checker.run(ctx, req, func(d Decision) bool {
		return e.publish(gen, d)
	})
	if err != nil {
		e.checker.metrics.RecordStaleEvaluation()
		return out.Decision, fmt.Errorf("generation %d: %w", gen, err)
	}
	return out.Decision, nil
}

// Current returns the latest decision of the newest generation
func (e *Evaluator) Current() Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Close cancels any evaluation in flight
func (e *Evaluator) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

func (e *Evaluator) begin(ctx context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
	e.generation++
	e.cancel = cancel
	e.current = Loading()
	return ctx, e.generation
}

func (e *Evaluator) publish(gen uint64, d Decision) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return false
	}
	e.current = d
	if e.onChange != nil {
		e.onChange(d)
	}
	return true
}
