package guard

import "errors"

// State is the state of an access decision
type State string

const (
	StateLoading State = "loading"
	StateAllow   State = "allow"
	StateDeny    State = "deny"
	// StateError means a lookup failed and access could not be determined.
	// It is never presented as a denial.
	StateError State = "error"
)

// Reason explains a denial
type Reason string

const (
	ReasonNone                      Reason = ""
	ReasonUnauthenticated           Reason = "unauthenticated"
	ReasonUnverified                Reason = "unverified"
	ReasonInsufficientRole          Reason = "insufficient_role"
	ReasonNotMember                 Reason = "not_member"
	ReasonOrganizationNotAccessible Reason = "organization_not_accessible"
	ReasonNoOrganization            Reason = "no_organization"
)

// ErrNoChecks is carried by the error decision of an empty composition
var ErrNoChecks = errors.New("no access checks to evaluate")

// Decision is the output of a guard
type Decision struct {
	State      State  `json:"state"`
	Reason     Reason `json:"reason,omitempty"`
	RedirectTo string `json:"redirect_to,omitempty"`
	Err        error  `json:"-"`
}

// Loading is the decision while a relevant lookup is in flight
func Loading() Decision {
	return Decision{State: StateLoading}
}

// Allow grants access
func Allow() Decision {
	return Decision{State: StateAllow}
}

// Deny refuses access. redirectTo is empty when the denial is rendered in place.
func Deny(reason Reason, redirectTo string) Decision {
	return Decision{State: StateDeny, Reason: reason, RedirectTo: redirectTo}
}

// Failed reports a data-layer failure
func Failed(err error) Decision {
	return Decision{State: StateError, Err: err}
}

// IsTerminal reports whether the decision is final for its inputs
func (d Decision) IsTerminal() bool {
	return d.State != StateLoading
}

// Allowed reports whether access is granted
func (d Decision) Allowed() bool {
	return d.State == StateAllow
}

// Lookup is the completion state of one asynchronous input
type Lookup[T any] struct {
	Done  bool
	Value T
	Err   error
}

// Pending is a lookup still in flight
func Pending[T any]() Lookup[T] {
	return Lookup[T]{}
}

// Resolved is a completed lookup
func Resolved[T any](v T) Lookup[T] {
	return Lookup[T]{Done: true, Value: v}
}

// Errored is a lookup that failed
func Errored[T any](err error) Lookup[T] {
	return Lookup[T]{Done: true, Err: err}
}
