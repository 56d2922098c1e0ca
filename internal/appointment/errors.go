package appointment

import (
	"errors"
	"fmt"
)

// Kind is the stable failure classification callers key on. Business-rule
// failures are returned values, not crashes; only dependency failures mark
// something actually broken.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindInvalidRequest      Kind = "invalid_request"
	KindOutsideAvailability Kind = "outside_availability"
	KindSlotConflict        Kind = "slot_conflict"
	KindInvalidTransition   Kind = "invalid_transition"
	KindRescheduleLimit     Kind = "reschedule_limit_exceeded"
	KindPolicyViolation     Kind = "policy_violation"
	KindDependencyFailure   Kind = "dependency_failure"
)

// Failure carries a kind plus a human-readable reason sufficient to render
// a user-facing message.
type Failure struct {
	Kind   Kind
	Entity string // not_found
	Field  string // invalid_request
	Rule   string // policy_violation
	From   Status // invalid_transition
	To     Status // invalid_transition
	Reason string
	cause  error
}

func (f *Failure) Error() string {
	switch f.Kind {
	case KindNotFound:
		return fmt.Sprintf("%s not found: %s", f.Entity, f.Reason)
	case KindInvalidTransition:
		return fmt.Sprintf("invalid transition from %s to %s", f.From, f.To)
	default:
		return fmt.Sprintf("%s: %s", f.Kind, f.Reason)
	}
}

func (f *Failure) Unwrap() error {
	return f.cause
}

func NotFound(entity, id string) *Failure {
	return &Failure{Kind: KindNotFound, Entity: entity, Reason: id}
}

func InvalidRequest(field, reason string) *Failure {
	return &Failure{Kind: KindInvalidRequest, Field: field, Reason: reason}
}

func OutsideAvailability(reason string) *Failure {
	return &Failure{Kind: KindOutsideAvailability, Reason: reason}
}

func SlotConflict(reason string) *Failure {
	return &Failure{Kind: KindSlotConflict, Reason: reason}
}

func InvalidTransition(from, to Status) *Failure {
	return &Failure{Kind: KindInvalidTransition, From: from, To: to}
}

func RescheduleLimitExceeded(max int) *Failure {
	return &Failure{Kind: KindRescheduleLimit, Reason: fmt.Sprintf("appointment already rescheduled %d times", max)}
}

func PolicyViolation(rule, reason string) *Failure {
	return &Failure{Kind: KindPolicyViolation, Rule: rule, Reason: reason}
}

func DependencyFailure(op string, cause error) *Failure {
	return &Failure{Kind: KindDependencyFailure, Reason: op, cause: cause}
}

// KindOf extracts the failure kind, or "" for non-Failure errors.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// IsKind reports whether err is a Failure of the given kind.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}
