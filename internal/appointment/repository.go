package appointment

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("appointment not found")

	// ErrDuplicateSlot is returned when the store's own uniqueness guard
	// rejects a write that would double-book a doctor. It backstops the
	// per-doctor lock: even if the lock TTL expires mid-write, the losing
	// writer is rejected at commit time.
	ErrDuplicateSlot = errors.New("doctor already booked for this slot")

	// ErrStaleStatus is returned when Save's status predicate fails: the
	// stored appointment no longer carries the status the mutation was
	// applied against, so a concurrent transition won the race.
	ErrStaleStatus = errors.New("appointment status changed concurrently")
)

// Store contains all persistence interactions needed by the service.
type Store interface {
	Create(ctx context.Context, a *Appointment) error

	// Save persists a mutated appointment, compare-and-set style:
	// the write commits only while the stored row still carries
	// fromStatus, the status the mutation was applied against. The
	// losing writer of two concurrent transitions gets ErrStaleStatus
	// instead of overwriting the winner's state and history.
	Save(ctx context.Context, a *Appointment, fromStatus Status) error

	FindByID(ctx context.Context, id string) (*Appointment, error)

	// FindConflicting returns the doctor's live appointments overlapping
	// [from, to). Used for conflict checks and slot availability.
	FindConflicting(ctx context.Context, doctorID string, from, to time.Time) ([]Appointment, error)

	// FindUpcomingConfirmed returns confirmed appointments starting in
	// [from, to). Used by the reminder worker.
	FindUpcomingConfirmed(ctx context.Context, from, to time.Time) ([]Appointment, error)
}
