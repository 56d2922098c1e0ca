// Package notify delivers best-effort lifecycle notifications to the
// counter-party of an appointment transition. Delivery failure never fails
// the transition that triggered it.
package notify

import (
	"context"

	"github.com/clinova/appointment-booking/internal/directory"
)

type Kind string

const (
	KindBookingRequested Kind = "booking_requested"
	KindApproved         Kind = "appointment_approved"
	KindDeclined         Kind = "appointment_declined"
	KindConfirmed        Kind = "appointment_confirmed"
	KindStarted          Kind = "appointment_started"
	KindRescheduled      Kind = "appointment_rescheduled"
	KindCancelled        Kind = "appointment_cancelled"
	KindCompleted        Kind = "appointment_completed"
	KindNoShow           Kind = "appointment_no_show"
	KindReminder         Kind = "appointment_reminder"
)

type Notification struct {
	RecipientID   string         `json:"recipient_id"`
	RecipientRole directory.Role `json:"recipient_role"`
	AppointmentID string         `json:"appointment_id"`
	Kind          Kind           `json:"kind"`
	Subject       string         `json:"subject"`
	Body          string         `json:"body"`
}

// Dispatcher sends a notification to one recipient. Implementations own the
// transport; callers treat Send as fire-and-forget.
type Dispatcher interface {
	Send(ctx context.Context, n Notification) error
}
