package api

import (
	"time"

	"github.com/clinova/appointment-booking/internal/appointment"
	"github.com/clinova/appointment-booking/internal/schedule"
)

type BookAppointmentRequest struct {
	PatientID       string `json:"patient_id"`
	DoctorID        string `json:"doctor_id"`
	StartsAt        string `json:"starts_at"` // RFC 3339
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Type            string `json:"type,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// ActionRequest covers approve/decline/confirm/start/complete/no-show/cancel.
type ActionRequest struct {
	Actor     string `json:"actor"`
	ActorRole string `json:"actor_role"`
	Notes     string `json:"notes,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type RescheduleRequest struct {
	NewStartsAt string `json:"new_starts_at"` // RFC 3339
	Reason      string `json:"reason,omitempty"`
	Actor       string `json:"actor"`
	ActorRole   string `json:"actor_role"`
}

type BulkApproveRequest struct {
	AppointmentIDs []string `json:"appointment_ids"`
	Actor          string   `json:"actor"`
	Notes          string   `json:"notes,omitempty"`
}

type AppointmentResponse struct {
	ID              string                     `json:"id"`
	PatientID       string                     `json:"patient_id"`
	DoctorID        string                     `json:"doctor_id"`
	StartsAt        time.Time                  `json:"starts_at"`
	DurationMinutes int                        `json:"duration_minutes"`
	Type            string                     `json:"type"`
	Reason          string                     `json:"reason,omitempty"`
	Status          string                     `json:"status"`
	Approval        appointment.Approval       `json:"approval"`
	Rescheduling    appointment.Rescheduling   `json:"rescheduling"`
	Cancellation    *appointment.Cancellation  `json:"cancellation,omitempty"`
	StartedAt       *time.Time                 `json:"started_at,omitempty"`
	History         []appointment.HistoryEntry `json:"history"`
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		StartsAt:        a.StartsAt,
		DurationMinutes: int(a.Duration.Minutes()),
		Type:            string(a.Type),
		Reason:          a.Reason,
		Status:          string(a.Status),
		Approval:        a.Approval,
		Rescheduling:    a.Rescheduling,
		Cancellation:    a.Cancellation,
		StartedAt:       a.StartedAt,
		History:         a.History,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

type SlotResponse struct {
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
	Available       bool      `json:"available"`
}

func toSlotResponses(slots []schedule.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{
			Start:           s.Start,
			DurationMinutes: int(s.Duration.Minutes()),
			Available:       s.Available,
		})
	}
	return out
}

type CancelResponse struct {
	Appointment    AppointmentResponse `json:"appointment"`
	RefundEligible bool                `json:"refund_eligible"`
}

type BulkOutcomeResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status,omitempty"`
	Error         string `json:"error,omitempty"`
	ErrorKind     string `json:"error_kind,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
