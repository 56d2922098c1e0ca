package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clinova/appointment-booking/internal/appointment"
	"github.com/clinova/appointment-booking/internal/directory"
)

func getSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID := chi.URLParam(r, "id")

		dateStr := r.URL.Query().Get("date")
		if dateStr == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "date query parameter is required")
			return
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
			return
		}

		slots, err := svc.GetAvailableSlots(r.Context(), doctorID, date)
		if err != nil {
			writeFailure(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponses(slots))
	}
}

func bookAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		var startsAt time.Time
		if req.StartsAt != "" {
			var err error
			startsAt, err = time.Parse(time.RFC3339, req.StartsAt)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request", "starts_at must be RFC 3339")
				return
			}
		}

		appt, err := svc.Book(r.Context(), appointment.BookingRequest{
			PatientID: req.PatientID,
			DoctorID:  req.DoctorID,
			StartsAt:  startsAt,
			Duration:  time.Duration(req.DurationMinutes) * time.Minute,
			Type:      appointment.Type(req.Type),
			Reason:    req.Reason,
		})
		if err != nil {
			writeFailure(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// actionHandler adapts one workflow transition to an HTTP handler.
func actionHandler(apply func(r *http.Request, id string, actor appointment.Actor, req ActionRequest) (*appointment.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		actor, ok := parseActor(w, req.Actor, req.ActorRole)
		if !ok {
			return
		}

		appt, err := apply(r, chi.URLParam(r, "id"), actor, req)
		if err != nil {
			writeFailure(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		actor, ok := parseActor(w, req.Actor, req.ActorRole)
		if !ok {
			return
		}

		result, err := svc.Cancel(r.Context(), chi.URLParam(r, "id"), actor, req.Reason)
		if err != nil {
			writeFailure(w, err)
			return
		}

		writeJSON(w, http.StatusOK, CancelResponse{
			Appointment:    toAppointmentResponse(result.Appointment),
			RefundEligible: result.RefundEligible,
		})
	}
}

func rescheduleAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		newStart, err := time.Parse(time.RFC3339, req.NewStartsAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "new_starts_at must be RFC 3339")
			return
		}

		actor, ok := parseActor(w, req.Actor, req.ActorRole)
		if !ok {
			return
		}

		appt, err := svc.Reschedule(r.Context(), chi.URLParam(r, "id"), newStart, req.Reason, actor)
		if err != nil {
			writeFailure(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func bulkApproveHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BulkApproveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if len(req.AppointmentIDs) == 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "appointment_ids is required")
			return
		}

		actor := appointment.Actor{ID: req.Actor, Role: directory.RoleAdmin}
		outcomes := svc.BulkApprove(r.Context(), req.AppointmentIDs, actor, req.Notes)

		resp := make([]BulkOutcomeResponse, 0, len(outcomes))
		for _, o := range outcomes {
			item := BulkOutcomeResponse{AppointmentID: o.AppointmentID}
			if o.Err != nil {
				item.Error = o.Err.Error()
				item.ErrorKind = string(appointment.KindOf(o.Err))
			} else {
				item.Status = string(o.Appointment.Status)
			}
			resp = append(resp, item)
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func parseActor(w http.ResponseWriter, id, roleStr string) (appointment.Actor, bool) {
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "actor is required")
		return appointment.Actor{}, false
	}
	role := directory.RoleAdmin
	if roleStr != "" {
		parsed, err := directory.ParseRole(roleStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return appointment.Actor{}, false
		}
		role = parsed
	}
	return appointment.Actor{ID: id, Role: role}, true
}
