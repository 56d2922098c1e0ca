package api

import (
	"encoding/json"
	"net/http"

	"github.com/clinova/appointment-booking/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeFailure maps the domain failure taxonomy onto HTTP statuses.
func writeFailure(w http.ResponseWriter, err error) {
	kind := appointment.KindOf(err)
	switch kind {
	case appointment.KindNotFound:
		writeError(w, http.StatusNotFound, string(kind), err.Error())
	case appointment.KindInvalidRequest:
		writeError(w, http.StatusBadRequest, string(kind), err.Error())
	case appointment.KindOutsideAvailability,
		appointment.KindSlotConflict,
		appointment.KindInvalidTransition,
		appointment.KindRescheduleLimit,
		appointment.KindPolicyViolation:
		writeError(w, http.StatusConflict, string(kind), err.Error())
	case appointment.KindDependencyFailure:
		writeError(w, http.StatusServiceUnavailable, string(kind), err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
