package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinova/appointment-booking/internal/appointment"
	"github.com/clinova/appointment-booking/internal/directory"
	"github.com/clinova/appointment-booking/internal/schedule"
)

type serialLocker struct {
	mu sync.Mutex
}

func (l *serialLocker) WithDoctorLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

var apiNow = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	dir := directory.NewMemDirectory()
	dir.AddPatient(directory.Patient{ID: "PAT00001", Name: "Ada Vance"})
	dir.AddDoctor(directory.Doctor{
		ID:   "DOC001",
		Name: "Dr. Lin",
		Availability: schedule.Weekly{
			"monday": schedule.DayWindow{
				Start:     schedule.MustTimeOfDay("09:00"),
				End:       schedule.MustTimeOfDay("17:00"),
				Available: true,
			},
		},
	})

	svc := appointment.NewService(appointment.Deps{
		Store:    appointment.NewMemoryStore(),
		Patients: dir,
		Doctors:  dir,
		Locker:   &serialLocker{},
		Logger:   zerolog.Nop(),
		Clock:    func() time.Time { return apiNow },
	})

	srv := httptest.NewServer(NewRouter(RouterConfig{
		Service: svc,
		Logger:  zerolog.Nop(),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func bookOne(t *testing.T, srv *httptest.Server, startsAt string) AppointmentResponse {
	t.Helper()
	resp := postJSON(t, srv.URL+"/appointments", BookAppointmentRequest{
		PatientID: "PAT00001",
		DoctorID:  "DOC001",
		StartsAt:  startsAt,
		Type:      "consultation",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[AppointmentResponse](t, resp)
}

// 2024-01-15 is a Monday.
const mondaySlot = "2024-01-15T10:00:00Z"

func TestBookAppointmentEndpoint(t *testing.T) {
	srv := newTestServer(t)

	appt := bookOne(t, srv, mondaySlot)
	assert.Regexp(t, `^APT`, appt.ID)
	assert.Equal(t, "pending_approval", appt.Status)
	assert.Equal(t, 30, appt.DurationMinutes)
}

func TestBookAppointmentBadRequests(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/appointments", "application/json", strings.NewReader("not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp2 := postJSON(t, srv.URL+"/appointments", BookAppointmentRequest{
		PatientID: "PAT00001",
		DoctorID:  "DOC001",
		StartsAt:  "next tuesday",
	})
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)

	resp3 := postJSON(t, srv.URL+"/appointments", BookAppointmentRequest{
		PatientID: "PAT00001",
		DoctorID:  "DOC001",
	})
	assert.Equal(t, http.StatusBadRequest, resp3.StatusCode)
	body := decode[ErrorResponse](t, resp3)
	assert.Equal(t, "invalid_request", body.Error)
}

func TestBookAppointmentConflict(t *testing.T) {
	srv := newTestServer(t)
	bookOne(t, srv, mondaySlot)

	resp := postJSON(t, srv.URL+"/appointments", BookAppointmentRequest{
		PatientID: "PAT00001",
		DoctorID:  "DOC001",
		StartsAt:  mondaySlot,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, "slot_conflict", body.Error)
}

func TestBookAppointmentUnknownDoctor(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/appointments", BookAppointmentRequest{
		PatientID: "PAT00001",
		DoctorID:  "DOC999",
		StartsAt:  mondaySlot,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetAppointmentEndpoint(t *testing.T) {
	srv := newTestServer(t)
	appt := bookOne(t, srv, mondaySlot)

	resp, err := http.Get(srv.URL + "/appointments/" + appt.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[AppointmentResponse](t, resp)
	assert.Equal(t, appt.ID, got.ID)

	resp2, err := http.Get(srv.URL + "/appointments/APT0000000000XX")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestGetSlotsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	bookOne(t, srv, mondaySlot)

	resp, err := http.Get(srv.URL + "/doctors/DOC001/slots?date=2024-01-15")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	slots := decode[[]SlotResponse](t, resp)
	require.Len(t, slots, 16)
	for _, s := range slots {
		if s.Start.Equal(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)) {
			assert.False(t, s.Available)
		} else {
			assert.True(t, s.Available)
		}
	}

	resp2, err := http.Get(srv.URL + "/doctors/DOC001/slots")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)

	resp3, err := http.Get(srv.URL + "/doctors/DOC001/slots?date=15-01-2024")
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp3.StatusCode)
}

func TestWorkflowEndpoints(t *testing.T) {
	srv := newTestServer(t)
	appt := bookOne(t, srv, mondaySlot)

	base := srv.URL + "/appointments/" + appt.ID

	resp := postJSON(t, base+"/approve", ActionRequest{Actor: "ADM001", Notes: "ok"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "approved", decode[AppointmentResponse](t, resp).Status)

	resp = postJSON(t, base+"/confirm", ActionRequest{Actor: "PAT00001", ActorRole: "patient"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "confirmed", decode[AppointmentResponse](t, resp).Status)

	resp = postJSON(t, base+"/complete", ActionRequest{Actor: "DOC001", ActorRole: "doctor", Notes: "healthy"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[AppointmentResponse](t, resp)
	assert.Equal(t, "completed", got.Status)
	require.Len(t, got.History, 4)
}

func TestWorkflowEndpointRejections(t *testing.T) {
	srv := newTestServer(t)
	appt := bookOne(t, srv, mondaySlot)
	base := srv.URL + "/appointments/" + appt.ID

	// confirm before approve
	resp := postJSON(t, base+"/confirm", ActionRequest{Actor: "PAT00001", ActorRole: "patient"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_transition", decode[ErrorResponse](t, resp).Error)

	// decline without a reason
	resp = postJSON(t, base+"/decline", ActionRequest{Actor: "ADM001"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// missing actor
	resp = postJSON(t, base+"/approve", ActionRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// unknown role
	resp = postJSON(t, base+"/approve", ActionRequest{Actor: "X", ActorRole: "receptionist"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancelEndpoint(t *testing.T) {
	srv := newTestServer(t)
	appt := bookOne(t, srv, mondaySlot)
	base := srv.URL + "/appointments/" + appt.ID

	resp := postJSON(t, base+"/approve", ActionRequest{Actor: "ADM001"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Five days of lead time: refund due.
	resp = postJSON(t, base+"/cancel", ActionRequest{Actor: "PAT00001", ActorRole: "patient", Reason: "trip"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[CancelResponse](t, resp)
	assert.True(t, got.RefundEligible)
	assert.Equal(t, "cancelled", got.Appointment.Status)
}

func TestRescheduleEndpoint(t *testing.T) {
	srv := newTestServer(t)
	appt := bookOne(t, srv, mondaySlot)
	base := srv.URL + "/appointments/" + appt.ID

	resp := postJSON(t, base+"/reschedule", RescheduleRequest{
		NewStartsAt: "2024-01-15T14:00:00Z",
		Reason:      "work meeting",
		Actor:       "PAT00001",
		ActorRole:   "patient",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[AppointmentResponse](t, resp)
	assert.True(t, got.StartsAt.Equal(time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, got.Rescheduling.Count)

	resp = postJSON(t, base+"/reschedule", RescheduleRequest{
		NewStartsAt: "not a time",
		Actor:       "PAT00001",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBulkApproveEndpoint(t *testing.T) {
	srv := newTestServer(t)

	a := bookOne(t, srv, mondaySlot)
	b := bookOne(t, srv, "2024-01-15T11:00:00Z")

	resp := postJSON(t, srv.URL+"/appointments/approve", BulkApproveRequest{
		AppointmentIDs: []string{a.ID, "APT0000000000XX", b.ID},
		Actor:          "ADM001",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	outcomes := decode[[]BulkOutcomeResponse](t, resp)
	require.Len(t, outcomes, 3)
	assert.Equal(t, "approved", outcomes[0].Status)
	assert.Equal(t, "not_found", outcomes[1].ErrorKind)
	assert.Equal(t, "approved", outcomes[2].Status)

	resp2 := postJSON(t, srv.URL+"/appointments/approve", BulkApproveRequest{Actor: "ADM001"})
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestRequestIDPropagated(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(fmt.Sprintf("%s/appointments/APT0000000000XX", srv.URL))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
