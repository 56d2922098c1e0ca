package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinova/appointment-booking/internal/directory"
	"github.com/clinova/appointment-booking/internal/metrics"
	"github.com/clinova/appointment-booking/internal/notify"
	redisclient "github.com/clinova/appointment-booking/internal/redis"
	"github.com/clinova/appointment-booking/internal/schedule"
)

// Clock lets tests pin time; production uses time.Now.
type Clock func() time.Time

// Actor identifies who is invoking a mutating operation. Authorization is
// the caller layer's job; the core records the actor for the audit history.
type Actor struct {
	ID   string
	Role directory.Role
}

type Config struct {
	SlotMinutes    int
	MaxReschedules int
	RefundWindow   time.Duration
}

// Deps are the service's collaborators, injected at construction.
type Deps struct {
	Store      Store
	Patients   directory.PatientDirectory
	Doctors    directory.DoctorDirectory
	Locker     redisclient.Locker
	Dispatcher notify.Dispatcher
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
	Clock      Clock
	Config     Config
}

// Service coordinates booking, the approval workflow, and the reschedule
// and cancellation policies over a shared appointment store.
type Service struct {
	store      Store
	patients   directory.PatientDirectory
	doctors    directory.DoctorDirectory
	locker     redisclient.Locker
	dispatcher notify.Dispatcher
	metrics    *metrics.Metrics
	log        zerolog.Logger
	now        Clock
	cfg        Config
}

func NewService(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Config.SlotMinutes <= 0 {
		d.Config.SlotMinutes = 30
	}
	if d.Config.MaxReschedules <= 0 {
		d.Config.MaxReschedules = 3
	}
	if d.Config.RefundWindow <= 0 {
		d.Config.RefundWindow = 24 * time.Hour
	}
	return &Service{
		store:      d.Store,
		patients:   d.Patients,
		doctors:    d.Doctors,
		locker:     d.Locker,
		dispatcher: d.Dispatcher,
		metrics:    d.Metrics,
		log:        d.Logger,
		now:        d.Clock,
		cfg:        d.Config,
	}
}

// BookingRequest is the input to Book. Zero Duration and empty Type take
// the defaults (30 minutes, consultation).
type BookingRequest struct {
	PatientID string
	DoctorID  string
	StartsAt  time.Time
	Duration  time.Duration
	Type      Type
	Reason    string
}

// GetAvailableSlots expands the doctor's weekly availability for the given
// date and marks slots that collide with live appointments as unavailable.
func (s *Service) GetAvailableSlots(ctx context.Context, doctorID string, date time.Time) ([]schedule.Slot, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.SlotQueryDuration.Observe(time.Since(start).Seconds())
		}
	}()

	doctor, err := s.resolveDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	slots := schedule.GenerateSlots(doctor.Availability, date, s.cfg.SlotMinutes)
	if len(slots) == 0 {
		return slots, nil
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	existing, err := s.store.FindConflicting(ctx, doctorID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, DependencyFailure("load doctor appointments", err)
	}

	for i := range slots {
		if HasConflict(doctorID, slots[i].Start, slots[i].Duration, existing) {
			slots[i].Available = false
		}
	}

	return slots, nil
}

// Book validates the request and both parties, then creates the appointment
// in pending_approval under the doctor's calendar lock. The conflict check
// and the create run inside the same critical section; the store's
// uniqueness guard backstops the lock.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	appt, err := s.book(ctx, req)
	s.countBooking(err)
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, notify.Notification{
		RecipientID:   appt.DoctorID,
		RecipientRole: directory.RoleDoctor,
		AppointmentID: appt.ID,
		Kind:          notify.KindBookingRequested,
		Subject:       "New appointment request",
		Body:          fmt.Sprintf("Patient %s requested %s on %s.", appt.PatientID, appt.Type, formatSlot(appt)),
	})

	return appt, nil
}

func (s *Service) book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if req.PatientID == "" {
		return nil, InvalidRequest("patient_id", "patient_id is required")
	}
	if req.DoctorID == "" {
		return nil, InvalidRequest("doctor_id", "doctor_id is required")
	}
	if req.StartsAt.IsZero() {
		return nil, InvalidRequest("starts_at", "starts_at is required")
	}

	duration := req.Duration
	if duration == 0 {
		duration = DefaultDuration
	}
	if !durationAllowed(duration) {
		return nil, InvalidRequest("duration", fmt.Sprintf("duration %s is not bookable", duration))
	}

	typ := req.Type
	if typ == "" {
		typ = TypeConsultation
	}
	if !typ.Valid() {
		return nil, InvalidRequest("type", fmt.Sprintf("unknown appointment type %q", typ))
	}

	if _, err := s.patients.ResolvePatient(ctx, req.PatientID); err != nil {
		if errors.Is(err, directory.ErrPatientNotFound) {
			return nil, NotFound("patient", req.PatientID)
		}
		return nil, DependencyFailure("resolve patient", err)
	}

	doctor, err := s.resolveDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}

	if !schedule.SlotAt(doctor.Availability, req.StartsAt, duration, s.cfg.SlotMinutes) {
		return nil, OutsideAvailability(fmt.Sprintf("doctor %s is not bookable at %s", doctor.ID, req.StartsAt.Format(time.RFC3339)))
	}

	var appt *Appointment
	err = s.locker.WithDoctorLock(ctx, doctor.ID, func(lockCtx context.Context) error {
		existing, err := s.store.FindConflicting(lockCtx, doctor.ID, req.StartsAt, req.StartsAt.Add(duration))
		if err != nil {
			return DependencyFailure("check conflicts", err)
		}
		if HasConflict(doctor.ID, req.StartsAt, duration, existing) {
			s.countConflict()
			return SlotConflict("the requested slot overlaps an existing appointment")
		}

		appt = New(req.PatientID, doctor.ID, req.StartsAt, duration, typ, req.Reason, s.now())

		if err := s.store.Create(lockCtx, appt); err != nil {
			if errors.Is(err, ErrDuplicateSlot) {
				s.countConflict()
				return SlotConflict("the requested slot was booked concurrently")
			}
			return DependencyFailure("create appointment", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			s.countConflict()
			return nil, SlotConflict("the doctor's calendar is being booked, retry shortly")
		}
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", appt.ID).
		Str("doctor_id", appt.DoctorID).
		Str("patient_id", appt.PatientID).
		Time("starts_at", appt.StartsAt).
		Msg("appointment booked")

	return appt, nil
}

// Approve moves a pending appointment to approved.
func (s *Service) Approve(ctx context.Context, id string, actor Actor, notes string) (*Appointment, error) {
	appt, err := s.transition(ctx, id, ActionApproved, func(a *Appointment) error {
		return a.Approve(actor.ID, notes, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, notify.Notification{
		RecipientID:   appt.PatientID,
		RecipientRole: directory.RolePatient,
		AppointmentID: appt.ID,
		Kind:          notify.KindApproved,
		Subject:       "Appointment approved",
		Body:          fmt.Sprintf("Your appointment on %s was approved. Please confirm.", formatSlot(appt)),
	})
	return appt, nil
}

// Decline moves a pending appointment to declined. Reason is mandatory.
func (s *Service) Decline(ctx context.Context, id string, actor Actor, reason string) (*Appointment, error) {
	appt, err := s.transition(ctx, id, ActionDeclined, func(a *Appointment) error {
		return a.Decline(actor.ID, reason, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, notify.Notification{
		RecipientID:   appt.PatientID,
		RecipientRole: directory.RolePatient,
		AppointmentID: appt.ID,
		Kind:          notify.KindDeclined,
		Subject:       "Appointment declined",
		Body:          fmt.Sprintf("Your appointment on %s was declined: %s", formatSlot(appt), reason),
	})
	return appt, nil
}

// Confirm moves an approved appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id string, actor Actor) (*Appointment, error) {
	appt, err := s.transition(ctx, id, ActionConfirmed, func(a *Appointment) error {
		return a.Confirm(actor.ID, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, notify.Notification{
		RecipientID:   appt.DoctorID,
		RecipientRole: directory.RoleDoctor,
		AppointmentID: appt.ID,
		Kind:          notify.KindConfirmed,
		Subject:       "Appointment confirmed",
		Body:          fmt.Sprintf("Patient %s confirmed the appointment on %s.", appt.PatientID, formatSlot(appt)),
	})
	return appt, nil
}

// Start marks a confirmed appointment as underway.
func (s *Service) Start(ctx context.Context, id string, actor Actor) (*Appointment, error) {
	appt, err := s.transition(ctx, id, ActionStarted, func(a *Appointment) error {
		return a.Start(actor.ID, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, notify.Notification{
		RecipientID:   appt.PatientID,
		RecipientRole: directory.RolePatient,
		AppointmentID: appt.ID,
		Kind:          notify.KindStarted,
		Subject:       "Appointment started",
		Body:          fmt.Sprintf("Your appointment of %s is underway.", formatSlot(appt)),
	})
	return appt, nil
}

// Complete finishes a confirmed appointment.
func (s *Service) Complete(ctx context.Context, id string, actor Actor, notes string) (*Appointment, error) {
	appt, err := s.transition(ctx, id, ActionCompleted, func(a *Appointment) error {
		return a.Complete(actor.ID, notes, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, notify.Notification{
		RecipientID:   appt.PatientID,
		RecipientRole: directory.RolePatient,
		AppointmentID: appt.ID,
		Kind:          notify.KindCompleted,
		Subject:       "Appointment completed",
		Body:          fmt.Sprintf("Your appointment on %s is complete.", formatSlot(appt)),
	})
	return appt, nil
}

// MarkNoShow records that the patient did not show up.
func (s *Service) MarkNoShow(ctx context.Context, id string, actor Actor, reason string) (*Appointment, error) {
	appt, err := s.transition(ctx, id, ActionNoShow, func(a *Appointment) error {
		return a.MarkNoShow(actor.ID, reason, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, notify.Notification{
		RecipientID:   appt.PatientID,
		RecipientRole: directory.RolePatient,
		AppointmentID: appt.ID,
		Kind:          notify.KindNoShow,
		Subject:       "Missed appointment",
		Body:          fmt.Sprintf("You were marked as a no-show for the appointment on %s.", formatSlot(appt)),
	})
	return appt, nil
}

// CancelResult reports the refund decision alongside the cancelled
// appointment.
type CancelResult struct {
	Appointment    *Appointment
	RefundEligible bool
}

// Cancel terminates an approved or confirmed appointment. Refund
// eligibility is decided at this instant from the current start time.
func (s *Service) Cancel(ctx context.Context, id string, actor Actor, reason string) (CancelResult, error) {
	var refund bool
	appt, err := s.transition(ctx, id, ActionCancelled, func(a *Appointment) error {
		var err error
		refund, err = a.Cancel(actor.ID, reason, s.cfg.RefundWindow, s.now())
		return err
	})
	if err != nil {
		return CancelResult{}, err
	}

	recipientID, recipientRole := counterparty(appt, actor.Role)
	refundText := "No refund is due."
	if refund {
		refundText = "A refund will be issued."
	}
	s.dispatch(ctx, notify.Notification{
		RecipientID:   recipientID,
		RecipientRole: recipientRole,
		AppointmentID: appt.ID,
		Kind:          notify.KindCancelled,
		Subject:       "Appointment cancelled",
		Body:          fmt.Sprintf("The appointment on %s was cancelled. %s", formatSlot(appt), refundText),
	})

	return CancelResult{Appointment: appt, RefundEligible: refund}, nil
}

// Reschedule moves an appointment to a new start, re-running the
// availability and conflict checks exactly as a fresh booking would.
// Status is unchanged; the move is recorded and counted against the cap.
func (s *Service) Reschedule(ctx context.Context, id string, newStart time.Time, reason string, actor Actor) (*Appointment, error) {
	if newStart.IsZero() {
		return nil, InvalidRequest("new_starts_at", "new_starts_at is required")
	}

	// First read is only for the doctor and the cheap pre-checks; the
	// authoritative read happens under the lock.
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status.Terminal() {
		return nil, PolicyViolation("reschedule", fmt.Sprintf("appointment is %s", appt.Status))
	}
	if appt.Rescheduling.Count >= s.cfg.MaxReschedules {
		return nil, RescheduleLimitExceeded(s.cfg.MaxReschedules)
	}

	doctor, err := s.resolveDoctor(ctx, appt.DoctorID)
	if err != nil {
		return nil, err
	}
	if !schedule.SlotAt(doctor.Availability, newStart, appt.Duration, s.cfg.SlotMinutes) {
		return nil, OutsideAvailability(fmt.Sprintf("doctor %s is not bookable at %s", doctor.ID, newStart.Format(time.RFC3339)))
	}

	err = s.locker.WithDoctorLock(ctx, appt.DoctorID, func(lockCtx context.Context) error {
		for attempt := 0; ; attempt++ {
			fresh, err := s.load(lockCtx, id)
			if err != nil {
				return err
			}
			// Re-check against the in-lock snapshot: a transition or
			// another reschedule may have landed since the first read.
			if fresh.Status.Terminal() {
				return PolicyViolation("reschedule", fmt.Sprintf("appointment is %s", fresh.Status))
			}
			if fresh.Rescheduling.Count >= s.cfg.MaxReschedules {
				return RescheduleLimitExceeded(s.cfg.MaxReschedules)
			}

			existing, err := s.store.FindConflicting(lockCtx, fresh.DoctorID, newStart, newStart.Add(fresh.Duration))
			if err != nil {
				return DependencyFailure("check conflicts", err)
			}
			others := existing[:0]
			for _, e := range existing {
				if e.ID != fresh.ID {
					others = append(others, e)
				}
			}
			if HasConflict(fresh.DoctorID, newStart, fresh.Duration, others) {
				s.countConflict()
				return SlotConflict("the requested slot overlaps an existing appointment")
			}

			from := fresh.Status
			if err := fresh.ApplyReschedule(newStart, reason, actor.ID, s.cfg.MaxReschedules, s.now()); err != nil {
				return err
			}

			err = s.store.Save(lockCtx, fresh, from)
			if errors.Is(err, ErrStaleStatus) && attempt < staleRetries {
				continue
			}
			if err != nil {
				if errors.Is(err, ErrDuplicateSlot) {
					s.countConflict()
					return SlotConflict("the requested slot was booked concurrently")
				}
				return DependencyFailure("save appointment", err)
			}
			appt = fresh
			return nil
		}
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			s.countConflict()
			return nil, SlotConflict("the doctor's calendar is being booked, retry shortly")
		}
		return nil, err
	}

	s.countTransition(ActionRescheduled)

	recipientID, recipientRole := counterparty(appt, actor.Role)
	s.dispatch(ctx, notify.Notification{
		RecipientID:   recipientID,
		RecipientRole: recipientRole,
		AppointmentID: appt.ID,
		Kind:          notify.KindRescheduled,
		Subject:       "Appointment rescheduled",
		Body:          fmt.Sprintf("The appointment was moved to %s.", formatSlot(appt)),
	})

	return appt, nil
}

// BulkOutcome is the per-ID result of a bulk approval.
type BulkOutcome struct {
	AppointmentID string
	Appointment   *Appointment
	Err           error
}

// BulkApprove approves each ID independently. One failure is recorded for
// its ID and does not abort the remaining items.
func (s *Service) BulkApprove(ctx context.Context, ids []string, actor Actor, notes string) []BulkOutcome {
	outcomes := make([]BulkOutcome, 0, len(ids))
	for _, id := range ids {
		appt, err := s.Approve(ctx, id, actor, notes)
		if err != nil {
			s.log.Warn().Str("appointment_id", id).Err(err).Msg("bulk approve item failed")
		}
		outcomes = append(outcomes, BulkOutcome{AppointmentID: id, Appointment: appt, Err: err})
	}
	return outcomes
}

// Get retrieves one appointment.
func (s *Service) Get(ctx context.Context, id string) (*Appointment, error) {
	return s.load(ctx, id)
}

// staleRetries bounds how often a transition re-reads after losing a
// status race. Each re-read re-checks the edge, so a loser whose edge no
// longer holds gets InvalidTransition from the state machine itself.
const staleRetries = 3

// transition loads, applies a state-machine method, and saves with the
// loaded status as the compare-and-set predicate. Every mutation of
// persisted status funnels through here; of two concurrent transitions
// exactly one commits, the other re-reads the winner's state.
func (s *Service) transition(ctx context.Context, id, action string, apply func(a *Appointment) error) (*Appointment, error) {
	for attempt := 0; ; attempt++ {
		appt, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		from := appt.Status
		if err := apply(appt); err != nil {
			return nil, err
		}

		err = s.store.Save(ctx, appt, from)
		if errors.Is(err, ErrStaleStatus) && attempt < staleRetries {
			continue
		}
		if err != nil {
			return nil, DependencyFailure("save appointment", err)
		}
		s.countTransition(action)
		return appt, nil
	}
}

func (s *Service) load(ctx context.Context, id string) (*Appointment, error) {
	appt, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NotFound("appointment", id)
		}
		return nil, DependencyFailure("load appointment", err)
	}
	return appt, nil
}

func (s *Service) resolveDoctor(ctx context.Context, id string) (*directory.Doctor, error) {
	doctor, err := s.doctors.ResolveDoctor(ctx, id)
	if err != nil {
		if errors.Is(err, directory.ErrDoctorNotFound) {
			return nil, NotFound("doctor", id)
		}
		return nil, DependencyFailure("resolve doctor", err)
	}
	return doctor, nil
}

// dispatch sends best-effort. A failed or timed-out send never rolls back
// the transition that already committed.
func (s *Service) dispatch(ctx context.Context, n notify.Notification) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Send(ctx, n); err != nil {
		if s.metrics != nil {
			s.metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		}
		s.log.Warn().
			Str("appointment_id", n.AppointmentID).
			Str("kind", string(n.Kind)).
			Err(err).
			Msg("notification dropped")
		return
	}
	if s.metrics != nil {
		s.metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	}
}

func (s *Service) countBooking(err error) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = string(KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	s.metrics.BookingsTotal.WithLabelValues(outcome).Inc()
}

func (s *Service) countTransition(action string) {
	if s.metrics != nil {
		s.metrics.TransitionsTotal.WithLabelValues(action).Inc()
	}
}

func (s *Service) countConflict() {
	if s.metrics != nil {
		s.metrics.ConflictsDetected.Inc()
	}
}

func counterparty(a *Appointment, actorRole directory.Role) (string, directory.Role) {
	switch actorRole {
	case directory.RolePatient:
		return a.DoctorID, directory.RoleDoctor
	default:
		// doctor or approval authority acting: tell the patient
		return a.PatientID, directory.RolePatient
	}
}

func formatSlot(a *Appointment) string {
	return fmt.Sprintf("%s (%d min)", a.StartsAt.Format("Mon, 02 Jan 2006 15:04"), int(a.Duration.Minutes()))
}
