package appointment

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"
)

type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusDeclined        Status = "declined"
	StatusConfirmed       Status = "confirmed"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
	StatusNoShow          Status = "no_show"
)

// Live reports whether the status still occupies the doctor's calendar.
func (s Status) Live() bool {
	switch s {
	case StatusPendingApproval, StatusApproved, StatusConfirmed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusDeclined, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// LiveStatuses are the statuses considered by conflict detection.
var LiveStatuses = []Status{StatusPendingApproval, StatusApproved, StatusConfirmed}

type Type string

const (
	TypeConsultation Type = "consultation"
	TypeFollowUp     Type = "follow_up"
	TypeCheckup      Type = "checkup"
	TypeEmergency    Type = "emergency"
)

func (t Type) Valid() bool {
	switch t {
	case TypeConsultation, TypeFollowUp, TypeCheckup, TypeEmergency:
		return true
	}
	return false
}

// DefaultDuration is used when a booking request leaves duration unset.
const DefaultDuration = 30 * time.Minute

// AllowedDurations is the closed set of bookable appointment lengths.
var AllowedDurations = []time.Duration{
	15 * time.Minute,
	30 * time.Minute,
	45 * time.Minute,
	60 * time.Minute,
}

func durationAllowed(d time.Duration) bool {
	for _, allowed := range AllowedDurations {
		if d == allowed {
			return true
		}
	}
	return false
}

// History actions, one per lifecycle event.
const (
	ActionCreated     = "created"
	ActionApproved    = "approved"
	ActionDeclined    = "declined"
	ActionConfirmed   = "confirmed"
	ActionStarted     = "started"
	ActionCompleted   = "completed"
	ActionNoShow      = "no_show"
	ActionCancelled   = "cancelled"
	ActionRescheduled = "rescheduled"
)

// HistoryEntry is one element of the append-only lifecycle log.
type HistoryEntry struct {
	Action string    `json:"action"`
	Actor  string    `json:"actor"`
	At     time.Time `json:"at"`
	Notes  string    `json:"notes,omitempty"`
}

type Approval struct {
	RequestedAt time.Time  `json:"requested_at"`
	ReviewedBy  string     `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	Status      string     `json:"status"`
	Notes       string     `json:"notes,omitempty"`
}

type RescheduleEntry struct {
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

type Rescheduling struct {
	Count   int               `json:"count"`
	History []RescheduleEntry `json:"history,omitempty"`
}

type Cancellation struct {
	By             string    `json:"by"`
	Reason         string    `json:"reason,omitempty"`
	At             time.Time `json:"at"`
	RefundEligible bool      `json:"refund_eligible"`
}

// Appointment is the central entity. Status only changes through the named
// transition methods below; nothing else may assign it.
type Appointment struct {
	ID           string
	PatientID    string
	DoctorID     string
	StartsAt     time.Time
	Duration     time.Duration
	Type         Type
	Reason       string
	Status       Status
	Approval     Approval
	Rescheduling Rescheduling
	Cancellation *Cancellation
	StartedAt    *time.Time
	History      []HistoryEntry
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a *Appointment) End() time.Time {
	return a.StartsAt.Add(a.Duration)
}

// NewID generates an appointment ID: "APT" + a high-resolution timestamp
// suffix + two random uppercase letters.
func NewID(now time.Time) string {
	suffix := strconv.FormatInt(now.UnixNano(), 10)
	if len(suffix) > 10 {
		suffix = suffix[len(suffix)-10:]
	}
	letters := []byte{
		byte('A' + rand.IntN(26)),
		byte('A' + rand.IntN(26)),
	}
	return "APT" + suffix + string(letters)
}

// New constructs a fully-valid appointment in pending_approval with its ID
// generated and the "created" history entry already appended. Construction
// and persistence are separate steps; the store receives a finished value.
func New(patientID, doctorID string, startsAt time.Time, duration time.Duration, typ Type, reason string, now time.Time) *Appointment {
	a := &Appointment{
		ID:        NewID(now),
		PatientID: patientID,
		DoctorID:  doctorID,
		StartsAt:  startsAt,
		Duration:  duration,
		Type:      typ,
		Reason:    reason,
		Status:    StatusPendingApproval,
		Approval: Approval{
			RequestedAt: now,
			Status:      string(StatusPendingApproval),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	a.appendHistory(ActionCreated, patientID, now, reason)
	return a
}

func (a *Appointment) appendHistory(action, actor string, at time.Time, notes string) {
	a.History = append(a.History, HistoryEntry{
		Action: action,
		Actor:  actor,
		At:     at,
		Notes:  notes,
	})
	a.UpdatedAt = at
}

// Approve moves pending_approval to approved.
func (a *Appointment) Approve(actor, notes string, now time.Time) error {
	if a.Status != StatusPendingApproval {
		return InvalidTransition(a.Status, StatusApproved)
	}
	a.Status = StatusApproved
	reviewed := now
	a.Approval.ReviewedBy = actor
	a.Approval.ReviewedAt = &reviewed
	a.Approval.Status = string(StatusApproved)
	a.Approval.Notes = notes
	a.appendHistory(ActionApproved, actor, now, notes)
	return nil
}

// Decline moves pending_approval to declined. The reason is mandatory.
func (a *Appointment) Decline(actor, reason string, now time.Time) error {
	if reason == "" {
		return InvalidRequest("reason", "decline requires a reason")
	}
	if a.Status != StatusPendingApproval {
		return InvalidTransition(a.Status, StatusDeclined)
	}
	a.Status = StatusDeclined
	reviewed := now
	a.Approval.ReviewedBy = actor
	a.Approval.ReviewedAt = &reviewed
	a.Approval.Status = string(StatusDeclined)
	a.Approval.Notes = reason
	a.appendHistory(ActionDeclined, actor, now, reason)
	return nil
}

// Confirm moves approved to confirmed.
func (a *Appointment) Confirm(actor string, now time.Time) error {
	if a.Status != StatusApproved {
		return InvalidTransition(a.Status, StatusConfirmed)
	}
	a.Status = StatusConfirmed
	a.appendHistory(ActionConfirmed, actor, now, "")
	return nil
}

// Start marks the visit as underway. Status stays confirmed.
func (a *Appointment) Start(actor string, now time.Time) error {
	if a.Status != StatusConfirmed {
		return InvalidTransition(a.Status, StatusConfirmed)
	}
	started := now
	a.StartedAt = &started
	a.appendHistory(ActionStarted, actor, now, "")
	return nil
}

// Complete moves confirmed to completed.
func (a *Appointment) Complete(actor, notes string, now time.Time) error {
	if a.Status != StatusConfirmed {
		return InvalidTransition(a.Status, StatusCompleted)
	}
	a.Status = StatusCompleted
	a.appendHistory(ActionCompleted, actor, now, notes)
	return nil
}

// MarkNoShow moves confirmed to no_show.
func (a *Appointment) MarkNoShow(actor, reason string, now time.Time) error {
	if a.Status != StatusConfirmed {
		return InvalidTransition(a.Status, StatusNoShow)
	}
	a.Status = StatusNoShow
	a.appendHistory(ActionNoShow, actor, now, reason)
	return nil
}

// Cancel terminates an approved or confirmed appointment. Refund
// eligibility is decided here, once, from the current start time: strictly
// more than refundWindow of lead time is required. It is never recomputed.
func (a *Appointment) Cancel(actor, reason string, refundWindow time.Duration, now time.Time) (bool, error) {
	if a.Status != StatusApproved && a.Status != StatusConfirmed {
		return false, InvalidTransition(a.Status, StatusCancelled)
	}
	refund := a.StartsAt.Sub(now) > refundWindow
	a.Status = StatusCancelled
	a.Cancellation = &Cancellation{
		By:             actor,
		Reason:         reason,
		At:             now,
		RefundEligible: refund,
	}
	a.appendHistory(ActionCancelled, actor, now, reason)
	return refund, nil
}

// ApplyReschedule moves the appointment to a new start. The caller has
// already validated availability and conflicts; this enforces the ceiling
// and records the move. Status is unchanged.
func (a *Appointment) ApplyReschedule(to time.Time, reason, actor string, maxReschedules int, now time.Time) error {
	if a.Status.Terminal() {
		return PolicyViolation("reschedule", fmt.Sprintf("appointment is %s", a.Status))
	}
	if a.Rescheduling.Count >= maxReschedules {
		return RescheduleLimitExceeded(maxReschedules)
	}
	a.Rescheduling.History = append(a.Rescheduling.History, RescheduleEntry{
		From:   a.StartsAt,
		To:     to,
		Reason: reason,
		At:     now,
	})
	a.Rescheduling.Count++
	a.StartsAt = to
	a.appendHistory(ActionRescheduled, actor, now, reason)
	return nil
}
