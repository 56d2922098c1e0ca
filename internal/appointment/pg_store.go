package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgStore persists appointments in Postgres. The schema carries a partial
// unique index on (doctor_id, starts_at) over live statuses; violations map
// to ErrDuplicateSlot so the losing writer of a race is rejected at commit.
type PgStore struct {
	db DB
}

func NewPgStore(db DB) *PgStore {
	return &PgStore{db: db}
}

const uniqueViolation = "23505"

const appointmentColumns = `
	id, patient_id, doctor_id, starts_at, duration_minutes, type, reason,
	status, started_at, approval, rescheduling, cancellation, history,
	created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a               Appointment
		durationMinutes int
		approval        []byte
		rescheduling    []byte
		cancellation    []byte
		history         []byte
	)

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.StartsAt,
		&durationMinutes,
		&a.Type,
		&a.Reason,
		&a.Status,
		&a.StartedAt,
		&approval,
		&rescheduling,
		&cancellation,
		&history,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	a.Duration = time.Duration(durationMinutes) * time.Minute

	if err := json.Unmarshal(approval, &a.Approval); err != nil {
		return nil, fmt.Errorf("decode approval: %w", err)
	}
	if err := json.Unmarshal(rescheduling, &a.Rescheduling); err != nil {
		return nil, fmt.Errorf("decode rescheduling: %w", err)
	}
	if len(cancellation) > 0 {
		a.Cancellation = &Cancellation{}
		if err := json.Unmarshal(cancellation, a.Cancellation); err != nil {
			return nil, fmt.Errorf("decode cancellation: %w", err)
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &a.History); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
	}

	return &a, nil
}

func encodeJSONFields(a *Appointment) (approval, rescheduling, cancellation, history []byte, err error) {
	if approval, err = json.Marshal(a.Approval); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode approval: %w", err)
	}
	if rescheduling, err = json.Marshal(a.Rescheduling); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode rescheduling: %w", err)
	}
	if a.Cancellation != nil {
		if cancellation, err = json.Marshal(a.Cancellation); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("encode cancellation: %w", err)
		}
	}
	if history, err = json.Marshal(a.History); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode history: %w", err)
	}
	return approval, rescheduling, cancellation, history, nil
}

func (r *PgStore) Create(ctx context.Context, a *Appointment) error {
	approval, rescheduling, cancellation, history, err := encodeJSONFields(a)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO appointments (
			id, patient_id, doctor_id, starts_at, duration_minutes, type, reason,
			status, started_at, approval, rescheduling, cancellation, history,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, a.ID, a.PatientID, a.DoctorID, a.StartsAt, int(a.Duration.Minutes()), a.Type, a.Reason,
		a.Status, a.StartedAt, approval, rescheduling, cancellation, history,
		a.CreatedAt, a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateSlot
		}
		return fmt.Errorf("insert appointment: %w", err)
	}

	return nil
}

// Save updates the row while it still carries fromStatus. A zero-row
// result means either the appointment is gone or a concurrent transition
// already moved it; the follow-up read tells the two apart.
func (r *PgStore) Save(ctx context.Context, a *Appointment, fromStatus Status) error {
	approval, rescheduling, cancellation, history, err := encodeJSONFields(a)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET starts_at = $2,
		    duration_minutes = $3,
		    status = $4,
		    started_at = $5,
		    approval = $6,
		    rescheduling = $7,
		    cancellation = $8,
		    history = $9,
		    updated_at = $10
		WHERE id = $1 AND status = $11
	`, a.ID, a.StartsAt, int(a.Duration.Minutes()), a.Status, a.StartedAt,
		approval, rescheduling, cancellation, history, a.UpdatedAt, fromStatus)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateSlot
		}
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var current Status
		err := r.db.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1`, a.ID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check appointment status: %w", err)
		}
		return ErrStaleStatus
	}

	return nil
}

func (r *PgStore) FindByID(ctx context.Context, id string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgStore) FindConflicting(ctx context.Context, doctorID string, from, to time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND status IN ('pending_approval', 'approved', 'confirmed')
		  AND starts_at < $3
		  AND starts_at + (duration_minutes * interval '1 minute') > $2
		ORDER BY starts_at
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgStore) FindUpcomingConfirmed(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE status = 'confirmed'
		  AND starts_at >= $1
		  AND starts_at < $2
		ORDER BY starts_at
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

var _ Store = (*PgStore)(nil)
