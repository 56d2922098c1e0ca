package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinova/appointment-booking/internal/schedule"
)

// DB is the subset of pgxpool.Pool the directory needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgDirectory struct {
	db DB
}

func NewPgDirectory(db DB) *PgDirectory {
	return &PgDirectory{db: db}
}

func (r *PgDirectory) ResolvePatient(ctx context.Context, id string) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, email, phone, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)

	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.ContactInfo.Email, &p.ContactInfo.Phone, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (r *PgDirectory) ResolveDoctor(ctx context.Context, id string) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, specialty, consultation_fee_cents, availability, email, phone, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)

	var d Doctor
	var availability []byte
	err := row.Scan(&d.ID, &d.Name, &d.Specialty, &d.ConsultationFee, &availability,
		&d.ContactInfo.Email, &d.ContactInfo.Phone, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	if len(availability) > 0 {
		if err := json.Unmarshal(availability, &d.Availability); err != nil {
			return nil, fmt.Errorf("decode doctor availability: %w", err)
		}
	} else {
		d.Availability = schedule.Weekly{}
	}

	return &d, nil
}

var (
	_ PatientDirectory = (*PgDirectory)(nil)
	_ DoctorDirectory  = (*PgDirectory)(nil)
)
