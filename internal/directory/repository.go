package directory

import (
	"context"
	"errors"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrUnknownRole     = errors.New("unknown role")
)

// PatientDirectory resolves patient identities for the scheduling core.
type PatientDirectory interface {
	ResolvePatient(ctx context.Context, id string) (*Patient, error)
}

// DoctorDirectory resolves doctors together with their weekly availability.
type DoctorDirectory interface {
	ResolveDoctor(ctx context.Context, id string) (*Doctor, error)
}

// Resolve dispatches an actor reference to the directory for its role.
// The switch is the whole registry: adding a role means adding a case,
// and an unknown role is a typed failure.
func Resolve(ctx context.Context, patients PatientDirectory, doctors DoctorDirectory, role Role, id string) (Party, error) {
	switch role {
	case RolePatient:
		return patients.ResolvePatient(ctx, id)
	case RoleDoctor:
		return doctors.ResolveDoctor(ctx, id)
	default:
		return nil, ErrUnknownRole
	}
}
