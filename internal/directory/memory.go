package directory

import (
	"context"
	"sync"
)

// MemDirectory is an in-memory PatientDirectory and DoctorDirectory for
// tests and local runs without Postgres.
type MemDirectory struct {
	mu       sync.RWMutex
	patients map[string]Patient
	doctors  map[string]Doctor
}

func NewMemDirectory() *MemDirectory {
	return &MemDirectory{
		patients: make(map[string]Patient),
		doctors:  make(map[string]Doctor),
	}
}

func (m *MemDirectory) AddPatient(p Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.ID] = p
}

func (m *MemDirectory) AddDoctor(d Doctor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doctors[d.ID] = d
}

func (m *MemDirectory) ResolvePatient(_ context.Context, id string) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *MemDirectory) ResolveDoctor(_ context.Context, id string) (*Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

var (
	_ PatientDirectory = (*MemDirectory)(nil)
	_ DoctorDirectory  = (*MemDirectory)(nil)
)
