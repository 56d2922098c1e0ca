package appointment

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-memory Store for tests and local runs.
// Like the Postgres store, it enforces the live-overlap invariant at commit
// time, so the losing writer of a race is rejected even without the lock.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Appointment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*Appointment)}
}

func (m *MemoryStore) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.Status.Live() && m.overlapsLiveLocked(a) {
		return ErrDuplicateSlot
	}
	m.items[a.ID] = clone(a)
	return nil
}

func (m *MemoryStore) Save(_ context.Context, a *Appointment, fromStatus Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.items[a.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Status != fromStatus {
		return ErrStaleStatus
	}
	if a.Status.Live() && m.overlapsLiveLocked(a) {
		return ErrDuplicateSlot
	}
	m.items[a.ID] = clone(a)
	return nil
}

func (m *MemoryStore) FindByID(_ context.Context, id string) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(a), nil
}

func (m *MemoryStore) FindConflicting(_ context.Context, doctorID string, from, to time.Time) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Appointment
	for _, a := range m.items {
		if a.DoctorID != doctorID || !a.Status.Live() {
			continue
		}
		if a.StartsAt.Before(to) && a.End().After(from) {
			result = append(result, *clone(a))
		}
	}
	return result, nil
}

func (m *MemoryStore) FindUpcomingConfirmed(_ context.Context, from, to time.Time) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Appointment
	for _, a := range m.items {
		if a.Status != StatusConfirmed {
			continue
		}
		if !a.StartsAt.Before(from) && a.StartsAt.Before(to) {
			result = append(result, *clone(a))
		}
	}
	return result, nil
}

func (m *MemoryStore) overlapsLiveLocked(candidate *Appointment) bool {
	for _, a := range m.items {
		if a.ID == candidate.ID || a.DoctorID != candidate.DoctorID || !a.Status.Live() {
			continue
		}
		if Overlaps(candidate.StartsAt, candidate.Duration, a.StartsAt, a.Duration) {
			return true
		}
	}
	return false
}

func clone(a *Appointment) *Appointment {
	c := *a
	c.History = append([]HistoryEntry(nil), a.History...)
	c.Rescheduling.History = append([]RescheduleEntry(nil), a.Rescheduling.History...)
	if a.Cancellation != nil {
		cc := *a.Cancellation
		c.Cancellation = &cc
	}
	if a.StartedAt != nil {
		started := *a.StartedAt
		c.StartedAt = &started
	}
	if a.Approval.ReviewedAt != nil {
		reviewed := *a.Approval.ReviewedAt
		c.Approval.ReviewedAt = &reviewed
	}
	return &c
}

var _ Store = (*MemoryStore)(nil)
