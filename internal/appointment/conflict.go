package appointment

import "time"

// Overlaps reports whether two half-open intervals [s1, s1+d1) and
// [s2, s2+d2) intersect. Touching endpoints do not conflict.
func Overlaps(s1 time.Time, d1 time.Duration, s2 time.Time, d2 time.Duration) bool {
	return s1.Before(s2.Add(d2)) && s2.Before(s1.Add(d1))
}

// HasConflict reports whether the candidate interval collides with any live
// appointment the doctor already holds. Declined, cancelled, completed and
// no-show appointments never conflict. The result is recomputed from the
// given set on every call; the set is externally mutable between calls, so
// callers must run this inside the per-doctor serialization point.
func HasConflict(doctorID string, start time.Time, duration time.Duration, existing []Appointment) bool {
	for i := range existing {
		e := &existing[i]
		if e.DoctorID != doctorID || !e.Status.Live() {
			continue
		}
		if Overlaps(start, duration, e.StartsAt, e.Duration) {
			return true
		}
	}
	return false
}
