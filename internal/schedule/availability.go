// Package schedule turns a doctor's recurring weekly availability into
// concrete, fixed-length appointment slots for a given date.
package schedule

import (
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time within a day, e.g. 09:30.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d", &t.Hour, &t.Minute); err != nil {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return t, nil
}

// MustTimeOfDay is ParseTimeOfDay for static windows; panics on bad input.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// DayWindow is a doctor's bookable window on one weekday.
type DayWindow struct {
	Start     TimeOfDay `json:"start"`
	End       TimeOfDay `json:"end"`
	Available bool      `json:"available"`
}

// Weekly maps lowercase weekday names ("monday".."sunday") to windows.
// A missing day means the doctor is unbookable that day.
type Weekly map[string]DayWindow

// DayKey returns the Weekly map key for a weekday.
func DayKey(d time.Weekday) string {
	return strings.ToLower(d.String())
}

// Window returns the day's window and whether the doctor is bookable then.
func (w Weekly) Window(d time.Weekday) (DayWindow, bool) {
	win, ok := w[DayKey(d)]
	if !ok || !win.Available {
		return DayWindow{}, false
	}
	return win, true
}

// Slot is a candidate booking window. Ephemeral; never persisted.
type Slot struct {
	Start     time.Time     `json:"start"`
	Duration  time.Duration `json:"-"`
	Available bool          `json:"available"`
}

func (s Slot) End() time.Time {
	return s.Start.Add(s.Duration)
}

// Slots yields the slots a doctor can be booked for on the given date,
// walking the day's window from start to end in slotMinutes increments.
// The final slot must fit entirely before the window end. The sequence is
// lazy, finite and restartable, and empty when the day is unavailable.
func Slots(w Weekly, date time.Time, slotMinutes int) iter.Seq[Slot] {
	return func(yield func(Slot) bool) {
		if slotMinutes <= 0 {
			return
		}
		win, ok := w.Window(date.Weekday())
		if !ok {
			return
		}

		midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
		step := time.Duration(slotMinutes) * time.Minute
		end := midnight.Add(time.Duration(win.End.Minutes()) * time.Minute)

		for at := midnight.Add(time.Duration(win.Start.Minutes()) * time.Minute); !at.Add(step).After(end); at = at.Add(step) {
			if !yield(Slot{Start: at, Duration: step, Available: true}) {
				return
			}
		}
	}
}

// GenerateSlots collects Slots into a slice.
func GenerateSlots(w Weekly, date time.Time, slotMinutes int) []Slot {
	var out []Slot
	for s := range Slots(w, date, slotMinutes) {
		out = append(out, s)
	}
	return out
}

// SlotAt reports whether a candidate interval begins exactly on a generated
// slot boundary and fits entirely inside that day's window.
func SlotAt(w Weekly, start time.Time, duration time.Duration, slotMinutes int) bool {
	if slotMinutes <= 0 || duration <= 0 {
		return false
	}
	win, ok := w.Window(start.Weekday())
	if !ok {
		return false
	}

	midnight := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	winStart := midnight.Add(time.Duration(win.Start.Minutes()) * time.Minute)
	winEnd := midnight.Add(time.Duration(win.End.Minutes()) * time.Minute)

	if start.Before(winStart) || start.Add(duration).After(winEnd) {
		return false
	}

	step := time.Duration(slotMinutes) * time.Minute
	return start.Sub(winStart)%step == 0
}
