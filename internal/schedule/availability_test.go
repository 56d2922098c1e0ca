package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-01-15 is a Monday.
var monday = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func weekly(start, end string) Weekly {
	return Weekly{
		"monday": DayWindow{
			Start:     MustTimeOfDay(start),
			End:       MustTimeOfDay(end),
			Available: true,
		},
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "09:00", want: TimeOfDay{Hour: 9}},
		{in: "9:30", want: TimeOfDay{Hour: 9, Minute: 30}},
		{in: "23:59", want: TimeOfDay{Hour: 23, Minute: 59}},
		{in: "24:00", wantErr: true},
		{in: "10:60", wantErr: true},
		{in: "noon", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseTimeOfDay(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestTimeOfDayJSONRoundTrip(t *testing.T) {
	w := weekly("09:00", "12:30")

	raw, err := json.Marshal(w)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"09:00"`)
	assert.Contains(t, string(raw), `"12:30"`)

	var back Weekly
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, w, back)
}

func TestGenerateSlotsMorningWindow(t *testing.T) {
	// 09:00-12:00 at 30 minutes is exactly six slots.
	slots := GenerateSlots(weekly("09:00", "12:00"), monday, 30)
	require.Len(t, slots, 6)

	for i, s := range slots {
		want := monday.Add(9*time.Hour + time.Duration(i)*30*time.Minute)
		assert.True(t, s.Start.Equal(want), "slot %d starts at %s, want %s", i, s.Start, want)
		assert.Equal(t, 30*time.Minute, s.Duration)
		assert.True(t, s.Available)
	}
	last := slots[len(slots)-1]
	assert.True(t, last.End().Equal(monday.Add(12*time.Hour)))
}

func TestGenerateSlotsTrailingPartialExcluded(t *testing.T) {
	// The window ends at 10:45; the 10:30 slot would run past it.
	slots := GenerateSlots(weekly("09:00", "10:45"), monday, 30)
	require.Len(t, slots, 3)
	assert.True(t, slots[2].Start.Equal(monday.Add(10*time.Hour)))
}

func TestGenerateSlotsUnavailableDay(t *testing.T) {
	w := Weekly{
		"monday": DayWindow{
			Start:     MustTimeOfDay("09:00"),
			End:       MustTimeOfDay("17:00"),
			Available: false,
		},
	}
	assert.Empty(t, GenerateSlots(w, monday, 30))
}

func TestGenerateSlotsMissingDay(t *testing.T) {
	w := weekly("09:00", "17:00")
	tuesday := monday.AddDate(0, 0, 1)
	assert.Empty(t, GenerateSlots(w, tuesday, 30))
}

func TestGenerateSlotsDegenerateWindow(t *testing.T) {
	assert.Empty(t, GenerateSlots(weekly("12:00", "12:00"), monday, 30))
	assert.Empty(t, GenerateSlots(weekly("12:00", "09:00"), monday, 30))
	assert.Empty(t, GenerateSlots(weekly("09:00", "17:00"), monday, 0))
}

func TestSlotsSequenceIsRestartable(t *testing.T) {
	seq := Slots(weekly("09:00", "11:00"), monday, 30)

	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	assert.Equal(t, 4, first)
	assert.Equal(t, first, second)
}

func TestSlotsSequenceEarlyStop(t *testing.T) {
	var got []Slot
	for s := range Slots(weekly("09:00", "17:00"), monday, 30) {
		got = append(got, s)
		if len(got) == 2 {
			break
		}
	}
	require.Len(t, got, 2)
	assert.True(t, got[1].Start.Equal(monday.Add(9*time.Hour+30*time.Minute)))
}

func TestSlotAt(t *testing.T) {
	w := weekly("09:00", "17:00")

	tests := []struct {
		name     string
		start    time.Time
		duration time.Duration
		want     bool
	}{
		{"window start", monday.Add(9 * time.Hour), 30 * time.Minute, true},
		{"aligned mid-day", monday.Add(10 * time.Hour), 60 * time.Minute, true},
		{"last slot fits exactly", monday.Add(16*time.Hour + 30*time.Minute), 30 * time.Minute, true},
		{"runs past window end", monday.Add(16*time.Hour + 30*time.Minute), 60 * time.Minute, false},
		{"off the slot grid", monday.Add(9*time.Hour + 15*time.Minute), 30 * time.Minute, false},
		{"before window opens", monday.Add(8 * time.Hour), 30 * time.Minute, false},
		{"unavailable day", monday.AddDate(0, 0, 1).Add(10 * time.Hour), 30 * time.Minute, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SlotAt(w, tc.start, tc.duration, 30))
		})
	}
}
