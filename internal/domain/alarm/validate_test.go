package alarm

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validAlarm() *Alarm {
	return &Alarm{
		ID:        "a1",
		OwnerID:   "alice",
		Time:      "07:00",
		Label:     "Gym",
		Days:      []time.Weekday{time.Monday},
		Enabled:   true,
		VoiceMood: VoiceMoodMotivational,
		Snooze:    DefaultSnoozePolicy(),
	}
}

// TestValidate_AcceptsAllDaySubsets walks every non-empty subset of the week.
func TestValidate_AcceptsAllDaySubsets(t *testing.T) {
	t.Parallel()

	for mask := 1; mask < 1<<7; mask++ {
		var days []time.Weekday

		for day := time.Sunday; day <= time.Saturday; day++ {
			if mask&(1<<day) != 0 {
				days = append(days, day)
			}
		}

		a := validAlarm()
		a.Days = days
		require.True(t, Validate(a), "mask %07b", mask)
	}
}

// TestValidate_AcceptsTimeBounds checks the edges of the 24-hour range.
func TestValidate_AcceptsTimeBounds(t *testing.T) {
	t.Parallel()

	for _, value := range []string{"00:00", "23:59", "12:30"} {
		a := validAlarm()
		a.Time = value
		require.True(t, Validate(a), value)
	}
}

// TestValidate_Rejects lists shapes that must never be persisted.
func TestValidate_Rejects(t *testing.T) {
	t.Parallel()

	cases := map[string]func(a *Alarm){
		"missing id":         func(a *Alarm) { a.ID = "" },
		"missing time":       func(a *Alarm) { a.Time = "" },
		"missing label":      func(a *Alarm) { a.Label = "" },
		"missing voice mood": func(a *Alarm) { a.VoiceMood = "" },
		"empty days":         func(a *Alarm) { a.Days = nil },
		"hour out of range":  func(a *Alarm) { a.Time = "24:00" },
		"minute overflow":    func(a *Alarm) { a.Time = "07:60" },
		"not a time":         func(a *Alarm) { a.Time = "seven" },
		"single digit hour":  func(a *Alarm) { a.Time = "7:00" },
		"day above range":    func(a *Alarm) { a.Days = []time.Weekday{7} },
		"negative day":       func(a *Alarm) { a.Days = []time.Weekday{-1} },
		"long label":         func(a *Alarm) { a.Label = strings.Repeat("x", MaxLabelLength+1) },
		"interval too small": func(a *Alarm) { a.Snooze.IntervalMinutes = -1 },
		"interval too large": func(a *Alarm) { a.Snooze.IntervalMinutes = 61 },
		"count above max":    func(a *Alarm) { a.Snooze.Count = a.Snooze.Max + 1 },
	}

	for name, mutate := range cases {
		a := validAlarm()
		mutate(a)
		require.False(t, Validate(a), name)
	}

	require.False(t, Validate(nil))
}

// TestValidate_LabelLimitCountsCharacters ensures multi-byte labels are measured in runes.
func TestValidate_LabelLimitCountsCharacters(t *testing.T) {
	t.Parallel()

	a := validAlarm()
	a.Label = strings.Repeat("é", MaxLabelLength)
	require.True(t, Validate(a))
}

// TestParseTimeOfDay verifies successful parsing.
func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()

	hour, minute, ok := ParseTimeOfDay("06:45")
	require.True(t, ok)
	require.Equal(t, 6, hour)
	require.Equal(t, 45, minute)
}
