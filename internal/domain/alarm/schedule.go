package alarm

import (
	"slices"
	"time"
)

// daysPerWeek bounds the next-occurrence search.
const daysPerWeek = 7

// RunsOn reports whether the alarm repeats on the given weekday.
func (a *Alarm) RunsOn(day time.Weekday) bool {
	return slices.Contains(a.Days, day)
}

// Matches reports whether an enabled alarm fires at the minute of now.
func (a *Alarm) Matches(now time.Time) bool {
	if !a.Enabled || !a.RunsOn(now.Weekday()) {
		return false
	}

	hour, minute, ok := ParseTimeOfDay(a.Time)
	if !ok {
		return false
	}

	return now.Hour() == hour && now.Minute() == minute
}

// NextOccurrence returns the first fire time strictly after from,
// computed in from's location. It reports false when the alarm has
// no parsable time or no days.
func (a *Alarm) NextOccurrence(from time.Time) (time.Time, bool) {
	hour, minute, ok := ParseTimeOfDay(a.Time)
	if !ok || len(a.Days) == 0 {
		return time.Time{}, false
	}

	year, month, day := from.Date()

	for offset := 0; offset <= daysPerWeek; offset++ {
		candidate := time.Date(year, month, day+offset, hour, minute, 0, 0, from.Location())
		if !candidate.After(from) {
			continue
		}

		if a.RunsOn(candidate.Weekday()) {
			return candidate, true
		}
	}

	return time.Time{}, false
}
