package alarm

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Validate reports whether the candidate is acceptable for persistence.
// It never mutates the candidate.
func Validate(candidate *Alarm) bool {
	if candidate == nil {
		return false
	}

	if candidate.ID == "" || candidate.Time == "" || candidate.Label == "" ||
		candidate.VoiceMood == "" || len(candidate.Days) == 0 {
		return false
	}

	if _, _, ok := ParseTimeOfDay(candidate.Time); !ok {
		return false
	}

	for _, day := range candidate.Days {
		if day < time.Sunday || day > time.Saturday {
			return false
		}
	}

	if utf8.RuneCountInString(candidate.Label) > MaxLabelLength {
		return false
	}

	snooze := candidate.Snooze
	if snooze.IntervalMinutes != 0 &&
		(snooze.IntervalMinutes < MinSnoozeInterval || snooze.IntervalMinutes > MaxSnoozeInterval) {
		return false
	}

	if snooze.Count < 0 || snooze.Max < 0 || snooze.Count > snooze.Max {
		return false
	}

	return true
}

// ParseTimeOfDay parses an HH:MM 24-hour value.
func ParseTimeOfDay(value string) (hour, minute int, ok bool) {
	hh, mm, found := strings.Cut(value, ":")
	if !found || len(hh) != 2 || len(mm) != 2 {
		return 0, 0, false
	}

	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}

	minute, err = strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}

	return hour, minute, true
}
