package alarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestAlarmClone verifies that Clone returns a deep copy and handles nil safely.
func TestAlarmClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Alarm)(nil).Clone())

	a := &Alarm{
		ID:    "a1",
		Time:  "07:00",
		Label: "Gym",
		Days:  []time.Weekday{time.Monday, time.Friday},
	}

	b := a.Clone()

	require.Equal(t, a, b)
	require.NotSame(t, a, b)

	// Days must not share the backing array.
	b.Days[0] = time.Sunday
	require.Equal(t, time.Monday, a.Days[0])
}

// TestAlarmOwnedBy checks ownership rules including legacy alarms.
func TestAlarmOwnedBy(t *testing.T) {
	t.Parallel()

	owned := &Alarm{OwnerID: "alice"}
	require.True(t, owned.OwnedBy("alice"))
	require.False(t, owned.OwnedBy("bob"))

	legacy := &Alarm{}
	require.True(t, legacy.IsLegacy())
	require.True(t, legacy.OwnedBy("bob"))
}

// TestNormalizeDays ensures duplicates collapse and order is stable.
func TestNormalizeDays(t *testing.T) {
	t.Parallel()

	got := NormalizeDays([]time.Weekday{time.Friday, time.Monday, time.Friday, time.Sunday})
	require.Equal(t, []time.Weekday{time.Sunday, time.Monday, time.Friday}, got)
	require.Nil(t, NormalizeDays(nil))
}

// TestDraftBuild_Defaults verifies default values applied to a new alarm.
func TestDraftBuild_Defaults(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 12, 6, 0, 0, 0, time.UTC)
	draft := &Draft{
		Time:      "07:00",
		Label:     "Gym",
		Days:      []time.Weekday{1, 2, 3, 4, 5, 5},
		VoiceMood: VoiceMoodMotivational,
	}

	a := draft.Build("id-1", now)

	require.Equal(t, "id-1", a.ID)
	require.Equal(t, DefaultOwnerID, a.OwnerID)
	require.Equal(t, DefaultSound, a.Sound)
	require.Equal(t, DifficultyMedium, a.Difficulty)
	require.True(t, a.Enabled)
	require.Equal(t, DefaultSnoozePolicy(), a.Snooze)
	require.Len(t, a.Days, 5)
	require.Equal(t, now, a.CreatedAt)
	require.Equal(t, now, a.UpdatedAt)
	require.True(t, Validate(a))
}

// TestPatchApply ensures only provided fields change and the source is untouched.
func TestPatchApply(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 10, 12, 6, 0, 0, 0, time.UTC)
	current := (&Draft{
		Time:      "07:00",
		Label:     "Gym",
		Days:      []time.Weekday{time.Monday},
		VoiceMood: VoiceMoodGentle,
	}).Build("id-1", created)

	label := "Run"
	interval := 10
	later := created.Add(time.Hour)

	merged := (&Patch{Label: &label, SnoozeInterval: &interval}).Apply(current, later)

	require.Equal(t, "Run", merged.Label)
	require.Equal(t, 10, merged.Snooze.IntervalMinutes)
	require.Equal(t, "07:00", merged.Time)
	require.Equal(t, later, merged.UpdatedAt)
	require.Equal(t, "Gym", current.Label)
}

// TestAggregate counts events per kind for one alarm.
func TestAggregate(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 10, 12, 7, 0, 0, 0, time.UTC)
	events := []Event{
		{AlarmID: "a", Kind: EventTriggered, OccurredAt: base},
		{AlarmID: "a", Kind: EventSnoozed, OccurredAt: base.Add(time.Minute)},
		{AlarmID: "a", Kind: EventDismissed, OccurredAt: base.Add(2 * time.Minute)},
		{AlarmID: "b", Kind: EventTriggered, OccurredAt: base.Add(time.Hour)},
	}

	stats := Aggregate("a", events)
	require.Equal(t, 1, stats.Triggered)
	require.Equal(t, 1, stats.Snoozed)
	require.Equal(t, 1, stats.Dismissed)
	require.NotNil(t, stats.LastEvent)
	require.Equal(t, base.Add(2*time.Minute), *stats.LastEvent)
}
