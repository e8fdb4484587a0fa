package alarm

import (
	"slices"
	"time"
)

// VoiceMood selects the message style consumed by the voice subsystem.
type VoiceMood string

// Known voice moods.
const (
	VoiceMoodMotivational  VoiceMood = "motivational"
	VoiceMoodGentle        VoiceMood = "gentle"
	VoiceMoodDrillSergeant VoiceMood = "drill-sergeant"
	VoiceMoodSweetAngel    VoiceMood = "sweet-angel"
	VoiceMoodAnimeHero     VoiceMood = "anime-hero"
	VoiceMoodSavageRoast   VoiceMood = "savage-roast"
)

// Difficulty is informational to the engine.
type Difficulty string

// Known difficulty levels.
const (
	DifficultyEasy    Difficulty = "easy"
	DifficultyMedium  Difficulty = "medium"
	DifficultyHard    Difficulty = "hard"
	DifficultyNuclear Difficulty = "nuclear"
)

const (
	// DefaultOwnerID is assigned to alarms created without an owner.
	DefaultOwnerID = "default"
	// DefaultSound is the sound reference used when none is given.
	DefaultSound = "default"
	// DefaultDifficulty is used when none is given.
	DefaultDifficulty = DifficultyMedium
	// DefaultSnoozeInterval is the snooze interval in minutes.
	DefaultSnoozeInterval = 5
	// DefaultSnoozeMax is the number of snoozes allowed per occurrence.
	DefaultSnoozeMax = 3
	// MinSnoozeInterval and MaxSnoozeInterval bound the snooze interval in minutes.
	MinSnoozeInterval = 1
	MaxSnoozeInterval = 60
	// MaxLabelLength is the label limit in characters.
	MaxLabelLength = 100
)

// SnoozePolicy controls how an alarm may be postponed.
type SnoozePolicy struct {
	// Enabled allows snoozing at all.
	Enabled bool `json:"enabled"`
	// IntervalMinutes is the default postponement.
	IntervalMinutes int `json:"interval_minutes"`
	// Count is the number of snoozes used in the current occurrence.
	Count int `json:"count"`
	// Max is the number of snoozes allowed per occurrence.
	Max int `json:"max"`
}

// DefaultSnoozePolicy returns the policy applied to new alarms.
func DefaultSnoozePolicy() SnoozePolicy {
	return SnoozePolicy{
		Enabled:         true,
		IntervalMinutes: DefaultSnoozeInterval,
		Count:           0,
		Max:             DefaultSnoozeMax,
	}
}

// Alarm is a recurring wake-time definition owned by a user.
type Alarm struct {
	// ID is generated at creation and never changes.
	ID string `json:"id"`
	// OwnerID is empty for legacy alarms created before ownership tracking.
	OwnerID string `json:"owner_id,omitempty"`
	// Time is the local time of day in HH:MM 24-hour format.
	Time string `json:"time"`
	// Label is free text, 1 to 100 characters.
	Label string `json:"label"`
	// Days holds weekdays the alarm repeats on, 0 is Sunday.
	Days []time.Weekday `json:"days"`
	// Enabled alarms are matched by the trigger scan.
	Enabled bool `json:"enabled"`
	// VoiceMood selects the wake-up message style.
	VoiceMood VoiceMood `json:"voice_mood"`
	// Sound is an opaque sound reference.
	Sound string `json:"sound"`
	// Difficulty is informational.
	Difficulty Difficulty `json:"difficulty"`
	// Snooze is the postponement policy and its usage counter.
	Snooze SnoozePolicy `json:"snooze"`
	// BattleID links the alarm to an external battle aggregate.
	BattleID string `json:"battle_id,omitempty"`
	// CreatedAt is the creation time.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is refreshed on every mutation.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive mirrors Enabled.
func (a *Alarm) IsActive() bool {
	return a.Enabled
}

// IsLegacy reports whether the alarm predates ownership tracking.
func (a *Alarm) IsLegacy() bool {
	return a.OwnerID == ""
}

// IsBattleLinked reports whether the alarm belongs to a battle.
func (a *Alarm) IsBattleLinked() bool {
	return a.BattleID != ""
}

// OwnedBy reports whether requester may act on the alarm.
// Legacy alarms are accessible to everyone.
func (a *Alarm) OwnedBy(requesterID string) bool {
	return a.IsLegacy() || a.OwnerID == requesterID
}

// Touch refreshes UpdatedAt.
func (a *Alarm) Touch(now time.Time) {
	a.UpdatedAt = now
}

// Clone returns a deep copy of the alarm.
func (a *Alarm) Clone() *Alarm {
	if a == nil {
		return nil
	}

	cloned := *a
	cloned.Days = slices.Clone(a.Days)

	return &cloned
}

// NormalizeDays sorts days and collapses duplicates.
func NormalizeDays(days []time.Weekday) []time.Weekday {
	if days == nil {
		return nil
	}

	result := slices.Clone(days)
	slices.Sort(result)

	return slices.Compact(result)
}
