package alarm

import "time"

// Draft carries caller-supplied fields for a new alarm.
// Zero values are replaced with defaults by the engine.
type Draft struct {
	OwnerID    string
	Time       string
	Label      string
	Days       []time.Weekday
	Enabled    *bool
	VoiceMood  VoiceMood
	Sound      string
	Difficulty Difficulty
	// Snooze overrides the default policy when set; Count is ignored.
	Snooze   *SnoozePolicy
	BattleID string
}

// Build fills defaults and returns a new record with the given id.
func (d *Draft) Build(id string, now time.Time) *Alarm {
	result := &Alarm{
		ID:         id,
		OwnerID:    d.OwnerID,
		Time:       d.Time,
		Label:      d.Label,
		Days:       NormalizeDays(d.Days),
		Enabled:    true,
		VoiceMood:  d.VoiceMood,
		Sound:      d.Sound,
		Difficulty: d.Difficulty,
		Snooze:     DefaultSnoozePolicy(),
		BattleID:   d.BattleID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if result.OwnerID == "" {
		result.OwnerID = DefaultOwnerID
	}

	if d.Enabled != nil {
		result.Enabled = *d.Enabled
	}

	if result.Sound == "" {
		result.Sound = DefaultSound
	}

	if result.Difficulty == "" {
		result.Difficulty = DefaultDifficulty
	}

	if d.Snooze != nil {
		result.Snooze = SnoozePolicy{
			Enabled:         d.Snooze.Enabled,
			IntervalMinutes: d.Snooze.IntervalMinutes,
			Max:             d.Snooze.Max,
		}

		if result.Snooze.IntervalMinutes == 0 {
			result.Snooze.IntervalMinutes = DefaultSnoozeInterval
		}
	}

	return result
}

// Patch describes a partial update. Nil fields are left unchanged.
type Patch struct {
	Time           *string
	Label          *string
	Days           []time.Weekday
	Enabled        *bool
	VoiceMood      *VoiceMood
	Sound          *string
	Difficulty     *Difficulty
	SnoozeEnabled  *bool
	SnoozeInterval *int
	SnoozeMax      *int
}

// Apply merges the patch into a copy of the alarm.
func (p *Patch) Apply(current *Alarm, now time.Time) *Alarm {
	merged := current.Clone()

	if p.Time != nil {
		merged.Time = *p.Time
	}

	if p.Label != nil {
		merged.Label = *p.Label
	}

	if p.Days != nil {
		merged.Days = NormalizeDays(p.Days)
	}

	if p.Enabled != nil {
		merged.Enabled = *p.Enabled
	}

	if p.VoiceMood != nil {
		merged.VoiceMood = *p.VoiceMood
	}

	if p.Sound != nil {
		merged.Sound = *p.Sound
	}

	if p.Difficulty != nil {
		merged.Difficulty = *p.Difficulty
	}

	if p.SnoozeEnabled != nil {
		merged.Snooze.Enabled = *p.SnoozeEnabled
	}

	if p.SnoozeInterval != nil {
		merged.Snooze.IntervalMinutes = *p.SnoozeInterval
	}

	if p.SnoozeMax != nil {
		merged.Snooze.Max = *p.SnoozeMax
	}

	merged.Touch(now)

	return merged
}
