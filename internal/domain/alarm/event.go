package alarm

import "time"

// EventKind tells what happened to an alarm occurrence.
type EventKind string

// Event kinds.
const (
	EventTriggered EventKind = "triggered"
	EventDismissed EventKind = "dismissed"
	EventSnoozed   EventKind = "snoozed"
)

// Method tells how a user interaction was performed.
type Method string

// Interaction methods.
const (
	MethodVoice     Method = "voice"
	MethodButton    Method = "button"
	MethodShake     Method = "shake"
	MethodChallenge Method = "challenge"
	MethodTimeout   Method = "timeout"
	MethodSystem    Method = "system"
)

// Event is an append-only history record of an alarm occurrence.
type Event struct {
	// ID is unique per event.
	ID string `json:"id"`
	// AlarmID references the alarm.
	AlarmID string `json:"alarm_id"`
	// Kind is triggered, dismissed or snoozed.
	Kind EventKind `json:"kind"`
	// Method is how the interaction happened.
	Method Method `json:"method,omitempty"`
	// OccurredAt is the event time.
	OccurredAt time.Time `json:"occurred_at"`
	// OwnerID identifies who caused the event.
	OwnerID string `json:"owner_id,omitempty"`
	// SnoozeMinutes is set for snooze events.
	SnoozeMinutes int `json:"snooze_minutes,omitempty"`
}

// Stats aggregates events of one alarm by kind.
type Stats struct {
	AlarmID   string     `json:"alarm_id"`
	Triggered int        `json:"triggered"`
	Dismissed int        `json:"dismissed"`
	Snoozed   int        `json:"snoozed"`
	LastEvent *time.Time `json:"last_event,omitempty"`
}

// Aggregate counts events that belong to alarmID.
func Aggregate(alarmID string, events []Event) Stats {
	stats := Stats{AlarmID: alarmID}

	for i := range events {
		event := &events[i]
		if event.AlarmID != alarmID {
			continue
		}

		switch event.Kind {
		case EventTriggered:
			stats.Triggered++
		case EventDismissed:
			stats.Dismissed++
		case EventSnoozed:
			stats.Snoozed++
		}

		if stats.LastEvent == nil || event.OccurredAt.After(*stats.LastEvent) {
			at := event.OccurredAt
			stats.LastEvent = &at
		}
	}

	return stats
}
