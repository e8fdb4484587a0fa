package alarm

// State is the lifecycle position of a single alarm instance.
type State string

// Lifecycle states.
const (
	StateScheduled State = "scheduled"
	StateTriggered State = "triggered"
	StateSnoozed   State = "snoozed"
	StateDismissed State = "dismissed"
	StateDisabled  State = "disabled"
)

// transitions lists the allowed moves out of every state.
// Disabled is reachable from anywhere through toggle. A scheduled alarm may be
// snoozed or dismissed directly when the interaction comes from a delivered
// notification before the scan observed the trigger.
//
//nolint:gochecknoglobals // Static transition table.
var transitions = map[State][]State{
	StateScheduled: {StateTriggered, StateSnoozed, StateDismissed, StateDisabled, StateScheduled},
	StateTriggered: {StateDismissed, StateSnoozed, StateTriggered, StateDisabled, StateScheduled},
	StateSnoozed:   {StateTriggered, StateSnoozed, StateDismissed, StateDisabled, StateScheduled},
	StateDismissed: {StateTriggered, StateScheduled, StateDisabled},
	StateDisabled:  {StateScheduled, StateDisabled},
}

// CanTransition reports whether moving from one state to another is allowed.
func CanTransition(from, to State) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}

	return false
}

// InitialState returns the state an alarm starts in.
func InitialState(a *Alarm) State {
	if a == nil || !a.Enabled {
		return StateDisabled
	}

	return StateScheduled
}
