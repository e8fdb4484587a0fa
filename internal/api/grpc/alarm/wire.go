package alarm

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/alarm-engine/internal/domain/alarm"
)

// Battle filters of ListRequest.
const (
	BattleAll  = "all"
	BattleOnly = "only"
	BattleNone = "none"
)

// OwnerRequest addresses a storage partition.
type OwnerRequest struct {
	OwnerID string `json:"owner_id,omitempty"`
}

// ListRequest selects alarms of the working set.
// An empty owner lists every alarm.
type ListRequest struct {
	OwnerID string `json:"owner_id,omitempty"`
	Battle  string `json:"battle,omitempty"`
}

// AlarmRequest addresses one alarm.
type AlarmRequest struct {
	ID        string `json:"id"`
	Requester string `json:"requester,omitempty"`
}

// CreateRequest carries the fields of a new alarm.
type CreateRequest struct {
	OwnerID    string               `json:"owner_id,omitempty"`
	Time       string               `json:"time"`
	Label      string               `json:"label"`
	Days       []time.Weekday       `json:"days"`
	Enabled    *bool                `json:"enabled,omitempty"`
	VoiceMood  domain.VoiceMood     `json:"voice_mood"`
	Sound      string               `json:"sound,omitempty"`
	Difficulty domain.Difficulty    `json:"difficulty,omitempty"`
	Snooze     *domain.SnoozePolicy `json:"snooze,omitempty"`
	// BattleID is required by CreateBattleAlarm and ignored by CreateAlarm.
	BattleID string `json:"battle_id,omitempty"`
}

// Draft converts the request to engine input.
func (r *CreateRequest) Draft() domain.Draft {
	return domain.Draft{
		OwnerID:    r.OwnerID,
		Time:       r.Time,
		Label:      r.Label,
		Days:       r.Days,
		Enabled:    r.Enabled,
		VoiceMood:  r.VoiceMood,
		Sound:      r.Sound,
		Difficulty: r.Difficulty,
		Snooze:     r.Snooze,
	}
}

// UpdateRequest carries a partial update. Absent fields are left unchanged.
type UpdateRequest struct {
	ID             string             `json:"id"`
	Time           *string            `json:"time,omitempty"`
	Label          *string            `json:"label,omitempty"`
	Days           []time.Weekday     `json:"days,omitempty"`
	Enabled        *bool              `json:"enabled,omitempty"`
	VoiceMood      *domain.VoiceMood  `json:"voice_mood,omitempty"`
	Sound          *string            `json:"sound,omitempty"`
	Difficulty     *domain.Difficulty `json:"difficulty,omitempty"`
	SnoozeEnabled  *bool              `json:"snooze_enabled,omitempty"`
	SnoozeInterval *int               `json:"snooze_interval,omitempty"`
	SnoozeMax      *int               `json:"snooze_max,omitempty"`
}

// Patch converts the request to engine input.
func (r *UpdateRequest) Patch() domain.Patch {
	return domain.Patch{
		Time:           r.Time,
		Label:          r.Label,
		Days:           r.Days,
		Enabled:        r.Enabled,
		VoiceMood:      r.VoiceMood,
		Sound:          r.Sound,
		Difficulty:     r.Difficulty,
		SnoozeEnabled:  r.SnoozeEnabled,
		SnoozeInterval: r.SnoozeInterval,
		SnoozeMax:      r.SnoozeMax,
	}
}

// ToggleRequest enables or disables an alarm.
type ToggleRequest struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}

// DismissRequest ends the current occurrence.
type DismissRequest struct {
	ID        string        `json:"id"`
	Method    domain.Method `json:"method,omitempty"`
	Requester string        `json:"requester,omitempty"`
}

// SnoozeRequest postpones the current occurrence.
// Zero minutes use the alarm interval.
type SnoozeRequest struct {
	ID        string `json:"id"`
	Minutes   int    `json:"minutes,omitempty"`
	Requester string `json:"requester,omitempty"`
}

// AlarmsResponse lists alarms.
type AlarmsResponse struct {
	Alarms []*domain.Alarm `json:"alarms"`
}

// AlarmResponse returns one alarm and its lifecycle state.
type AlarmResponse struct {
	Alarm *domain.Alarm `json:"alarm"`
	State domain.State  `json:"state,omitempty"`
}

// SnoozeResponse tells whether the snooze was applied.
type SnoozeResponse struct {
	Applied bool `json:"applied"`
}

// EventsResponse lists history records.
type EventsResponse struct {
	Events []domain.Event `json:"events"`
}

// StatsResponse returns aggregated history.
type StatsResponse struct {
	Stats domain.Stats `json:"stats"`
}

// SignalMessage is streamed by WatchSignals.
type SignalMessage struct {
	Kind   string        `json:"kind"`
	Alarm  *domain.Alarm `json:"alarm,omitempty"`
	Event  string        `json:"event,omitempty"`
	Source string        `json:"source,omitempty"`
	At     time.Time     `json:"at"`
}

// Empty is the response of operations without a result.
type Empty struct{}

var errMessageRequired = errors.New("message is required")

// Encode converts a JSON-tagged value to a Struct message.
func Encode(value any) (*structpb.Struct, error) {
	body, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", value, err)
	}

	message := new(structpb.Struct)
	if err = protojson.Unmarshal(body, message); err != nil {
		return nil, fmt.Errorf("encode %T: %w", value, err)
	}

	return message, nil
}

// Decode fills target from a Struct message.
func Decode(message *structpb.Struct, target any) error {
	if message == nil {
		return errMessageRequired
	}

	body, err := protojson.Marshal(message)
	if err != nil {
		return fmt.Errorf("decode %T: %w", target, err)
	}

	if err = json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode %T: %w", target, err)
	}

	return nil
}
