package battle

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/oshokin/alarm-engine/internal/domain/alarm"
)

// Request asks the battle service to build an alarm for a battle.
type Request struct {
	// ID is the identifier the engine reserved for the new alarm.
	ID string `json:"id"`
	// BattleID is the battle the alarm joins.
	BattleID string `json:"battle_id"`
	// Draft holds the caller-supplied alarm fields.
	Draft domain.Draft `json:"draft"`
	// Now is the creation time.
	Now time.Time `json:"now"`
}

// Adapter is the contract of the battle service used by the engine.
type Adapter interface {
	CreateBattleAlarm(ctx context.Context, req Request) (*domain.Alarm, error)
	HandleAlarmTrigger(ctx context.Context, alarm *domain.Alarm) error
	HandleAlarmDismissal(ctx context.Context, event domain.Event, requester string, at time.Time, method domain.Method) error
	HandleAlarmSnooze(ctx context.Context, event domain.Event, requester string, minutes int) error
	UnlinkAlarmFromBattle(ctx context.Context, alarmID string) error
}

// ErrDisabled is returned when battle features are not configured.
var ErrDisabled = errors.New("battle service is not configured")

// Call is a recorded adapter invocation.
type Call struct {
	Method    string
	AlarmID   string
	Requester string
	Minutes   int
	At        time.Time
	Kind      domain.EventKind
}

// Adapter method names recorded by MemoryAdapter.
const (
	CallCreate    = "create"
	CallTrigger   = "trigger"
	CallDismissal = "dismissal"
	CallSnooze    = "snooze"
	CallUnlink    = "unlink"
)

// MemoryAdapter builds battle alarms locally and records every call.
type MemoryAdapter struct {
	// AllowSnooze keeps snoozing enabled on built alarms.
	AllowSnooze bool
	// Mutate, when set, alters every built alarm before it is returned.
	Mutate func(*domain.Alarm)
	// Err, when set, is returned by every call.
	Err error

	mu    sync.Mutex
	calls []Call
}

// NewMemoryAdapter creates a recorder with snoozing disabled on battle alarms.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{}
}

// CreateBattleAlarm builds the alarm from the draft and links it to the battle.
func (m *MemoryAdapter) CreateBattleAlarm(_ context.Context, req Request) (*domain.Alarm, error) {
	m.record(Call{Method: CallCreate, AlarmID: req.ID, At: req.Now})

	if m.Err != nil {
		return nil, m.Err
	}

	result := req.Draft.Build(req.ID, req.Now)
	result.BattleID = req.BattleID
	result.Snooze.Enabled = m.AllowSnooze

	if m.Mutate != nil {
		m.Mutate(result)
	}

	return result, nil
}

// HandleAlarmTrigger records the trigger.
func (m *MemoryAdapter) HandleAlarmTrigger(_ context.Context, alarm *domain.Alarm) error {
	m.record(Call{Method: CallTrigger, AlarmID: alarm.ID, Kind: domain.EventTriggered})

	return m.Err
}

// HandleAlarmDismissal records the dismissal.
func (m *MemoryAdapter) HandleAlarmDismissal(
	_ context.Context,
	event domain.Event,
	requester string,
	at time.Time,
	_ domain.Method,
) error {
	m.record(Call{
		Method:    CallDismissal,
		AlarmID:   event.AlarmID,
		Requester: requester,
		At:        at,
		Kind:      event.Kind,
	})

	return m.Err
}

// HandleAlarmSnooze records the snooze.
func (m *MemoryAdapter) HandleAlarmSnooze(_ context.Context, event domain.Event, requester string, minutes int) error {
	m.record(Call{
		Method:    CallSnooze,
		AlarmID:   event.AlarmID,
		Requester: requester,
		Minutes:   minutes,
		At:        event.OccurredAt,
		Kind:      event.Kind,
	})

	return m.Err
}

// UnlinkAlarmFromBattle records the unlink.
func (m *MemoryAdapter) UnlinkAlarmFromBattle(_ context.Context, alarmID string) error {
	m.record(Call{Method: CallUnlink, AlarmID: alarmID})

	return m.Err
}

// Calls returns the recorded calls in order.
func (m *MemoryAdapter) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Call(nil), m.calls...)
}

// CallsOf returns the recorded calls of one method.
func (m *MemoryAdapter) CallsOf(method string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Call

	for _, call := range m.calls {
		if call.Method == method {
			result = append(result, call)
		}
	}

	return result
}

func (m *MemoryAdapter) record(call Call) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, call)
}

// Disabled rejects battle alarm creation and ignores hooks.
type Disabled struct{}

// CreateBattleAlarm always fails with ErrDisabled.
func (Disabled) CreateBattleAlarm(context.Context, Request) (*domain.Alarm, error) {
	return nil, ErrDisabled
}

// HandleAlarmTrigger does nothing.
func (Disabled) HandleAlarmTrigger(context.Context, *domain.Alarm) error { return nil }

// HandleAlarmDismissal does nothing.
func (Disabled) HandleAlarmDismissal(context.Context, domain.Event, string, time.Time, domain.Method) error {
	return nil
}

// HandleAlarmSnooze does nothing.
func (Disabled) HandleAlarmSnooze(context.Context, domain.Event, string, int) error { return nil }

// UnlinkAlarmFromBattle does nothing.
func (Disabled) UnlinkAlarmFromBattle(context.Context, string) error { return nil }
