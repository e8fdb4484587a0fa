package battle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/alarm-engine/internal/domain/alarm"
)

var createdAt = time.Date(2026, 10, 12, 6, 0, 0, 0, time.UTC)

func sampleRequest() Request {
	return Request{
		ID:       "a1",
		BattleID: "b1",
		Draft: domain.Draft{
			OwnerID:   "alice",
			Time:      "06:30",
			Label:     "Battle",
			Days:      []time.Weekday{time.Monday},
			VoiceMood: domain.VoiceMoodDrillSergeant,
		},
		Now: createdAt,
	}
}

// TestMemoryAdapter_CreateBattleAlarm links the record and disables snoozing.
func TestMemoryAdapter_CreateBattleAlarm(t *testing.T) {
	t.Parallel()

	adapter := NewMemoryAdapter()

	result, err := adapter.CreateBattleAlarm(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Equal(t, "a1", result.ID)
	require.Equal(t, "b1", result.BattleID)
	require.False(t, result.Snooze.Enabled)
	require.True(t, domain.Validate(result))
	require.Len(t, adapter.CallsOf(CallCreate), 1)
}

// TestMemoryAdapter_Hooks records hook calls in order.
func TestMemoryAdapter_Hooks(t *testing.T) {
	t.Parallel()

	var (
		adapter = NewMemoryAdapter()
		ctx     = context.Background()
		req     = sampleRequest()
		a       = req.Draft.Build("a1", createdAt)
		event   = domain.Event{AlarmID: "a1", Kind: domain.EventSnoozed, OccurredAt: createdAt}
	)

	require.NoError(t, adapter.HandleAlarmTrigger(ctx, a))
	require.NoError(t, adapter.HandleAlarmSnooze(ctx, event, "alice", 5))
	require.NoError(t, adapter.UnlinkAlarmFromBattle(ctx, "a1"))

	calls := adapter.Calls()
	require.Len(t, calls, 3)
	require.Equal(t, CallTrigger, calls[0].Method)
	require.Equal(t, CallSnooze, calls[1].Method)
	require.Equal(t, 5, calls[1].Minutes)
	require.Equal(t, "alice", calls[1].Requester)
	require.Equal(t, CallUnlink, calls[2].Method)
}

// TestMemoryAdapter_Err fails every call.
func TestMemoryAdapter_Err(t *testing.T) {
	t.Parallel()

	adapter := NewMemoryAdapter()
	adapter.Err = errors.New("battle service down")

	_, err := adapter.CreateBattleAlarm(context.Background(), sampleRequest())
	require.ErrorIs(t, err, adapter.Err)
	require.ErrorIs(t, adapter.UnlinkAlarmFromBattle(context.Background(), "a1"), adapter.Err)
}

// TestDisabled rejects creation only.
func TestDisabled(t *testing.T) {
	t.Parallel()

	var adapter Adapter = Disabled{}

	_, err := adapter.CreateBattleAlarm(context.Background(), sampleRequest())
	require.ErrorIs(t, err, ErrDisabled)
	require.NoError(t, adapter.HandleAlarmTrigger(context.Background(), &domain.Alarm{ID: "a1"}))
}
