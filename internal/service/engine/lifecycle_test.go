package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-engine/internal/config"
	domain "github.com/oshokin/alarm-engine/internal/domain/alarm"
)

func eventsOf(t *testing.T, f *fixture, owner string, kind domain.EventKind) []domain.Event {
	t.Helper()

	events, err := f.engine.ListEvents(context.Background(), owner)
	require.NoError(t, err)

	var result []domain.Event

	for _, event := range events {
		if event.Kind == kind {
			result = append(result, event)
		}
	}

	return result
}

// TestScanOnce_TriggersExactlyOnce fires one signal and one event per match window.
func TestScanOnce_TriggersExactlyOnce(t *testing.T) {
	t.Parallel()

	var (
		f       = newFixture(t)
		ctx     = context.Background()
		created = f.create(t, "alice")
		sub     = f.engine.Subscribe()
	)

	got, _ := f.engine.GetByID(created.ID)
	require.True(t, got.Enabled)
	require.Equal(t, 0, got.Snooze.Count)

	require.Equal(t, 0, f.engine.ScanOnce(ctx))

	f.clock.Set(monday0700)
	require.Equal(t, 1, f.engine.ScanOnce(ctx))

	f.clock.Set(monday0700.Add(30 * time.Second))
	require.Equal(t, 0, f.engine.ScanOnce(ctx))

	signal := <-sub.C()
	require.Equal(t, SignalTriggered, signal.Kind)
	require.Equal(t, created.ID, signal.Alarm.ID)

	select {
	case extra := <-sub.C():
		require.FailNow(t, "unexpected signal", "%+v", extra)
	default:
	}

	triggered := eventsOf(t, f, "alice", domain.EventTriggered)
	require.Len(t, triggered, 1)
	require.Equal(t, created.ID, triggered[0].AlarmID)
	require.Equal(t, monday0700, triggered[0].OccurredAt)

	state, _ := f.engine.GetState(created.ID)
	require.Equal(t, domain.StateTriggered, state)

	// Next day, same minute.
	f.clock.Set(monday0700.AddDate(0, 0, 1))
	require.Equal(t, 1, f.engine.ScanOnce(ctx))
}

// TestScanOnce_SkipsNonMatching ignores other days, minutes and disabled alarms.
func TestScanOnce_SkipsNonMatching(t *testing.T) {
	t.Parallel()

	var (
		f       = newFixture(t)
		ctx     = context.Background()
		created = f.create(t, "alice")
	)

	// Saturday.
	f.clock.Set(monday0700.AddDate(0, 0, 5))
	require.Equal(t, 0, f.engine.ScanOnce(ctx))

	f.clock.Set(monday0700.Add(time.Minute))
	require.Equal(t, 0, f.engine.ScanOnce(ctx))

	_, err := f.engine.Toggle(ctx, created.ID, false)
	require.NoError(t, err)

	f.clock.Set(monday0700)
	require.Equal(t, 0, f.engine.ScanOnce(ctx))
	require.Empty(t, eventsOf(t, f, "alice", domain.EventTriggered))
}

// TestScanOnce_SkipsHandledOccurrence does not ring an occurrence that was
// dismissed or snoozed from its notification before the scan ran.
func TestScanOnce_SkipsHandledOccurrence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		handle func(t *testing.T, f *fixture, id string)
		// next is the first moment the alarm rings again.
		next time.Time
	}{
		{
			name: "dismiss",
			handle: func(t *testing.T, f *fixture, id string) {
				t.Helper()

				require.NoError(t, f.engine.Dismiss(context.Background(), id, domain.MethodButton, "alice"))
			},
			next: monday0700.AddDate(0, 0, 1),
		},
		{
			name: "snooze",
			handle: func(t *testing.T, f *fixture, id string) {
				t.Helper()

				applied, err := f.engine.Snooze(context.Background(), id, 10, "alice")
				require.NoError(t, err)
				require.True(t, applied)
			},
			next: monday0700.Add(10*time.Minute + 5*time.Second),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var (
				f       = newFixture(t)
				ctx     = context.Background()
				created = f.create(t, "alice")
				sub     = f.engine.Subscribe()
			)

			f.clock.Set(monday0700.Add(5 * time.Second))
			tt.handle(t, f, created.ID)

			f.clock.Set(monday0700.Add(30 * time.Second))
			require.Equal(t, 0, f.engine.ScanOnce(ctx))
			require.Empty(t, eventsOf(t, f, "alice", domain.EventTriggered))

			select {
			case extra := <-sub.C():
				require.FailNow(t, "unexpected signal", "%+v", extra)
			default:
			}

			f.clock.Set(tt.next)
			require.Equal(t, 1, f.engine.ScanOnce(ctx))
		})
	}
}

// TestSnooze_Reschedules increments the count and reschedules minutes out.
func TestSnooze_Reschedules(t *testing.T) {
	t.Parallel()

	var (
		f       = newFixture(t)
		ctx     = context.Background()
		created = f.create(t, "alice")
	)

	f.clock.Set(monday0700)
	require.Equal(t, 1, f.engine.ScanOnce(ctx))

	applied, err := f.engine.Snooze(ctx, created.ID, 10, "alice")
	require.NoError(t, err)
	require.True(t, applied)

	got, _ := f.engine.GetByID(created.ID)
	require.Equal(t, 1, got.Snooze.Count)
	require.Equal(t, 1, f.repo.Stored("alice")[0].Snooze.Count)

	pending, ok := f.notifier.Pending(created.ID)
	require.True(t, ok)
	require.Equal(t, monday0700.Add(10*time.Minute), pending.FireAt)
	require.True(t, pending.Payload.Snoozed)

	state, _ := f.engine.GetState(created.ID)
	require.Equal(t, domain.StateSnoozed, state)

	snoozed := eventsOf(t, f, "alice", domain.EventSnoozed)
	require.Len(t, snoozed, 1)
	require.Equal(t, 10, snoozed[0].SnoozeMinutes)

	// The snooze deadline re-triggers the alarm once.
	f.clock.Set(monday0700.Add(9 * time.Minute))
	require.Equal(t, 0, f.engine.ScanOnce(ctx))

	f.clock.Set(monday0700.Add(10 * time.Minute))
	require.Equal(t, 1, f.engine.ScanOnce(ctx))
	require.Equal(t, 0, f.engine.ScanOnce(ctx))

	state, _ = f.engine.GetState(created.ID)
	require.Equal(t, domain.StateTriggered, state)
}

// TestSnooze_DefaultInterval falls back to the alarm interval.
func TestSnooze_DefaultInterval(t *testing.T) {
	t.Parallel()

	var (
		f       = newFixture(t)
		ctx     = context.Background()
		created = f.create(t, "alice")
	)

	applied, err := f.engine.Snooze(ctx, created.ID, 0, "alice")
	require.NoError(t, err)
	require.True(t, applied)

	pending, _ := f.notifier.Pending(created.ID)
	require.Equal(t, sunday1200.Add(5*time.Minute), pending.FireAt)

	_, err = f.engine.Snooze(ctx, created.ID, 61, "alice")
	require.ErrorIs(t, err, domain.ErrInvalidAlarmData)
}

// TestSnooze_Exhausted stops at max without rescheduling.
func TestSnooze_Exhausted(t *testing.T) {
	t.Parallel()

	var (
		f       = newFixture(t)
		ctx     = context.Background()
		created = f.create(t, "alice")
	)

	for range domain.DefaultSnoozeMax {
		applied, err := f.engine.Snooze(ctx, created.ID, 0, "alice")
		require.NoError(t, err)
		require.True(t, applied)
	}

	got, _ := f.engine.GetByID(created.ID)
	require.Equal(t, 3, got.Snooze.Count)

	schedules := f.notifier.ScheduleCalls()
	stores := f.repo.StoreCalls()

	applied, err := f.engine.Snooze(ctx, created.ID, 0, "alice")
	require.NoError(t, err)
	require.False(t, applied)

	got, _ = f.engine.GetByID(created.ID)
	require.Equal(t, 3, got.Snooze.Count)
	require.Equal(t, schedules, f.notifier.ScheduleCalls())
	require.Equal(t, stores, f.repo.StoreCalls())
}

// TestSnooze_PolicyGuards treats disabled snoozing and unknown ids as no-ops.
func TestSnooze_PolicyGuards(t *testing.T) {
	t.Parallel()

	var (
		f     = newFixture(t)
		ctx   = context.Background()
		draft = gymDraft("alice")
	)

	draft.Snooze = &domain.SnoozePolicy{Enabled: false, IntervalMinutes: 5, Max: 3}

	created, err := f.engine.Create(ctx, draft)
	require.NoError(t, err)

	applied, err := f.engine.Snooze(ctx, created.ID, 5, "alice")
	require.NoError(t, err)
	require.False(t, applied)

	applied, err = f.engine.Snooze(ctx, "missing", 5, "alice")
	require.NoError(t, err)
	require.False(t, applied)

	got, _ := f.engine.GetByID(created.ID)
	require.Equal(t, 0, got.Snooze.Count)
}

// TestDismiss_ResetsCount resets the counter and schedules the next occurrence.
func TestDismiss_ResetsCount(t *testing.T) {
	t.Parallel()

	var (
		f       = newFixture(t)
		ctx     = context.Background()
		created = f.create(t, "alice")
	)

	f.clock.Set(monday0700)
	require.Equal(t, 1, f.engine.ScanOnce(ctx))

	for range 2 {
		_, err := f.engine.Snooze(ctx, created.ID, 5, "alice")
		require.NoError(t, err)
	}

	require.NoError(t, f.engine.Dismiss(ctx, created.ID, domain.MethodVoice, "alice"))

	got, _ := f.engine.GetByID(created.ID)
	require.Equal(t, 0, got.Snooze.Count)
	require.Equal(t, 0, f.repo.Stored("alice")[0].Snooze.Count)

	state, _ := f.engine.GetState(created.ID)
	require.Equal(t, domain.StateDismissed, state)

	pending, _ := f.notifier.Pending(created.ID)
	require.Equal(t, monday0700.AddDate(0, 0, 1), pending.FireAt)
	require.False(t, pending.Payload.Snoozed)

	dismissed := eventsOf(t, f, "alice", domain.EventDismissed)
	require.Len(t, dismissed, 1)
	require.Equal(t, domain.MethodVoice, dismissed[0].Method)

	// A dismissed occurrence no longer snoozes.
	applied, err := f.engine.Snooze(ctx, created.ID, 5, "alice")
	require.NoError(t, err)
	require.False(t, applied)

	// Repeated and unknown dismissals are accepted.
	require.NoError(t, f.engine.Dismiss(ctx, created.ID, "", "alice"))
	require.NoError(t, f.engine.Dismiss(ctx, "missing", domain.MethodButton, "alice"))
}

// TestDismiss_RateLimit guards dismiss before any mutation.
func TestDismiss_RateLimit(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(s *Settings) {
		s.Budgets[config.OperationDismiss] = config.Budget{MaxCalls: 1, Window: time.Minute}
	})
	ctx := context.Background()
	created := f.create(t, "alice")

	require.NoError(t, f.engine.Dismiss(ctx, created.ID, domain.MethodButton, "alice"))
	require.ErrorIs(t, f.engine.Dismiss(ctx, created.ID, domain.MethodButton, "alice"), domain.ErrRateLimitExceeded)
	require.Len(t, eventsOf(t, f, "alice", domain.EventDismissed), 1)
}

// TestEventStats aggregates an owned alarm and guards foreign ones.
func TestEventStats(t *testing.T) {
	t.Parallel()

	var (
		f       = newFixture(t)
		ctx     = context.Background()
		created = f.create(t, "alice")
	)

	f.clock.Set(monday0700)
	f.engine.ScanOnce(ctx)

	_, err := f.engine.Snooze(ctx, created.ID, 5, "alice")
	require.NoError(t, err)
	require.NoError(t, f.engine.Dismiss(ctx, created.ID, domain.MethodShake, "alice"))

	stats, err := f.engine.EventStats(ctx, created.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, 1, stats.Triggered)
	require.Equal(t, 1, stats.Snoozed)
	require.Equal(t, 1, stats.Dismissed)
	require.NotNil(t, stats.LastEvent)

	_, err = f.engine.EventStats(ctx, created.ID, "bob")
	require.ErrorIs(t, err, domain.ErrAccessDenied)

	_, err = f.engine.EventStats(ctx, "missing", "alice")
	require.ErrorIs(t, err, domain.ErrAlarmNotFound)
}
