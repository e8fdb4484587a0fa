package engine

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-engine/internal/analytics"
	"github.com/oshokin/alarm-engine/internal/battle"
	"github.com/oshokin/alarm-engine/internal/clock"
	"github.com/oshokin/alarm-engine/internal/config"
	domain "github.com/oshokin/alarm-engine/internal/domain/alarm"
	"github.com/oshokin/alarm-engine/internal/notification"
	"github.com/oshokin/alarm-engine/internal/ratelimit"
	"github.com/oshokin/alarm-engine/internal/repository/storage"
)

var (
	// sunday1200 is the day before monday0700.
	sunday1200 = time.Date(2026, 10, 11, 12, 0, 0, 0, time.UTC)
	monday0700 = time.Date(2026, 10, 12, 7, 0, 0, 0, time.UTC)
)

type fixture struct {
	engine    *Engine
	repo      *storage.MemoryRepository
	notifier  *notification.MemoryScheduler
	battle    *battle.MemoryAdapter
	analytics *analytics.Recorder
	clock     *clock.Fake
}

func newFixture(t *testing.T, tune ...func(*Settings)) *fixture {
	t.Helper()

	var (
		sequence atomic.Int64
		f        = &fixture{
			repo:      storage.NewMemoryRepository(),
			notifier:  notification.NewMemoryScheduler(),
			battle:    battle.NewMemoryAdapter(),
			analytics: &analytics.Recorder{},
			clock:     clock.NewFake(sunday1200),
		}
	)

	settings := DefaultSettings()
	for _, fn := range tune {
		fn(&settings)
	}

	engine, err := New(Dependencies{
		Repository: f.repo,
		Limiter:    ratelimit.NewMemoryLimiter(ratelimit.WithNow(f.clock.Now)),
		Notifier:   f.notifier,
		Battle:     f.battle,
		Analytics:  f.analytics,
		Clock:      f.clock,
		NewID: func() string {
			return "id-" + strconv.FormatInt(sequence.Add(1), 10)
		},
	}, settings)
	require.NoError(t, err)

	t.Cleanup(engine.Close)

	f.engine = engine

	return f
}

func gymDraft(owner string) domain.Draft {
	return domain.Draft{
		OwnerID:   owner,
		Time:      "07:00",
		Label:     "Gym",
		Days:      []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		VoiceMood: domain.VoiceMoodMotivational,
	}
}

func (f *fixture) create(t *testing.T, owner string) *domain.Alarm {
	t.Helper()

	created, err := f.engine.Create(context.Background(), gymDraft(owner))
	require.NoError(t, err)

	return created
}

// TestNew_RequiresRepository rejects a missing repository.
func TestNew_RequiresRepository(t *testing.T) {
	t.Parallel()

	_, err := New(Dependencies{}, DefaultSettings())
	require.ErrorIs(t, err, errRepositoryRequired)
}

// TestCreate_Defaults fills defaults, persists and schedules the next occurrence.
func TestCreate_Defaults(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.create(t, "")

	got, ok := f.engine.GetByID(created.ID)
	require.True(t, ok)
	require.True(t, got.Enabled)
	require.True(t, got.IsActive())
	require.Equal(t, 0, got.Snooze.Count)
	require.False(t, got.UpdatedAt.Before(got.CreatedAt))
	require.Equal(t, domain.DefaultOwnerID, got.OwnerID)
	require.Equal(t, domain.DefaultSound, got.Sound)
	require.Equal(t, domain.DifficultyMedium, got.Difficulty)
	require.True(t, got.Snooze.Enabled)
	require.Equal(t, 5, got.Snooze.IntervalMinutes)

	state, ok := f.engine.GetState(created.ID)
	require.True(t, ok)
	require.Equal(t, domain.StateScheduled, state)

	require.Len(t, f.repo.Stored(domain.DefaultOwnerID), 1)

	pending, ok := f.notifier.Pending(created.ID)
	require.True(t, ok)
	require.Equal(t, monday0700, pending.FireAt)
	require.Equal(t, "Gym", pending.Payload.Label)
	require.Equal(t, 1, f.analytics.Count(eventCreated))
}

// TestCreate_Invalid never stores rejected records.
func TestCreate_Invalid(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(*domain.Draft)
	}{
		{"long label", func(d *domain.Draft) { d.Label = strings.Repeat("x", 101) }},
		{"no days", func(d *domain.Draft) { d.Days = nil }},
		{"bad time", func(d *domain.Draft) { d.Time = "24:00" }},
		{"day out of range", func(d *domain.Draft) { d.Days = []time.Weekday{7} }},
		{"no voice mood", func(d *domain.Draft) { d.VoiceMood = "" }},
		{"interval too long", func(d *domain.Draft) {
			d.Snooze = &domain.SnoozePolicy{Enabled: true, IntervalMinutes: 61, Max: 3}
		}},
	}

	for _, tt := range tests {
		draft := gymDraft("alice")
		tt.mutate(&draft)

		_, err := f.engine.Create(context.Background(), draft)
		require.ErrorIs(t, err, domain.ErrInvalidAlarmData, tt.name)
	}

	require.Empty(t, f.engine.GetAll())
	require.Equal(t, 0, f.repo.StoreCalls())
	require.Equal(t, 0, f.notifier.ScheduleCalls())
}

// TestCreate_StorageFailure keeps the in-memory record and reports the failure.
func TestCreate_StorageFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.repo.StoreErr = errors.New("disk full")

	created, err := f.engine.Create(context.Background(), gymDraft("alice"))
	require.ErrorIs(t, err, domain.ErrStorageFailure)
	require.NotNil(t, created)

	_, ok := f.engine.GetByID(created.ID)
	require.True(t, ok)
}

// TestCreate_NotifierFailure does not undo the create.
func TestCreate_NotifierFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.notifier.ScheduleErr = errors.New("push service down")

	created, err := f.engine.Create(context.Background(), gymDraft("alice"))
	require.NoError(t, err)
	require.Len(t, f.repo.Stored("alice"), 1)
	require.Equal(t, created.ID, f.repo.Stored("alice")[0].ID)
}

// TestUpdate merges, validates and reschedules.
func TestUpdate(t *testing.T) {
	t.Parallel()

	var (
		f       = newFixture(t)
		ctx     = context.Background()
		created = f.create(t, "alice")
	)

	_, err := f.engine.Update(ctx, "missing", domain.Patch{})
	require.ErrorIs(t, err, domain.ErrAlarmNotFound)

	empty := ""
	_, err = f.engine.Update(ctx, created.ID, domain.Patch{Label: &empty})
	require.ErrorIs(t, err, domain.ErrInvalidAlarmData)

	got, _ := f.engine.GetByID(created.ID)
	require.Equal(t, "Gym", got.Label)

	f.clock.Advance(time.Minute)

	newTime := "06:15"
	updated, err := f.engine.Update(ctx, created.ID, domain.Patch{
		Time: &newTime,
		Days: []time.Weekday{time.Tuesday, time.Tuesday},
	})
	require.NoError(t, err)
	require.Equal(t, "06:15", updated.Time)
	require.Equal(t, []time.Weekday{time.Tuesday}, updated.Days)
	require.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	require.Equal(t, 1, f.notifier.CancelCalls())
	require.Equal(t, 2, f.notifier.ScheduleCalls())

	pending, ok := f.notifier.Pending(created.ID)
	require.True(t, ok)
	require.Equal(t, time.Date(2026, 10, 13, 6, 15, 0, 0, time.UTC), pending.FireAt)
	require.Equal(t, "06:15", f.repo.Stored("alice")[0].Time)
}

// TestDelete_Ownership denies non-owners of owned alarms.
func TestDelete_Ownership(t *testing.T) {
	t.Parallel()

	var (
		f       = newFixture(t)
		ctx     = context.Background()
		created = f.create(t, "alice")
		sub     = f.engine.Subscribe()
	)

	require.ErrorIs(t, f.engine.Delete(ctx, "missing", "alice"), domain.ErrAlarmNotFound)
	require.ErrorIs(t, f.engine.Delete(ctx, created.ID, "bob"), domain.ErrAccessDenied)

	signal := <-sub.C()
	require.Equal(t, SignalSecurityEvent, signal.Kind)
	require.Equal(t, SecurityAccessDenied, signal.Event)

	_, ok := f.engine.GetByID(created.ID)
	require.True(t, ok)

	require.NoError(t, f.engine.Delete(ctx, created.ID, "alice"))

	_, ok = f.engine.GetByID(created.ID)
	require.False(t, ok)
	require.Empty(t, f.repo.Stored("alice"))

	_, ok = f.notifier.Pending(created.ID)
	require.False(t, ok)
}

// TestDelete_Legacy lets anyone delete alarms without an owner.
func TestDelete_Legacy(t *testing.T) {
	t.Parallel()

	var (
		f      = newFixture(t)
		ctx    = context.Background()
		draft  = gymDraft("")
		legacy = draft.Build("legacy-1", sunday1200)
	)

	legacy.OwnerID = ""
	f.repo.Seed(domain.DefaultOwnerID, legacy)

	loaded, err := f.engine.Load(ctx, "")
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	require.True(t, f.engine.ValidateOwnership("legacy-1", "bob"))
	require.Len(t, f.engine.GetForOwner("bob"), 1)

	require.NoError(t, f.engine.Delete(ctx, "legacy-1", "bob"))
	require.Empty(t, f.repo.Stored(domain.DefaultOwnerID))
}

// TestValidateOwnership covers unknown, owned and foreign alarms.
func TestValidateOwnership(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.create(t, "alice")

	require.False(t, f.engine.ValidateOwnership("missing", "alice"))
	require.True(t, f.engine.ValidateOwnership(created.ID, "alice"))
	require.False(t, f.engine.ValidateOwnership(created.ID, "bob"))
}

// TestToggle cancels on disable and schedules exactly one on enable.
func TestToggle(t *testing.T) {
	t.Parallel()

	var (
		f       = newFixture(t)
		ctx     = context.Background()
		created = f.create(t, "alice")
	)

	_, err := f.engine.Toggle(ctx, "missing", false)
	require.ErrorIs(t, err, domain.ErrAlarmNotFound)

	disabled, err := f.engine.Toggle(ctx, created.ID, false)
	require.NoError(t, err)
	require.False(t, disabled.Enabled)
	require.Equal(t, 1, f.notifier.CancelCalls())

	_, ok := f.notifier.Pending(created.ID)
	require.False(t, ok)

	state, _ := f.engine.GetState(created.ID)
	require.Equal(t, domain.StateDisabled, state)

	schedules := f.notifier.ScheduleCalls()

	enabled, err := f.engine.Toggle(ctx, created.ID, true)
	require.NoError(t, err)
	require.True(t, enabled.Enabled)
	require.Equal(t, schedules+1, f.notifier.ScheduleCalls())

	_, ok = f.notifier.Pending(created.ID)
	require.True(t, ok)

	state, _ = f.engine.GetState(created.ID)
	require.Equal(t, domain.StateScheduled, state)
	require.True(t, f.repo.Stored("alice")[0].Enabled)
}

// TestToggle_CorruptedRecord rejects toggling a record that no longer validates.
func TestToggle_CorruptedRecord(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.create(t, "alice")

	f.engine.mu.Lock()
	f.engine.entries[created.ID].alarm.Time = "99:99"
	f.engine.mu.Unlock()

	_, err := f.engine.Toggle(context.Background(), created.ID, false)
	require.ErrorIs(t, err, domain.ErrInvalidAlarmData)

	got, _ := f.engine.GetByID(created.ID)
	require.True(t, got.Enabled)
}

// TestLoad discards invalid records, starts the scan and replaces the partition.
func TestLoad(t *testing.T) {
	t.Parallel()

	var (
		f       = newFixture(t)
		ctx     = context.Background()
		draftV  = gymDraft("alice")
		draftI  = gymDraft("alice")
		valid   = draftV.Build("valid", sunday1200)
		invalid = draftI.Build("invalid", sunday1200)
		sub     = f.engine.Subscribe()
	)

	invalid.Days = nil
	f.repo.Seed("alice", valid, invalid)

	loaded, err := f.engine.Load(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "valid", loaded[0].ID)
	require.True(t, f.engine.Running())

	signal := <-sub.C()
	require.Equal(t, SecurityInvalidAlarm, signal.Event)

	f.repo.Seed("alice")

	loaded, err = f.engine.Load(ctx, "alice")
	require.NoError(t, err)
	require.Empty(t, loaded)
	require.Empty(t, f.engine.GetAll())
}

// TestLoad_RepositoryFailure degrades to an empty result.
func TestLoad_RepositoryFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.repo.RetrieveErr = errors.New("storage offline")

	loaded, err := f.engine.Load(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Empty(t, loaded)
	require.Equal(t, 1, f.analytics.Count(eventLoadFailed))
}

// TestLoad_RateLimit uses its own budget.
func TestLoad_RateLimit(t *testing.T) {
	t.Parallel()

	var (
		f   = newFixture(t)
		ctx = context.Background()
	)

	for range config.DefaultBudgets()[config.OperationLoad].MaxCalls {
		_, err := f.engine.Load(ctx, "alice")
		require.NoError(t, err)
	}

	_, err := f.engine.Load(ctx, "alice")
	require.ErrorIs(t, err, domain.ErrRateLimitExceeded)

	// Save has a separate budget.
	require.NoError(t, f.engine.Save(ctx, "alice"))
}

// TestSave_RateLimit rejects the 51st save inside the window without touching storage.
func TestSave_RateLimit(t *testing.T) {
	t.Parallel()

	var (
		f   = newFixture(t)
		ctx = context.Background()
		sub = f.engine.Subscribe()
	)

	for range 50 {
		require.NoError(t, f.engine.Save(ctx, "alice"))
	}

	require.Equal(t, 50, f.repo.StoreCalls())

	err := f.engine.Save(ctx, "alice")
	require.ErrorIs(t, err, domain.ErrRateLimitExceeded)
	require.Equal(t, 50, f.repo.StoreCalls())

	signal := <-sub.C()
	require.Equal(t, SecurityRateLimitExceeded, signal.Event)
	require.Equal(t, config.OperationSave, signal.Source)

	f.clock.Advance(time.Minute)
	require.NoError(t, f.engine.Save(ctx, "alice"))
}

// TestSave_StorageFailure propagates repository errors.
func TestSave_StorageFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.create(t, "alice")
	f.repo.StoreErr = errors.New("disk full")

	err := f.engine.Save(context.Background(), "alice")
	require.ErrorIs(t, err, domain.ErrStorageFailure)
	require.ErrorIs(t, err, f.repo.StoreErr)
}

// TestSave_Partitions writes only the requested partition.
func TestSave_Partitions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.create(t, "alice")
	f.create(t, "bob")

	require.NoError(t, f.engine.Save(context.Background(), "bob"))
	require.Len(t, f.repo.Stored("bob"), 1)
	require.Equal(t, "bob", f.repo.Stored("bob")[0].OwnerID)
	require.Len(t, f.engine.GetAll(), 2)
	require.Len(t, f.engine.GetForOwner("alice"), 1)
}

// TestStartStop leaves no running scan after Stop.
func TestStartStop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	f.engine.Start(ctx)
	f.engine.Start(ctx)
	require.True(t, f.engine.Running())

	// Request contexts do not stop the scan.
	cancel()
	require.True(t, f.engine.Running())

	f.engine.Stop()
	require.False(t, f.engine.Running())

	f.engine.Stop()
}

// TestStart_ScansPeriodically fires through the ticker.
func TestStart_ScansPeriodically(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(s *Settings) {
		s.ScanInterval = 10 * time.Millisecond
	})

	created := f.create(t, "alice")
	f.clock.Set(monday0700)

	sub := f.engine.Subscribe()
	f.engine.Start(context.Background())

	select {
	case signal := <-sub.C():
		require.Equal(t, SignalTriggered, signal.Kind)
		require.Equal(t, created.ID, signal.Alarm.ID)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no trigger signal")
	}

	f.engine.Stop()
}
