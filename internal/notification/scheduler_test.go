package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestMemoryScheduler_ScheduleCancel replaces and drops pending entries.
func TestMemoryScheduler_ScheduleCancel(t *testing.T) {
	t.Parallel()

	var (
		s      = NewMemoryScheduler()
		ctx    = context.Background()
		first  = time.Date(2026, 10, 12, 7, 0, 0, 0, time.UTC)
		second = first.Add(10 * time.Minute)
	)

	require.NoError(t, s.Schedule(ctx, "a1", first, Payload{Label: "Gym"}))
	require.NoError(t, s.Schedule(ctx, "a1", second, Payload{Label: "Gym", Snoozed: true}))

	entry, ok := s.Pending("a1")
	require.True(t, ok)
	require.Equal(t, second, entry.FireAt)
	require.True(t, entry.Payload.Snoozed)
	require.Equal(t, 2, s.ScheduleCalls())

	require.NoError(t, s.Cancel(ctx, "a1"))

	_, ok = s.Pending("a1")
	require.False(t, ok)
	require.Equal(t, 1, s.CancelCalls())
}

// TestMemoryScheduler_Errors counts failed calls without recording them.
func TestMemoryScheduler_Errors(t *testing.T) {
	t.Parallel()

	s := NewMemoryScheduler()
	s.ScheduleErr = errors.New("offline")

	require.Error(t, s.Schedule(context.Background(), "a1", time.Now(), Payload{}))

	_, ok := s.Pending("a1")
	require.False(t, ok)
	require.Equal(t, 1, s.ScheduleCalls())
}
