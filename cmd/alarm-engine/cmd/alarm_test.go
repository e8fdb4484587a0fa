package cmd

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/alarm-engine/internal/domain/alarm"
)

// TestUpdateRequest_OnlyChangedFlags leaves omitted fields unset.
func TestUpdateRequest_OnlyChangedFlags(t *testing.T) {
	t.Parallel()

	var (
		flags alarmFlags
		fs    = pflag.NewFlagSet("update", pflag.ContinueOnError)
	)

	register(fs, &flags)
	fs.BoolVar(&flags.noSnooze, "no-snooze", false, "")
	require.NoError(t, fs.Parse([]string{"--label", "Run", "--days", "1,3", "--no-snooze"}))

	req := flags.updateRequest("id-1", fs)
	require.Equal(t, "id-1", req.ID)
	require.Equal(t, "Run", *req.Label)
	require.Equal(t, []time.Weekday{time.Monday, time.Wednesday}, req.Days)
	require.False(t, *req.SnoozeEnabled)
	require.Nil(t, req.Time)
	require.Nil(t, req.VoiceMood)
	require.Nil(t, req.SnoozeMax)
}

// TestCreateRequest maps flags to the request.
func TestCreateRequest(t *testing.T) {
	t.Parallel()

	flags := alarmFlags{
		time:           "07:00",
		label:          "Gym",
		days:           []int{0, 6},
		disabled:       true,
		mood:           string(domain.VoiceMoodGentle),
		snoozeInterval: 10,
		snoozeMax:      2,
		battleID:       "battle-1",
	}

	req := flags.createRequest()
	require.False(t, *req.Enabled)
	require.Equal(t, []time.Weekday{time.Sunday, time.Saturday}, req.Days)
	require.Equal(t, domain.SnoozePolicy{Enabled: true, IntervalMinutes: 10, Max: 2}, *req.Snooze)
	require.Equal(t, "battle-1", req.BattleID)
}

// TestParseToggle accepts on and off spellings.
func TestParseToggle(t *testing.T) {
	t.Parallel()

	enabled, err := parseToggle("on")
	require.NoError(t, err)
	require.True(t, enabled)

	enabled, err = parseToggle("off")
	require.NoError(t, err)
	require.False(t, enabled)

	_, err = parseToggle("maybe")
	require.ErrorIs(t, err, errToggleValue)
}
