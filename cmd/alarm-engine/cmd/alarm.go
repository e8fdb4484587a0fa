package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oshokin/alarm-engine/internal/api/grpc/alarm"
	domain "github.com/oshokin/alarm-engine/internal/domain/alarm"
	"github.com/oshokin/alarm-engine/internal/service/client"
)

// alarmFlags holds the field flags shared by create and update.
type alarmFlags struct {
	owner          string
	time           string
	label          string
	days           []int
	disabled       bool
	mood           string
	sound          string
	difficulty     string
	noSnooze       bool
	snoozeInterval int
	snoozeMax      int
	battleID       string
}

var (
	createFlags alarmFlags
	updateFlags alarmFlags

	// listing options.
	listOwner  string
	listAll    bool
	listBattle string

	// partitionOwner is the owner flag of load, save and events.
	partitionOwner string

	dismissMethod string
	snoozeMinutes int

	errToggleValue = errors.New("toggle expects on or off")

	alarmCmd = &cobra.Command{
		Use:   "alarm",
		Short: "Operate alarms of a running engine.",
	}
)

func register(fs *pflag.FlagSet, f *alarmFlags) {
	fs.StringVar(&f.time, "time", "", "time of day, HH:MM")
	fs.StringVar(&f.label, "label", "", "alarm label")
	fs.IntSliceVar(&f.days, "days", nil, "weekdays, 0 is Sunday")
	fs.StringVar(&f.mood, "mood", string(domain.VoiceMoodMotivational), "voice mood")
	fs.StringVar(&f.sound, "sound", "", "sound reference")
	fs.StringVar(&f.difficulty, "difficulty", "", "difficulty level")
	fs.IntVar(&f.snoozeInterval, "snooze-interval", domain.DefaultSnoozeInterval, "snooze interval in minutes")
	fs.IntVar(&f.snoozeMax, "snooze-max", domain.DefaultSnoozeMax, "snoozes allowed per occurrence")
}

func weekdays(days []int) []time.Weekday {
	if days == nil {
		return nil
	}

	result := make([]time.Weekday, 0, len(days))
	for _, day := range days {
		result = append(result, time.Weekday(day))
	}

	return result
}

func (f *alarmFlags) createRequest() alarm.CreateRequest {
	enabled := !f.disabled

	return alarm.CreateRequest{
		OwnerID:    f.owner,
		Time:       f.time,
		Label:      f.label,
		Days:       weekdays(f.days),
		Enabled:    &enabled,
		VoiceMood:  domain.VoiceMood(f.mood),
		Sound:      f.sound,
		Difficulty: domain.Difficulty(f.difficulty),
		Snooze: &domain.SnoozePolicy{
			Enabled:         !f.noSnooze,
			IntervalMinutes: f.snoozeInterval,
			Max:             f.snoozeMax,
		},
		BattleID: f.battleID,
	}
}

// updateRequest sets only the flags given on the command line.
func (f *alarmFlags) updateRequest(id string, fs *pflag.FlagSet) alarm.UpdateRequest {
	req := alarm.UpdateRequest{ID: id}

	if fs.Changed("time") {
		req.Time = &f.time
	}

	if fs.Changed("label") {
		req.Label = &f.label
	}

	if fs.Changed("days") {
		req.Days = weekdays(f.days)
	}

	if fs.Changed("mood") {
		mood := domain.VoiceMood(f.mood)
		req.VoiceMood = &mood
	}

	if fs.Changed("sound") {
		req.Sound = &f.sound
	}

	if fs.Changed("difficulty") {
		difficulty := domain.Difficulty(f.difficulty)
		req.Difficulty = &difficulty
	}

	if fs.Changed("no-snooze") {
		enabled := !f.noSnooze
		req.SnoozeEnabled = &enabled
	}

	if fs.Changed("snooze-interval") {
		req.SnoozeInterval = &f.snoozeInterval
	}

	if fs.Changed("snooze-max") {
		req.SnoozeMax = &f.snoozeMax
	}

	return req
}

func sessionRun(run func(ctx context.Context, session *client.Session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, session *client.Session) error {
			return run(ctx, session, args)
		})
	}
}

func parseToggle(value string) (bool, error) {
	switch value {
	case "on", "enable", "true":
		return true, nil
	case "off", "disable", "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w, got %q", errToggleValue, value)
	}
}

//nolint:gochecknoinits,funlen // Required by Cobra CLI framework architecture.
func init() {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List alarms of an owner.",
		Args:  cobra.NoArgs,
		RunE: sessionRun(func(ctx context.Context, s *client.Session, _ []string) error {
			return s.List(ctx, alarm.ListRequest{OwnerID: listOwner, Battle: listBattle}, listAll)
		}),
	}
	listCmd.Flags().StringVar(&listOwner, "owner", "", "owner, defaults to the requester")
	listCmd.Flags().BoolVar(&listAll, "all", false, "list alarms of every owner")
	listCmd.Flags().StringVar(&listBattle, "battle", alarm.BattleAll, "battle filter: all, only or none")

	getCmd := &cobra.Command{
		Use:   "get ID",
		Short: "Show one alarm with its lifecycle state.",
		Args:  cobra.ExactArgs(1),
		RunE: sessionRun(func(ctx context.Context, s *client.Session, args []string) error {
			return s.Get(ctx, args[0])
		}),
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an alarm.",
		Args:  cobra.NoArgs,
		RunE: sessionRun(func(ctx context.Context, s *client.Session, _ []string) error {
			return s.Create(ctx, createFlags.createRequest())
		}),
	}
	register(createCmd.Flags(), &createFlags)
	createCmd.Flags().StringVar(&createFlags.owner, "owner", "", "owner, defaults to the requester")
	createCmd.Flags().BoolVar(&createFlags.disabled, "disabled", false, "create the alarm disabled")
	createCmd.Flags().BoolVar(&createFlags.noSnooze, "no-snooze", false, "disallow snoozing")
	createCmd.Flags().StringVar(&createFlags.battleID, "battle", "", "create through the battle service for this battle")

	updateCmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change fields of an alarm; omitted flags are left unchanged.",
		Args:  cobra.ExactArgs(1),
	}
	register(updateCmd.Flags(), &updateFlags)
	updateCmd.Flags().BoolVar(&updateFlags.noSnooze, "no-snooze", false, "disallow snoozing")
	updateCmd.RunE = sessionRun(func(ctx context.Context, s *client.Session, args []string) error {
		return s.Update(ctx, updateFlags.updateRequest(args[0], updateCmd.Flags()))
	})

	deleteCmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an alarm owned by the requester.",
		Args:  cobra.ExactArgs(1),
		RunE: sessionRun(func(ctx context.Context, s *client.Session, args []string) error {
			return s.Delete(ctx, args[0])
		}),
	}

	toggleCmd := &cobra.Command{
		Use:   "toggle ID on|off",
		Short: "Enable or disable an alarm.",
		Args:  cobra.ExactArgs(2), //nolint:mnd // id and state.
		RunE: sessionRun(func(ctx context.Context, s *client.Session, args []string) error {
			enabled, err := parseToggle(args[1])
			if err != nil {
				return err
			}

			return s.Toggle(ctx, args[0], enabled)
		}),
	}

	dismissCmd := &cobra.Command{
		Use:   "dismiss ID",
		Short: "Dismiss the current occurrence of an alarm.",
		Args:  cobra.ExactArgs(1),
		RunE: sessionRun(func(ctx context.Context, s *client.Session, args []string) error {
			return s.Dismiss(ctx, alarm.DismissRequest{ID: args[0], Method: domain.Method(dismissMethod)})
		}),
	}
	dismissCmd.Flags().StringVar(&dismissMethod, "method", string(domain.MethodButton), "interaction method")

	snoozeCmd := &cobra.Command{
		Use:   "snooze ID",
		Short: "Snooze the current occurrence of an alarm.",
		Args:  cobra.ExactArgs(1),
		RunE: sessionRun(func(ctx context.Context, s *client.Session, args []string) error {
			return s.Snooze(ctx, alarm.SnoozeRequest{ID: args[0], Minutes: snoozeMinutes})
		}),
	}
	snoozeCmd.Flags().IntVar(&snoozeMinutes, "minutes", 0, "snooze length, defaults to the alarm interval")

	unlinkCmd := &cobra.Command{
		Use:   "unlink ID",
		Short: "Detach an alarm from its battle.",
		Args:  cobra.ExactArgs(1),
		RunE: sessionRun(func(ctx context.Context, s *client.Session, args []string) error {
			return s.Unlink(ctx, args[0])
		}),
	}

	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "List the event history of an owner.",
		Args:  cobra.NoArgs,
		RunE: sessionRun(func(ctx context.Context, s *client.Session, _ []string) error {
			return s.Events(ctx, partitionOwner)
		}),
	}

	statsCmd := &cobra.Command{
		Use:   "stats ID",
		Short: "Count triggers, snoozes and dismissals of an alarm.",
		Args:  cobra.ExactArgs(1),
		RunE: sessionRun(func(ctx context.Context, s *client.Session, args []string) error {
			return s.Stats(ctx, args[0])
		}),
	}

	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Load the stored alarms of an owner into the engine.",
		Args:  cobra.NoArgs,
		RunE: sessionRun(func(ctx context.Context, s *client.Session, _ []string) error {
			return s.Load(ctx, partitionOwner)
		}),
	}

	saveCmd := &cobra.Command{
		Use:   "save",
		Short: "Persist the alarms of an owner.",
		Args:  cobra.NoArgs,
		RunE: sessionRun(func(ctx context.Context, s *client.Session, _ []string) error {
			return s.Save(ctx, partitionOwner)
		}),
	}

	for _, c := range []*cobra.Command{eventsCmd, loadCmd, saveCmd} {
		c.Flags().StringVar(&partitionOwner, "owner", "", "owner, defaults to the requester")
	}

	alarmCmd.AddCommand(
		listCmd, getCmd, createCmd, updateCmd, deleteCmd, toggleCmd,
		dismissCmd, snoozeCmd, unlinkCmd, eventsCmd, statsCmd, loadCmd, saveCmd,
	)
	rootCmd.AddCommand(alarmCmd)
}
