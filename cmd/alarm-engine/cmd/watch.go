package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-engine/internal/service/client"
)

// retryInterval is the resubscribe delay of watch.
var retryInterval time.Duration

// watchCmd streams engine signals.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print triggered alarms and security events as they happen.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(ctx context.Context, session *client.Session) error {
			return session.Watch(ctx, retryInterval)
		})
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	watchCmd.Flags().DurationVar(&retryInterval, "retry", client.DefaultRetryInterval, "resubscribe delay after a failed stream, 0 exits instead")
	rootCmd.AddCommand(watchCmd)
}
