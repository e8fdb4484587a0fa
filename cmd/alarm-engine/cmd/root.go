package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-engine/internal/config"
	"github.com/oshokin/alarm-engine/internal/service/client"
	"github.com/oshokin/alarm-engine/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// serverAddress overrides the engine address of the client commands.
	serverAddress string
	// token is the bearer token of the client commands.
	token string
	// requester identifies the caller of the client commands.
	requester string

	// rootCmd represents the base command of the alarm engine.
	rootCmd = &cobra.Command{
		Use:   "alarm-engine",
		Short: "Run and operate the alarm lifecycle engine.",
		Long: `Alarm engine keeps recurring wake-up alarms, fires them at their scheduled
minute, and tracks snooze and dismissal of every occurrence.

Use "serve" to run the engine with its gRPC API, and the "alarm" and "watch"
commands to operate a running engine.`,
		SilenceUsage: true,
	}
)

// Execute runs the alarm-engine CLI and exits with non-zero status on error.
func Execute() {
	rootCmd.AddCommand(version.NewCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext is canceled on SIGTERM or SIGINT.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// withSession opens a client session for the duration of run.
func withSession(cmd *cobra.Command, run func(ctx context.Context, session *client.Session) error) error {
	ctx, stop := signalContext()
	defer stop()

	session, err := client.Open(ctx, &client.Options{
		ConfigPath:    configPath,
		ServerAddress: serverAddress,
		Token:         token,
		Requester:     requester,
		Output:        cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	defer func() {
		_ = session.Close()
	}()

	return run(ctx, session)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&serverAddress, "server", "s", "", "engine address, overrides server_addr")
	flags.StringVar(&token, "token", "", "bearer token sent to the engine")
	flags.StringVarP(&requester, "requester", "r", "", "requester identity, defaults to the OS username")
}
