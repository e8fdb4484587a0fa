package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-engine/internal/service/server"
)

// serveCmd runs the engine.
var serveCmd = &cobra.Command{
	Use:   "serve [listen-address]",
	Short: "Run the alarm engine and its gRPC API.",
	Long: `Starts the alarm engine: loads the configured partitions, runs the trigger
scan and serves the AlarmService gRPC API.

Only the port of server_addr is used for listening (e.g., :50051).
A listen address argument overrides it (e.g., :9090, 0.0.0.0:8080).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		var listenAddress string
		if len(args) > 0 {
			listenAddress = args[0]
		}

		return server.Run(ctx, &server.Options{
			ConfigPath:    configPath,
			ListenAddress: listenAddress,
		})
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(serveCmd)
}
