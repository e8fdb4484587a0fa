package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-engine/internal/config"
)

var (
	// force overwrites an existing settings file.
	force bool

	errConfigExists = errors.New("settings file already exists, use --force to overwrite")

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage the settings file.",
	}

	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a settings file with default values.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("%s: %w", configPath, errConfigExists)
			}

			if err := config.Save(configPath, config.Default()); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Settings written to %s\n", configPath)

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	configInitCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing settings file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
