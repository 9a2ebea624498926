package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/gardentracker/gardentracker/cmd/config"
	"github.com/gardentracker/gardentracker/cmd/migrate"
	"github.com/gardentracker/gardentracker/cmd/ocrbatch"
	"github.com/gardentracker/gardentracker/cmd/serve"
	"github.com/gardentracker/gardentracker/internal/buildinfo"
	"github.com/gardentracker/gardentracker/internal/conf"
	"github.com/gardentracker/gardentracker/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "gardentracker",
		Short:        "Garden Tracker: plants, seed packets, supplies, notes and harvests",
		Version:      info.GetVersion(),
		SilenceUsage: true,
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	subcommands := []*cobra.Command{
		serve.Command(settings, info),
		migrate.Command(settings),
		ocrbatch.Command(settings),
		configcmd.Command(),
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if !logger.ValidLevel(settings.Logging.Level) {
			return fmt.Errorf("invalid log level %q", settings.Logging.Level)
		}
		return nil
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Logging.Level, "log-level", settings.Logging.Level, "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&settings.Logging.File, "log-file", settings.Logging.File, "Also write logs to this file")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
