// Package migrate implements the migrate command.
package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gardentracker/gardentracker/internal/conf"
	"github.com/gardentracker/gardentracker/internal/datastore"
	"github.com/gardentracker/gardentracker/internal/logger"
)

// Command creates the migrate command
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			central, err := logger.NewCentralLogger(settings.LoggingConfig())
			if err != nil {
				return fmt.Errorf("error initializing logger: %w", err)
			}
			defer func() { _ = central.Close() }()

			store, err := datastore.Open(settings, central.Module("datastore"))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
			central.Module("main").Info("database schema is up to date", logger.String("driver", store.Driver()))
			return nil
		},
	}
}
