// Package serve implements the serve command that runs the web application.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gardentracker/gardentracker/internal/buildinfo"
	"github.com/gardentracker/gardentracker/internal/conf"
	"github.com/gardentracker/gardentracker/internal/datastore"
	"github.com/gardentracker/gardentracker/internal/httpcontroller"
	"github.com/gardentracker/gardentracker/internal/imagestore"
	"github.com/gardentracker/gardentracker/internal/logger"
	"github.com/gardentracker/gardentracker/internal/observability"
	"github.com/gardentracker/gardentracker/internal/ocr"
	"github.com/gardentracker/gardentracker/internal/telemetry"
)

// Command creates the serve command
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long:  "Open the database, apply migrations and serve the garden tracker over HTTP until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, settings, info)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}
	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().IntVarP(&settings.WebServer.Port, "port", "p", settings.WebServer.Port, "HTTP listen port")
	cmd.Flags().StringVar(&settings.WebServer.Host, "host", settings.WebServer.Host, "HTTP listen address")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

// Run wires the application together and serves until ctx is cancelled
func Run(ctx context.Context, settings *conf.Settings, info *buildinfo.Context) error {
	central, err := logger.NewCentralLogger(settings.LoggingConfig())
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}
	defer func() { _ = central.Close() }()
	log := central.Module("main")

	flushTelemetry, err := telemetry.Init(&settings.Sentry, central.Module("telemetry"),
		telemetry.WithRelease(info.Release()))
	if err != nil {
		log.Warn("sentry initialization failed, continuing without error reporting", logger.Error(err))
	}
	defer flushTelemetry()

	m, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("error initializing metrics: %w", err)
	}

	files, err := imagestore.New(settings.Upload.Dir, settings.Upload.URLPrefix, settings.Upload.MaxBytes(),
		central.Module("imagestore"), imagestore.WithMetrics(m.ImageStore))
	if err != nil {
		return err
	}
	defer func() { _ = files.Close() }()

	tempDir, err := os.MkdirTemp("", "gardentracker-ocr-")
	if err != nil {
		return fmt.Errorf("error creating OCR temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()
	temp, err := imagestore.New(tempDir, "/ocr-temp", settings.Upload.MaxBytes(), central.Module("imagestore"))
	if err != nil {
		return err
	}
	defer func() { _ = temp.Close() }()

	store, err := datastore.Open(settings, central.Module("datastore"),
		datastore.WithMetrics(m.Datastore),
		datastore.WithFileCopier(files))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	var remote ocr.Remote
	if settings.OCR.Configured() {
		client := ocr.NewClient(&settings.OCR, central.Module("ocr"))
		defer client.Close()
		remote = client
	} else {
		log.Warn("MISTRAL_API_KEY not set, OCR endpoints are disabled")
	}
	ocrService := ocr.NewService(&settings.OCR, remote, ocr.Deps{
		Files:       files,
		Temp:        temp,
		SeedPackets: store.SeedPackets,
		Images:      store.Images,
		Notes:       store.Notes,
	}, central.Module("ocr"), ocr.WithMetrics(m.OCR))

	server, err := httpcontroller.New(settings, store, files, ocrService,
		httpcontroller.WithLogger(central.Module("web")), httpcontroller.WithMetrics(m))
	if err != nil {
		return err
	}

	log.Info("starting garden tracker",
		logger.String("version", info.GetVersion()),
		logger.String("build_date", info.GetBuildDate()),
		logger.String("address", settings.WebServer.Address()),
		logger.String("database_driver", store.Driver()),
		logger.Bool("ocr_configured", ocrService.Configured()))
	return server.Start(ctx)
}
