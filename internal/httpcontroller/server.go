// internal/httpcontroller/server.go
package httpcontroller

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/gardentracker/gardentracker/internal/api"
	"github.com/gardentracker/gardentracker/internal/conf"
	"github.com/gardentracker/gardentracker/internal/datastore"
	"github.com/gardentracker/gardentracker/internal/errors"
	"github.com/gardentracker/gardentracker/internal/imagestore"
	"github.com/gardentracker/gardentracker/internal/logger"
	"github.com/gardentracker/gardentracker/internal/observability"
	"github.com/gardentracker/gardentracker/internal/ocr"
)

const defaultShutdownTimeout = 10 * time.Second

// Server encapsulates Echo server and related configurations.
type Server struct {
	Echo     *echo.Echo
	Settings *conf.Settings
	Store    *datastore.Store
	Files    *imagestore.Store
	OCR      *ocr.Service
	API      *api.Controller

	metrics *observability.Metrics
	log     logger.Logger
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the parent logger; the server logs under the "http" module
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithMetrics enables request metrics and the metrics endpoint
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New assembles the echo instance: middleware, templates, static files and
// the API routes.
func New(settings *conf.Settings, store *datastore.Store, files *imagestore.Store, ocrService *ocr.Service, opts ...Option) (*Server, error) {
	s := &Server{
		Echo:     echo.New(),
		Settings: settings,
		Store:    store,
		Files:    files,
		OCR:      ocrService,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.NewSlogLogger(io.Discard, logger.LogLevelInfo, nil)
	}
	s.log = s.log.Module("http")

	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.Debug = settings.Debug
	s.Echo.IPExtractor = echo.ExtractIPFromXFFHeader()
	s.Echo.Logger.SetOutput(&echoLogAdapter{log: s.log})

	s.configureMiddleware()
	if err := s.setupTemplateRenderer(); err != nil {
		return nil, err
	}
	s.initRoutes()

	apiOpts := []api.Option{api.WithLogger(s.log.Module("api"))}
	if s.metrics != nil {
		apiOpts = append(apiOpts, api.WithMetrics(s.metrics))
	}
	s.API = api.New(s.Echo, store, files, ocrService, settings, apiOpts...)
	return s, nil
}

// Start serves until ctx is cancelled, then shuts down gracefully. A listener
// failure is returned immediately.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.Settings.WebServer.Address(),
		ReadTimeout:  s.Settings.WebServer.ReadTimeout,
		WriteTimeout: s.Settings.WebServer.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server started",
			logger.String("address", srv.Addr),
			logger.Bool("ocr_configured", s.OCR != nil && s.OCR.Configured()))
		if err := s.Echo.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err, ok := <-errChan:
		if ok {
			return errors.New(err).
				Component("httpcontroller").
				Category(errors.CategoryNetwork).
				Context(errors.ContextOperation, "listen").
				Context("address", srv.Addr).
				Build()
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.Settings.WebServer.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	if err := s.Echo.Shutdown(ctx); err != nil {
		s.log.Warn("graceful shutdown failed, closing", logger.Error(err))
		return s.Echo.Close()
	}
	return nil
}
