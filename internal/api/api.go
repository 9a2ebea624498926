// Package api serves the garden tracker HTTP surface: JSON endpoints and
// content-negotiated HTML pages over the datastore, image store and OCR flow.
package api

import (
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/gardentracker/gardentracker/internal/conf"
	"github.com/gardentracker/gardentracker/internal/datastore"
	"github.com/gardentracker/gardentracker/internal/imagestore"
	"github.com/gardentracker/gardentracker/internal/logger"
	"github.com/gardentracker/gardentracker/internal/observability"
	"github.com/gardentracker/gardentracker/internal/ocr"
)

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Store    *datastore.Store
	Files    *imagestore.Store
	OCR      *ocr.Service
	Settings *conf.Settings

	log       logger.Logger
	metrics   *observability.Metrics
	startTime time.Time
	now       func() time.Time
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithLogger sets the module logger used for request errors
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

// WithMetrics records HTTP error metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithClock replaces time.Now for health and export timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// New creates the controller and registers every route on e
func New(e *echo.Echo, store *datastore.Store, files *imagestore.Store, ocrService *ocr.Service,
	settings *conf.Settings, opts ...Option) *Controller {
	c := &Controller{
		Echo:     e,
		Store:    store,
		Files:    files,
		OCR:      ocrService,
		Settings: settings,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.NewSlogLogger(io.Discard, logger.LogLevelInfo, nil)
	}
	c.startTime = c.now()

	e.HTTPErrorHandler = c.HTTPErrorHandler
	c.initRoutes()
	return c
}

// initRoutes registers all endpoints
func (c *Controller) initRoutes() {
	c.Echo.GET("/", c.Home)
	c.Echo.GET("/health", c.HealthCheck)

	routeInitializers := []struct {
		name string
		fn   func()
	}{
		{"year routes", c.initYearRoutes},
		{"plant routes", c.initPlantRoutes},
		{"seed packet routes", c.initSeedPacketRoutes},
		{"garden supply routes", c.initGardenSupplyRoutes},
		{"note routes", c.initNoteRoutes},
		{"harvest routes", c.initHarvestRoutes},
		{"image routes", c.initImageRoutes},
		{"ocr routes", c.initOCRRoutes},
	}
	for _, initializer := range routeInitializers {
		initializer.fn()
		c.log.Debug("initialized routes", logger.String("group", initializer.name))
	}
}

// HealthCheck reports service status and database connectivity
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":         "healthy",
		"timestamp":      c.now().Format(time.RFC3339),
		"uptime_seconds": c.now().Sub(c.startTime).Seconds(),
		"ocr_configured": c.OCR != nil && c.OCR.Configured(),
	}

	status := http.StatusOK
	if err := c.Store.Ping(ctx.Request().Context()); err != nil {
		c.log.Warn("health check database ping failed", logger.Error(err))
		response["status"] = "degraded"
		response["database_status"] = "disconnected"
		status = http.StatusServiceUnavailable
	} else {
		response["database_status"] = "connected"
	}
	response["database_driver"] = c.Store.Driver()

	return ctx.JSON(status, response)
}
