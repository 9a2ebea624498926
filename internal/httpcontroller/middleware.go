package httpcontroller

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/gardentracker/gardentracker/internal/errors"
	"github.com/gardentracker/gardentracker/internal/logger"
)

// bodyLimitSlack leaves room for form fields next to the largest upload
const bodyLimitSlack = 1 << 20

// configureMiddleware sets up middleware for the server.
func (s *Server) configureMiddleware() {
	s.Echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logger.WithRequestID(req.Context(), id)))
		},
	}))
	s.Echo.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			s.log.Error("panic recovered",
				logger.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				logger.String("path", c.Request().URL.Path),
				logger.Error(err),
				logger.String("stack", string(stack)))
			return err
		},
	}))
	s.Echo.Use(s.requestLogger())
	s.Echo.Use(SecureHeaders())
	if s.metrics != nil {
		s.Echo.Use(s.MetricsMiddleware())
	}
	s.Echo.Use(middleware.BodyLimit(bodyLimit(s.Settings.Upload.MaxBytes())))
	s.Echo.Use(s.GzipMiddleware())
	s.Echo.Use(s.CacheControlMiddleware())
}

// bodyLimit formats the request size limit the way echo expects it
func bodyLimit(maxUpload int64) string {
	return fmt.Sprintf("%dK", (maxUpload+bodyLimitSlack)/1024)
}

// SecureHeaders sets the browser security headers on every response
func SecureHeaders() echo.MiddlewareFunc {
	return middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		ReferrerPolicy:     "same-origin",
	})
}

// GzipMiddleware configures Gzip compression for the server
func (s *Server) GzipMiddleware() echo.MiddlewareFunc {
	return middleware.GzipWithConfig(middleware.GzipConfig{
		Level:     6,
		MinLength: 2048,
		Skipper:   skipStatic,
	})
}

// CacheControlMiddleware sets cache headers: uploads never change once
// written, everything else is dynamic
func (s *Server) CacheControlMiddleware() echo.MiddlewareFunc {
	uploads := s.Settings.Upload.URLPrefix + "/"
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			if strings.HasPrefix(c.Request().URL.Path, uploads) {
				h.Set("Cache-Control", "public, max-age=604800, immutable")
				h.Set("X-Content-Type-Options", "nosniff")
			} else {
				h.Set("Cache-Control", "no-store")
			}
			h.Add("Vary", echo.HeaderAccept)
			return next(c)
		}
	}
}

// MetricsMiddleware records request count and latency per route
func (s *Server) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if err != nil {
				// the error handler has not written the response yet
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			s.metrics.HTTP.RecordHTTPRequest(c.Request().Method, route, status, time.Since(start).Seconds())
			return err
		}
	}
}

// skipStatic skips middleware for uploaded files and the metrics scrape
func skipStatic(c echo.Context) bool {
	p := c.Request().URL.Path
	return strings.HasPrefix(p, "/static/") || p == "/metrics"
}
