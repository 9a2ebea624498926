package httpcontroller

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/gardentracker/gardentracker/internal/logger"
)

// echoLogAdapter adapts our Logger to implement io.Writer for Echo
type echoLogAdapter struct {
	log logger.Logger
}

// Write implements io.Writer for echoLogAdapter
func (a *echoLogAdapter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		a.log.Info(msg)
	}
	return len(p), nil
}

// requestLogger logs one line per completed request with its request id
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper:          skipStatic,
		LogStatus:        true,
		LogURI:           true,
		LogMethod:        true,
		LogLatency:       true,
		LogRemoteIP:      true,
		LogRequestID:     true,
		LogError:         true,
		LogUserAgent:     true,
		LogContentLength: true,
		HandleError:      false,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("request_id", v.RequestID),
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency),
				logger.String("ip", v.RemoteIP),
				logger.String("user_agent", v.UserAgent),
			}
			switch {
			case v.Status >= 500:
				s.log.Error("request completed", fields...)
			case v.Latency > slowRequest:
				s.log.Warn("slow request", fields...)
			default:
				s.log.Debug("request completed", fields...)
			}
			return nil
		},
	})
}

const slowRequest = 2 * time.Second
