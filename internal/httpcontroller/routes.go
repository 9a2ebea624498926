// httpcontroller/routes.go
package httpcontroller

import (
	"embed"

	"github.com/labstack/echo/v4"
)

// ViewsFs holds the page templates
//
//go:embed views
var ViewsFs embed.FS

// initRoutes registers the routes owned by the server itself: uploaded
// files and the metrics scrape endpoint.
func (s *Server) initRoutes() {
	uploads := s.Settings.Upload
	customFileServer(s.Echo, s.Files, uploads.URLPrefix)

	if s.metrics != nil && s.Settings.Metrics.Enabled {
		path := s.Settings.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		s.Echo.GET(path, echo.WrapHandler(s.metrics.Handler()))
	}
}
