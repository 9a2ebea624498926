package httpcontroller

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gardentracker/gardentracker/internal/imagestore"
)

// customFileServer serves stored uploads under prefix. Only image extensions
// get an image type; uploads are sandboxed so a stored file never runs as a
// page on this origin. Names are resolved through the image store so nothing
// outside the upload directory is reachable.
func customFileServer(e *echo.Echo, files *imagestore.Store, prefix string) {
	e.GET(prefix+"/*", func(c echo.Context) error {
		p := prefix + "/" + c.Param("*")
		f, err := files.Open(p)
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "File not found")
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			return echo.NewHTTPError(http.StatusNotFound, "File not found")
		}
		h := c.Response().Header()
		h.Set(echo.HeaderContentType, imagestore.ContentType(p))
		h.Set(echo.HeaderXContentTypeOptions, "nosniff")
		h.Set(echo.HeaderContentSecurityPolicy, "sandbox; default-src 'none'")
		http.ServeContent(c.Response(), c.Request(), info.Name(), info.ModTime(), f)
		return nil
	})
}
