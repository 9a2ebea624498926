package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
)

// PageData is passed to every HTML template
type PageData struct {
	Title   string
	Page    string
	Data    any
	Filters url.Values
}

// wantsHTML reports whether the client prefers an HTML page
func wantsHTML(ctx echo.Context) bool {
	return strings.Contains(ctx.Request().Header.Get(echo.HeaderAccept), echo.MIMETextHTML)
}

// respond renders the named page for HTML clients and JSON for everyone else
func (c *Controller) respond(ctx echo.Context, page, title string, data any) error {
	if wantsHTML(ctx) && ctx.Echo().Renderer != nil {
		return ctx.Render(http.StatusOK, page, &PageData{
			Title:   title,
			Page:    page,
			Data:    data,
			Filters: ctx.QueryParams(),
		})
	}
	return ctx.JSON(http.StatusOK, data)
}

// deleted is the body returned by every delete endpoint
func deleted(ctx echo.Context, entity string) error {
	return ctx.JSON(http.StatusOK, map[string]string{"message": entity + " deleted"})
}
