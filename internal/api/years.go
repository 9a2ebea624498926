package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gardentracker/gardentracker/internal/errors"
)

const (
	minYear = 1900
	maxYear = 2200
)

func (c *Controller) initYearRoutes() {
	c.Echo.GET("/years/", c.ListYears)
	c.Echo.POST("/years/", c.CreateYear)
}

// ListYears handles GET /years/
func (c *Controller) ListYears(ctx echo.Context) error {
	years, err := c.Store.Years.List(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, years)
}

// CreateYear handles POST /years/ and returns the existing row when the
// season is already recorded
func (c *Controller) CreateYear(ctx echo.Context) error {
	var req struct {
		Year field `json:"year" form:"year"`
	}
	if err := bindRequest(ctx, &req); err != nil {
		return c.HandleError(ctx, err)
	}
	fe := fieldErrors{}
	year := fe.optInt("year", req.Year)
	if err := fe.err(); err != nil {
		return c.HandleError(ctx, err)
	}
	if year == nil || *year < minYear || *year > maxYear {
		return c.HandleError(ctx, errors.ValidationError("year", "must be a year between 1900 and 2200"))
	}

	y, err := c.Store.Years.GetOrCreate(ctx.Request().Context(), *year)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, y)
}
