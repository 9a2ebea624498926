package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gardentracker/gardentracker/internal/datastore"
	"github.com/gardentracker/gardentracker/internal/errors"
	"github.com/gardentracker/gardentracker/internal/logger"
)

const entityHarvest = "Harvest"

func (c *Controller) initHarvestRoutes() {
	g := c.Echo.Group("/harvests")
	g.POST("/", c.CreateHarvest)
	g.GET("/", c.ListHarvests)
	g.GET("", c.HarvestsPage)
	g.GET("/stats", c.HarvestStats)
	g.GET("/export.xlsx", c.ExportHarvests)
	g.GET("/:id", c.GetHarvest)
	g.PUT("/:id", c.UpdateHarvest)
	g.DELETE("/:id", c.DeleteHarvest)
	g.POST("/:id/duplicate", c.DuplicateHarvest)
}

type harvestRequest struct {
	PlantID   field `json:"plant_id" form:"plant_id"`
	WeightOz  field `json:"weight_oz" form:"weight_oz"`
	Timestamp field `json:"timestamp" form:"timestamp"`
}

func (r *harvestRequest) harvest(fe fieldErrors) *datastore.Harvest {
	h := &datastore.Harvest{Timestamp: fe.timestamp("timestamp", r.Timestamp)}
	if w := fe.optFloat("weight_oz", r.WeightOz); w != nil {
		h.WeightOz = *w
	} else if _, bad := fe["weight_oz"]; !bad {
		fe["weight_oz"] = "is required"
	}
	if id := fe.optID("plant_id", r.PlantID); id != nil {
		h.PlantID = *id
	} else if _, bad := fe["plant_id"]; !bad {
		fe["plant_id"] = "is required"
	}
	return h
}

// CreateHarvest handles POST /harvests/
func (c *Controller) CreateHarvest(ctx echo.Context) error {
	var req harvestRequest
	if err := bindRequest(ctx, &req); err != nil {
		return c.HandleError(ctx, err)
	}
	fe := fieldErrors{}
	h := req.harvest(fe)
	if err := fe.err(); err != nil {
		return c.HandleError(ctx, err)
	}
	if err := c.Store.Harvests.Create(ctx.Request().Context(), h); err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, h)
}

// ListHarvests handles GET /harvests/
func (c *Controller) ListHarvests(ctx echo.Context) error {
	harvests, err := c.listHarvests(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, harvests)
}

// harvestsPage is the data of the harvest list page
type harvestsPage struct {
	Harvests []datastore.Harvest
	Stats    *datastore.HarvestStats
	Plants   []datastore.Plant
}

// HarvestsPage handles GET /harvests
func (c *Controller) HarvestsPage(ctx echo.Context) error {
	if !wantsHTML(ctx) {
		return c.ListHarvests(ctx)
	}
	harvests, err := c.listHarvests(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	plants, err := c.Store.Plants.List(ctx.Request().Context(), nil)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.respond(ctx, "harvests", "Harvests", &harvestsPage{
		Harvests: harvests,
		Stats:    datastore.SummarizeHarvests(harvests),
		Plants:   plants,
	})
}

func (c *Controller) listHarvests(ctx echo.Context) ([]datastore.Harvest, error) {
	filters, opts, err := parseFilters(ctx.QueryParams(), harvestFilters)
	if err != nil {
		return nil, err
	}
	return c.Store.Harvests.List(ctx.Request().Context(), filters, opts...)
}

// HarvestStats handles GET /harvests/stats
func (c *Controller) HarvestStats(ctx echo.Context) error {
	filters, _, err := parseFilters(ctx.QueryParams(), harvestFilters)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	stats, err := c.Store.Harvests.Stats(ctx.Request().Context(), filters)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.respond(ctx, "harvest_stats", "Harvest Statistics", stats)
}

// GetHarvest handles GET /harvests/:id
func (c *Controller) GetHarvest(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	h, err := c.Store.Harvests.Get(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.respond(ctx, "harvest", "Harvest", h)
}

// UpdateHarvest handles PUT /harvests/:id
func (c *Controller) UpdateHarvest(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	var req harvestRequest
	if err := bindRequest(ctx, &req); err != nil {
		return c.HandleError(ctx, err)
	}
	fe := fieldErrors{}
	h := req.harvest(fe)
	if err := fe.err(); err != nil {
		return c.HandleError(ctx, err)
	}
	h.ID = id
	if err := c.Store.Harvests.Update(ctx.Request().Context(), h); err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, h)
}

// DeleteHarvest handles DELETE /harvests/:id
func (c *Controller) DeleteHarvest(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	if err := c.Store.Harvests.Delete(ctx.Request().Context(), id); err != nil {
		return c.HandleError(ctx, err)
	}
	return deleted(ctx, entityHarvest)
}

// DuplicateHarvest handles POST /harvests/:id/duplicate
func (c *Controller) DuplicateHarvest(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	dup, err := c.Store.Harvests.Duplicate(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, dup)
}

// ExportHarvests handles GET /harvests/export.xlsx
func (c *Controller) ExportHarvests(ctx echo.Context) error {
	harvests, err := c.listHarvests(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	f, err := buildHarvestWorkbook(harvests, datastore.SummarizeHarvests(harvests))
	if err != nil {
		return c.HandleError(ctx, errors.New(err).
			Component("api").
			Category(errors.CategoryGeneric).
			Context(errors.ContextOperation, "harvest_export").
			Build())
	}
	defer func() { _ = f.Close() }()

	filename := "harvests-" + c.now().Format("2006-01-02") + ".xlsx"
	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, mimeXLSX)
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	res.WriteHeader(http.StatusOK)
	if err := f.Write(res); err != nil {
		c.log.Error("failed to write harvest export", logger.Error(err))
	}
	return nil
}
