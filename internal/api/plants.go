package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gardentracker/gardentracker/internal/datastore"
)

const entityPlant = "Plant"

func (c *Controller) initPlantRoutes() {
	g := c.Echo.Group("/plants")
	g.POST("/", c.CreatePlant)
	g.GET("/", c.ListPlants)
	g.GET("", c.PlantsPage)
	g.GET("/:id", c.GetPlant)
	g.PUT("/:id", c.UpdatePlant)
	g.DELETE("/:id", c.DeletePlant)
	g.POST("/:id/duplicate", c.DuplicatePlant)
}

type plantRequest struct {
	Name           field     `json:"name" form:"name"`
	Variety        field     `json:"variety" form:"variety"`
	PlantingMethod field     `json:"planting_method" form:"planting_method"`
	SeedPacketID   field     `json:"seed_packet_id" form:"seed_packet_id"`
	Year           field     `json:"year" form:"year"`
	SupplyIDs      fieldList `json:"supply_ids" form:"supply_ids"`
}

// apply copies request fields to p. An absent seed_packet_id keeps the
// current link; a blank one removes it.
func (r *plantRequest) apply(p *datastore.Plant, fe fieldErrors) {
	p.Name = fe.required("name", r.Name)
	p.Variety = optStr(r.Variety)
	p.PlantingMethod = datastore.PlantingMethod(fe.required("planting_method", r.PlantingMethod))
	if r.SeedPacketID.Set {
		p.SeedPacketID = fe.optID("seed_packet_id", r.SeedPacketID)
	}
	if year := fe.optInt("year", r.Year); year != nil {
		p.YearID = *year
	}
}

// CreatePlant handles POST /plants/
func (c *Controller) CreatePlant(ctx echo.Context) error {
	var req plantRequest
	if err := bindRequest(ctx, &req); err != nil {
		return c.HandleError(ctx, err)
	}
	fe := fieldErrors{}
	p := &datastore.Plant{}
	req.apply(p, fe)
	supplyIDs := fe.ids("supply_ids", req.SupplyIDs)
	if err := fe.err(); err != nil {
		return c.HandleError(ctx, err)
	}

	reqCtx := ctx.Request().Context()
	if err := c.Store.Plants.Create(reqCtx, p); err != nil {
		return c.HandleError(ctx, err)
	}
	if len(supplyIDs) > 0 {
		if err := c.Store.Plants.SetSupplies(reqCtx, p.ID, supplyIDs); err != nil {
			return c.HandleError(ctx, err)
		}
	}
	return c.writePlant(ctx, p.ID)
}

// ListPlants handles GET /plants/
func (c *Controller) ListPlants(ctx echo.Context) error {
	plants, err := c.listPlants(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, plants)
}

// PlantsPage handles GET /plants
func (c *Controller) PlantsPage(ctx echo.Context) error {
	plants, err := c.listPlants(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.respond(ctx, "plants", "Plants", plants)
}

func (c *Controller) listPlants(ctx echo.Context) ([]datastore.Plant, error) {
	filters, opts, err := parseFilters(ctx.QueryParams(), plantFilters)
	if err != nil {
		return nil, err
	}
	return c.Store.Plants.List(ctx.Request().Context(), filters, opts...)
}

// GetPlant handles GET /plants/:id
func (c *Controller) GetPlant(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	p, err := c.Store.Plants.Get(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.respond(ctx, "plant", p.Name, p)
}

// UpdatePlant handles PUT /plants/:id
func (c *Controller) UpdatePlant(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	var req plantRequest
	if err := bindRequest(ctx, &req); err != nil {
		return c.HandleError(ctx, err)
	}

	reqCtx := ctx.Request().Context()
	current, err := c.Store.Plants.Get(reqCtx, id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	fe := fieldErrors{}
	p := &datastore.Plant{ID: id, YearID: current.YearID, SeedPacketID: current.SeedPacketID}
	req.apply(p, fe)
	supplyIDs := fe.ids("supply_ids", req.SupplyIDs)
	if err := fe.err(); err != nil {
		return c.HandleError(ctx, err)
	}

	if err := c.Store.Plants.Update(reqCtx, p); err != nil {
		return c.HandleError(ctx, err)
	}
	if req.SupplyIDs.Set {
		if err := c.Store.Plants.SetSupplies(reqCtx, id, supplyIDs); err != nil {
			return c.HandleError(ctx, err)
		}
	}
	return c.writePlant(ctx, id)
}

// DeletePlant handles DELETE /plants/:id
func (c *Controller) DeletePlant(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	paths, err := c.Store.Plants.Delete(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	c.removeFiles(paths)
	return deleted(ctx, entityPlant)
}

// DuplicatePlant handles POST /plants/:id/duplicate
func (c *Controller) DuplicatePlant(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	dup, err := c.Store.Plants.Duplicate(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.writePlant(ctx, dup.ID)
}

// writePlant responds with the stored plant and its relations
func (c *Controller) writePlant(ctx echo.Context, id uint) error {
	p, err := c.Store.Plants.Get(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, p)
}
