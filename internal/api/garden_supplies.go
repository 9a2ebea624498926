package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gardentracker/gardentracker/internal/datastore"
)

const entityGardenSupply = "Garden supply"

func (c *Controller) initGardenSupplyRoutes() {
	g := c.Echo.Group("/garden-supplies")
	g.POST("/", c.CreateGardenSupply)
	g.GET("/", c.ListGardenSupplies)
	g.GET("", c.GardenSuppliesPage)
	g.GET("/:id", c.GetGardenSupply)
	g.PUT("/:id", c.UpdateGardenSupply)
	g.DELETE("/:id", c.DeleteGardenSupply)
	g.POST("/:id/duplicate", c.DuplicateGardenSupply)
}

type gardenSupplyRequest struct {
	Name        field `json:"name" form:"name"`
	Description field `json:"description" form:"description"`
}

// CreateGardenSupply handles POST /garden-supplies/
func (c *Controller) CreateGardenSupply(ctx echo.Context) error {
	var req gardenSupplyRequest
	if err := bindRequest(ctx, &req); err != nil {
		return c.HandleError(ctx, err)
	}
	fe := fieldErrors{}
	gs := &datastore.GardenSupply{
		Name:        fe.required("name", req.Name),
		Description: optStr(req.Description),
	}
	if err := fe.err(); err != nil {
		return c.HandleError(ctx, err)
	}

	var err error
	if gs.ImagePath, err = c.storeUpload(formImage(ctx)); err != nil {
		return c.HandleError(ctx, err)
	}
	if err := c.Store.GardenSupplies.Create(ctx.Request().Context(), gs); err != nil {
		c.discard(gs.ImagePath)
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, gs)
}

// ListGardenSupplies handles GET /garden-supplies/
func (c *Controller) ListGardenSupplies(ctx echo.Context) error {
	supplies, err := c.listGardenSupplies(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, supplies)
}

// GardenSuppliesPage handles GET /garden-supplies
func (c *Controller) GardenSuppliesPage(ctx echo.Context) error {
	supplies, err := c.listGardenSupplies(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.respond(ctx, "garden_supplies", "Garden Supplies", supplies)
}

func (c *Controller) listGardenSupplies(ctx echo.Context) ([]datastore.GardenSupply, error) {
	filters, opts, err := parseFilters(ctx.QueryParams(), gardenSupplyFilters)
	if err != nil {
		return nil, err
	}
	return c.Store.GardenSupplies.List(ctx.Request().Context(), filters, opts...)
}

// GetGardenSupply handles GET /garden-supplies/:id
func (c *Controller) GetGardenSupply(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	gs, err := c.Store.GardenSupplies.Get(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.respond(ctx, "garden_supply", gs.Name, gs)
}

// UpdateGardenSupply handles PUT /garden-supplies/:id
func (c *Controller) UpdateGardenSupply(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	var req gardenSupplyRequest
	if err := bindRequest(ctx, &req); err != nil {
		return c.HandleError(ctx, err)
	}

	reqCtx := ctx.Request().Context()
	current, err := c.Store.GardenSupplies.Get(reqCtx, id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	fe := fieldErrors{}
	gs := &datastore.GardenSupply{
		ID:          id,
		Name:        fe.required("name", req.Name),
		Description: optStr(req.Description),
		ImagePath:   current.ImagePath,
	}
	if err := fe.err(); err != nil {
		return c.HandleError(ctx, err)
	}

	upload, err := c.storeUpload(formImage(ctx))
	if err != nil {
		return c.HandleError(ctx, err)
	}
	if upload != nil {
		gs.ImagePath = upload
	}
	if err := c.Store.GardenSupplies.Update(reqCtx, gs); err != nil {
		c.discard(upload)
		return c.HandleError(ctx, err)
	}
	c.replaced(current.ImagePath, upload)
	return ctx.JSON(http.StatusOK, gs)
}

// DeleteGardenSupply handles DELETE /garden-supplies/:id
func (c *Controller) DeleteGardenSupply(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	paths, err := c.Store.GardenSupplies.Delete(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	c.removeFiles(paths)
	return deleted(ctx, entityGardenSupply)
}

// DuplicateGardenSupply handles POST /garden-supplies/:id/duplicate
func (c *Controller) DuplicateGardenSupply(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	dup, err := c.Store.GardenSupplies.Duplicate(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, dup)
}
