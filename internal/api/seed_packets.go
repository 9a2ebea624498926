package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gardentracker/gardentracker/internal/datastore"
)

const entitySeedPacket = "Seed packet"

func (c *Controller) initSeedPacketRoutes() {
	g := c.Echo.Group("/seed-packets")
	g.POST("/", c.CreateSeedPacket)
	g.GET("/", c.ListSeedPackets)
	g.GET("", c.SeedPacketsPage)
	g.GET("/:id", c.GetSeedPacket)
	g.PUT("/:id", c.UpdateSeedPacket)
	g.DELETE("/:id", c.DeleteSeedPacket)
	g.POST("/:id/duplicate", c.DuplicateSeedPacket)
}

type seedPacketRequest struct {
	Name                 field `json:"name" form:"name"`
	Variety              field `json:"variety" form:"variety"`
	Description          field `json:"description" form:"description"`
	PlantingInstructions field `json:"planting_instructions" form:"planting_instructions"`
	DaysToGermination    field `json:"days_to_germination" form:"days_to_germination"`
	Spacing              field `json:"spacing" form:"spacing"`
	SunExposure          field `json:"sun_exposure" form:"sun_exposure"`
	SoilType             field `json:"soil_type" form:"soil_type"`
	Watering             field `json:"watering" form:"watering"`
	Fertilizer           field `json:"fertilizer" form:"fertilizer"`
	PackageWeight        field `json:"package_weight" form:"package_weight"`
	ExpirationDate       field `json:"expiration_date" form:"expiration_date"`
	Quantity             field `json:"quantity" form:"quantity"`
}

func (r *seedPacketRequest) seedPacket(fe fieldErrors) *datastore.SeedPacket {
	sp := &datastore.SeedPacket{
		Name:                 fe.required("name", r.Name),
		Variety:              optStr(r.Variety),
		Description:          optStr(r.Description),
		PlantingInstructions: optStr(r.PlantingInstructions),
		DaysToGermination:    fe.optInt("days_to_germination", r.DaysToGermination),
		Spacing:              optStr(r.Spacing),
		SunExposure:          optStr(r.SunExposure),
		SoilType:             optStr(r.SoilType),
		Watering:             optStr(r.Watering),
		Fertilizer:           optStr(r.Fertilizer),
		PackageWeight:        fe.optFloat("package_weight", r.PackageWeight),
		ExpirationDate:       fe.optDate("expiration_date", r.ExpirationDate),
	}
	if q := fe.optInt("quantity", r.Quantity); q != nil {
		sp.Quantity = *q
	}
	return sp
}

// CreateSeedPacket handles POST /seed-packets/
func (c *Controller) CreateSeedPacket(ctx echo.Context) error {
	var req seedPacketRequest
	if err := bindRequest(ctx, &req); err != nil {
		return c.HandleError(ctx, err)
	}
	fe := fieldErrors{}
	sp := req.seedPacket(fe)
	if err := fe.err(); err != nil {
		return c.HandleError(ctx, err)
	}

	var err error
	if sp.ImagePath, err = c.storeUpload(formImage(ctx)); err != nil {
		return c.HandleError(ctx, err)
	}
	if err := c.Store.SeedPackets.Create(ctx.Request().Context(), sp); err != nil {
		c.discard(sp.ImagePath)
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, sp)
}

// ListSeedPackets handles GET /seed-packets/
func (c *Controller) ListSeedPackets(ctx echo.Context) error {
	packets, err := c.listSeedPackets(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, packets)
}

// SeedPacketsPage handles GET /seed-packets
func (c *Controller) SeedPacketsPage(ctx echo.Context) error {
	packets, err := c.listSeedPackets(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.respond(ctx, "seed_packets", "Seed Packets", packets)
}

func (c *Controller) listSeedPackets(ctx echo.Context) ([]datastore.SeedPacket, error) {
	filters, opts, err := parseFilters(ctx.QueryParams(), seedPacketFilters)
	if err != nil {
		return nil, err
	}
	return c.Store.SeedPackets.List(ctx.Request().Context(), filters, opts...)
}

// GetSeedPacket handles GET /seed-packets/:id
func (c *Controller) GetSeedPacket(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	sp, err := c.Store.SeedPackets.Get(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.respond(ctx, "seed_packet", sp.Name, sp)
}

// UpdateSeedPacket handles PUT /seed-packets/:id. Without an upload the
// current image is kept.
func (c *Controller) UpdateSeedPacket(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	var req seedPacketRequest
	if err := bindRequest(ctx, &req); err != nil {
		return c.HandleError(ctx, err)
	}

	reqCtx := ctx.Request().Context()
	current, err := c.Store.SeedPackets.Get(reqCtx, id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	fe := fieldErrors{}
	sp := req.seedPacket(fe)
	if err := fe.err(); err != nil {
		return c.HandleError(ctx, err)
	}
	sp.ID = id

	upload, err := c.storeUpload(formImage(ctx))
	if err != nil {
		return c.HandleError(ctx, err)
	}
	sp.ImagePath = current.ImagePath
	if upload != nil {
		sp.ImagePath = upload
	}
	if err := c.Store.SeedPackets.Update(reqCtx, sp); err != nil {
		c.discard(upload)
		return c.HandleError(ctx, err)
	}
	c.replaced(current.ImagePath, upload)
	return ctx.JSON(http.StatusOK, sp)
}

// DeleteSeedPacket handles DELETE /seed-packets/:id
func (c *Controller) DeleteSeedPacket(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	paths, err := c.Store.SeedPackets.Delete(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	c.removeFiles(paths)
	return deleted(ctx, entitySeedPacket)
}

// DuplicateSeedPacket handles POST /seed-packets/:id/duplicate
func (c *Controller) DuplicateSeedPacket(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	dup, err := c.Store.SeedPackets.Duplicate(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, dup)
}
