package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gardentracker/gardentracker/internal/datastore"
)

const entityImage = "Image"

// imageRequest carries the owners a new image is linked to
type imageRequest struct {
	PlantID        field `json:"plant_id" form:"plant_id"`
	SeedPacketID   field `json:"seed_packet_id" form:"seed_packet_id"`
	GardenSupplyID field `json:"garden_supply_id" form:"garden_supply_id"`
	NoteID         field `json:"note_id" form:"note_id"`
}

func (r *imageRequest) owners(fe fieldErrors) []datastore.OwnerRef {
	var owners []datastore.OwnerRef
	for _, o := range []struct {
		key  string
		kind datastore.OwnerKind
		f    field
	}{
		{"plant_id", datastore.OwnerPlant, r.PlantID},
		{"seed_packet_id", datastore.OwnerSeedPacket, r.SeedPacketID},
		{"garden_supply_id", datastore.OwnerGardenSupply, r.GardenSupplyID},
		{"note_id", datastore.OwnerNote, r.NoteID},
	} {
		if id := fe.optID(o.key, o.f); id != nil {
			owners = append(owners, datastore.OwnerRef{Kind: o.kind, ID: *id})
		}
	}
	return owners
}

func (c *Controller) initImageRoutes() {
	g := c.Echo.Group("/images")
	g.POST("/", c.UploadImage)
	g.GET("/", c.ListImages)
	g.GET("/:id", c.GetImage)
	g.DELETE("/:id", c.DeleteImage)
}

// UploadImage handles POST /images/ with optional owner ids
func (c *Controller) UploadImage(ctx echo.Context) error {
	var req imageRequest
	if err := bindRequest(ctx, &req); err != nil {
		return c.HandleError(ctx, err)
	}
	fe := fieldErrors{}
	owners := req.owners(fe)
	file := formImage(ctx)
	if file == nil {
		fe[imageField] = "is required"
	}
	if err := fe.err(); err != nil {
		return c.HandleError(ctx, err)
	}

	saved, err := c.Files.SaveFile(file)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	img := &datastore.Image{
		FilePath:         saved.Path,
		OriginalFilename: &saved.OriginalFilename,
		FileSize:         &saved.Size,
		ContentType:      &saved.ContentType,
	}
	if err := c.Store.Images.Create(ctx.Request().Context(), img, owners...); err != nil {
		c.discard(&saved.Path)
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, img)
}

// ListImages handles GET /images/
func (c *Controller) ListImages(ctx echo.Context) error {
	filters, opts, err := parseFilters(ctx.QueryParams(), imageFilters)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	images, err := c.Store.Images.List(ctx.Request().Context(), filters, opts...)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, images)
}

// GetImage handles GET /images/:id
func (c *Controller) GetImage(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	img, err := c.Store.Images.Get(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, img)
}

// DeleteImage handles DELETE /images/:id. The file is kept while an entity
// still references it through image_path.
func (c *Controller) DeleteImage(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	reqCtx := ctx.Request().Context()
	path, err := c.Store.Images.Delete(reqCtx, id)
	if err != nil {
		return c.HandleError(ctx, err)
	}

	inUse, err := c.pathReferenced(ctx, path)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	if !inUse {
		c.removeFiles([]string{path})
	}
	return deleted(ctx, entityImage)
}

// pathReferenced reports whether an entity or another image row still uses path
func (c *Controller) pathReferenced(ctx echo.Context, path string) (bool, error) {
	reqCtx := ctx.Request().Context()
	byPath := datastore.Filters{"image_path": path}

	packets, err := c.Store.SeedPackets.List(reqCtx, byPath, datastore.Limit(1))
	if err != nil {
		return false, err
	}
	supplies, err := c.Store.GardenSupplies.List(reqCtx, byPath, datastore.Limit(1))
	if err != nil {
		return false, err
	}
	notes, err := c.Store.Notes.List(reqCtx, byPath, datastore.Limit(1))
	if err != nil {
		return false, err
	}
	images, err := c.Store.Images.List(reqCtx, datastore.Filters{"file_path": path}, datastore.Limit(1))
	if err != nil {
		return false, err
	}
	return len(packets)+len(supplies)+len(notes)+len(images) > 0, nil
}
