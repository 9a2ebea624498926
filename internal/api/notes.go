package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gardentracker/gardentracker/internal/datastore"
)

const entityNote = "Note"

func (c *Controller) initNoteRoutes() {
	g := c.Echo.Group("/notes")
	g.POST("/", c.CreateNote)
	g.GET("/", c.ListNotes)
	g.GET("", c.NotesPage)
	g.GET("/:id", c.GetNote)
	g.PUT("/:id", c.UpdateNote)
	g.DELETE("/:id", c.DeleteNote)
}

type noteRequest struct {
	Body           field `json:"body" form:"body"`
	Timestamp      field `json:"timestamp" form:"timestamp"`
	PlantID        field `json:"plant_id" form:"plant_id"`
	SeedPacketID   field `json:"seed_packet_id" form:"seed_packet_id"`
	GardenSupplyID field `json:"garden_supply_id" form:"garden_supply_id"`
}

func (r *noteRequest) note(fe fieldErrors) *datastore.Note {
	return &datastore.Note{
		Body:           fe.required("body", r.Body),
		Timestamp:      fe.timestamp("timestamp", r.Timestamp),
		PlantID:        fe.optID("plant_id", r.PlantID),
		SeedPacketID:   fe.optID("seed_packet_id", r.SeedPacketID),
		GardenSupplyID: fe.optID("garden_supply_id", r.GardenSupplyID),
	}
}

// CreateNote handles POST /notes/
func (c *Controller) CreateNote(ctx echo.Context) error {
	var req noteRequest
	if err := bindRequest(ctx, &req); err != nil {
		return c.HandleError(ctx, err)
	}
	fe := fieldErrors{}
	n := req.note(fe)
	if err := fe.err(); err != nil {
		return c.HandleError(ctx, err)
	}

	var err error
	if n.ImagePath, err = c.storeUpload(formImage(ctx)); err != nil {
		return c.HandleError(ctx, err)
	}
	if err := c.Store.Notes.Create(ctx.Request().Context(), n); err != nil {
		c.discard(n.ImagePath)
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, n)
}

// ListNotes handles GET /notes/
func (c *Controller) ListNotes(ctx echo.Context) error {
	notes, err := c.listNotes(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, notes)
}

// NotesPage handles GET /notes
func (c *Controller) NotesPage(ctx echo.Context) error {
	notes, err := c.listNotes(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.respond(ctx, "notes", "Notes", notes)
}

func (c *Controller) listNotes(ctx echo.Context) ([]datastore.Note, error) {
	filters, opts, err := parseFilters(ctx.QueryParams(), noteFilters)
	if err != nil {
		return nil, err
	}
	return c.Store.Notes.List(ctx.Request().Context(), filters, opts...)
}

// GetNote handles GET /notes/:id
func (c *Controller) GetNote(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	n, err := c.Store.Notes.Get(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return c.respond(ctx, "note", "Note", n)
}

// UpdateNote handles PUT /notes/:id. A blank timestamp keeps the current one.
func (c *Controller) UpdateNote(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	var req noteRequest
	if err := bindRequest(ctx, &req); err != nil {
		return c.HandleError(ctx, err)
	}

	reqCtx := ctx.Request().Context()
	current, err := c.Store.Notes.Get(reqCtx, id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	fe := fieldErrors{}
	n := req.note(fe)
	if err := fe.err(); err != nil {
		return c.HandleError(ctx, err)
	}
	n.ID = id
	n.ImagePath = current.ImagePath

	upload, err := c.storeUpload(formImage(ctx))
	if err != nil {
		return c.HandleError(ctx, err)
	}
	if upload != nil {
		n.ImagePath = upload
	}
	if err := c.Store.Notes.Update(reqCtx, n); err != nil {
		c.discard(upload)
		return c.HandleError(ctx, err)
	}
	c.replaced(current.ImagePath, upload)
	return ctx.JSON(http.StatusOK, n)
}

// DeleteNote handles DELETE /notes/:id
func (c *Controller) DeleteNote(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	paths, err := c.Store.Notes.Delete(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	c.removeFiles(paths)
	return deleted(ctx, entityNote)
}
