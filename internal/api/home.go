package api

import (
	"github.com/labstack/echo/v4"

	"github.com/gardentracker/gardentracker/internal/datastore"
)

const recentLimit = 5

// dashboard is the data of the home page
type dashboard struct {
	Plants         []datastore.Plant        `json:"plants"`
	Notes          []datastore.Note         `json:"notes"`
	SeedPackets    []datastore.SeedPacket   `json:"seed_packets"`
	GardenSupplies []datastore.GardenSupply `json:"garden_supplies"`
}

// Home handles GET / with the most recent records of each kind
func (c *Controller) Home(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	newest := func(column string) []datastore.ListOption {
		return []datastore.ListOption{datastore.OrderBy(column, true), datastore.Limit(recentLimit)}
	}

	var (
		d   dashboard
		err error
	)
	if d.Plants, err = c.Store.Plants.List(reqCtx, nil, newest("created_at")...); err != nil {
		return c.HandleError(ctx, err)
	}
	if d.Notes, err = c.Store.Notes.List(reqCtx, nil, newest("timestamp")...); err != nil {
		return c.HandleError(ctx, err)
	}
	if d.SeedPackets, err = c.Store.SeedPackets.List(reqCtx, nil, newest("created_at")...); err != nil {
		return c.HandleError(ctx, err)
	}
	if d.GardenSupplies, err = c.Store.GardenSupplies.List(reqCtx, nil, newest("created_at")...); err != nil {
		return c.HandleError(ctx, err)
	}
	return c.respond(ctx, "home", "Garden Tracker", &d)
}
