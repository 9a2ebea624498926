package api

import (
	"net/http"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gardentracker/gardentracker/internal/datastore"
)

func TestCreatePlant(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "")

	supply := &datastore.GardenSupply{Name: "Trellis"}
	require.NoError(t, env.store.GardenSupplies.Create(t.Context(), supply))

	rec := env.doForm(http.MethodPost, "/plants/", url.Values{
		"name":            {"Tomato"},
		"variety":         {"Roma"},
		"planting_method": {"Seedly Tray"},
		"year":            {"2025"},
		"supply_ids":      {strconv.FormatUint(uint64(supply.ID), 10)},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	p := decode[datastore.Plant](t, rec)
	assert.Equal(t, "Tomato", p.Name)
	assert.Equal(t, ptr("Roma"), p.Variety)
	assert.Equal(t, datastore.PlantingSeedlingTray, p.PlantingMethod, "legacy spelling is normalized")
	assert.Equal(t, 2025, p.YearID)
	require.Len(t, p.GardenSupplies, 1)
	assert.Equal(t, "Trellis", p.GardenSupplies[0].Name)
}

func TestCreatePlantValidation(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "")

	rec := env.doForm(http.MethodPost, "/plants/", url.Values{"variety": {"Roma"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode[ErrorResponse](t, rec).Error.Details["field_errors"].(map[string]any)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "planting_method")

	rec = env.doForm(http.MethodPost, "/plants/", url.Values{
		"name": {"Tomato"}, "planting_method": {"Pot"}, "seed_packet_id": {"42"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields = decode[ErrorResponse](t, rec).Error.Details["field_errors"].(map[string]any)
	assert.Contains(t, fields, "seed_packet_id")
}

func TestUpdatePlantSeedPacketLink(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "")

	sp := &datastore.SeedPacket{Name: "Roma"}
	require.NoError(t, env.store.SeedPackets.Create(t.Context(), sp))
	p := &datastore.Plant{Name: "Tomato", PlantingMethod: datastore.PlantingPot, SeedPacketID: &sp.ID, Variety: ptr("Roma")}
	require.NoError(t, env.store.Plants.Create(t.Context(), p))
	target := "/plants/" + strconv.FormatUint(uint64(p.ID), 10)

	// absent keeps the link, absent variety is cleared
	rec := env.doJSON(t, http.MethodPut, target, map[string]any{"name": "Tomato", "planting_method": "Ground"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[datastore.Plant](t, rec)
	assert.Equal(t, &sp.ID, got.SeedPacketID)
	assert.Nil(t, got.Variety)
	assert.Equal(t, datastore.PlantingGround, got.PlantingMethod)
	assert.Equal(t, p.YearID, got.YearID)

	// null unlinks
	rec = env.doJSON(t, http.MethodPut, target, map[string]any{
		"name": "Tomato", "planting_method": "Ground", "seed_packet_id": nil,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, decode[datastore.Plant](t, rec).SeedPacketID)
}

func TestPlantLifecycle(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "")
	p := env.createPlant(t, "Basil")
	target := "/plants/" + strconv.FormatUint(uint64(p.ID), 10)

	rec := env.do(newGet(target))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Basil", decode[datastore.Plant](t, rec).Name)

	rec = env.do(newPost(target + "/duplicate"))
	require.Equal(t, http.StatusOK, rec.Code)
	dup := decode[datastore.Plant](t, rec)
	assert.Equal(t, "Basil (Copy)", dup.Name)
	assert.NotEqual(t, p.ID, dup.ID)

	rec = env.do(newDelete(target))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"message": "Plant deleted"}, decode[map[string]string](t, rec))

	rec = env.do(newGet(target))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlantsPageWithoutHTMLReturnsJSON(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "")
	env.createPlant(t, "Kale")

	rec := env.do(newGet("/plants"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]datastore.Plant](t, rec), 1)
}
