package api

import (
	"bytes"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/gardentracker/gardentracker/internal/datastore"
)

func (env *testEnv) createHarvest(t *testing.T, plantID uint, oz float64, at time.Time) {
	t.Helper()
	require.NoError(t, env.store.Harvests.Create(t.Context(), &datastore.Harvest{PlantID: plantID, WeightOz: oz, Timestamp: at}))
}

func TestCreateHarvest(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "")
	p := env.createPlant(t, "Zucchini")

	rec := env.doForm(http.MethodPost, "/harvests/", url.Values{
		"plant_id":  {strconv.FormatUint(uint64(p.ID), 10)},
		"weight_oz": {"24"},
		"timestamp": {"2026-06-01T07:30"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	h := decode[datastore.Harvest](t, rec)
	assert.InDelta(t, 24.0, h.WeightOz, 0.001)
	assert.Equal(t, 2026, h.Timestamp.Year())
	assert.Equal(t, time.June, h.Timestamp.Month())

	rec = env.doForm(http.MethodPost, "/harvests/", url.Values{"weight_oz": {"abc"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode[ErrorResponse](t, rec).Error.Details["field_errors"].(map[string]any)
	assert.Equal(t, "must be a number", fields["weight_oz"])
	assert.Equal(t, "is required", fields["plant_id"])
}

func TestHarvestStatsAndDateFilter(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "")
	p := env.createPlant(t, "Tomato")

	env.createHarvest(t, p.ID, 16, time.Date(2026, time.May, 3, 9, 0, 0, 0, time.Local))
	env.createHarvest(t, p.ID, 8, time.Date(2026, time.May, 20, 9, 0, 0, 0, time.Local))
	env.createHarvest(t, p.ID, 32, time.Date(2026, time.June, 1, 9, 0, 0, 0, time.Local))

	rec := env.do(newGet("/harvests/stats"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats := decode[datastore.HarvestStats](t, rec)
	assert.Equal(t, 3, stats.Count)
	assert.InDelta(t, 56.0, stats.TotalOz, 0.001)
	assert.InDelta(t, 3.5, stats.TotalLbs, 0.001)
	require.Len(t, stats.Monthly, 2)

	env.createHarvest(t, p.ID, 4, time.Date(2026, time.May, 31, 23, 59, 59, 500_000_000, time.Local))

	rec = env.do(newGet("/harvests/?date_min=2026-05-01&date_max=2026-05-31"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]datastore.Harvest](t, rec), 3, "the last sub-second of the day is inside the range")
}

func TestExportHarvests(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "")
	p := env.createPlant(t, "Pepper")
	env.createHarvest(t, p.ID, 12, time.Date(2026, time.May, 3, 9, 0, 0, 0, time.Local))
	env.createHarvest(t, p.ID, 4, time.Date(2026, time.May, 4, 9, 0, 0, 0, time.Local))

	rec := env.do(newGet("/harvests/export.xlsx"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mimeXLSX, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "harvests-2026-06-02.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	rows, err := f.GetRows(sheetHarvests)
	require.NoError(t, err)
	require.Len(t, rows, 4, "header, two harvests and a total row")
	assert.Equal(t, harvestHeaders, rows[0])
	assert.Equal(t, "Pepper", rows[1][1])
	assert.Equal(t, "Total", rows[3][0])
	assert.Equal(t, "16", rows[3][3])
	assert.Equal(t, "1", rows[3][4])

	monthly, err := f.GetRows(sheetMonthly)
	require.NoError(t, err)
	require.Len(t, monthly, 2)
}

func TestDuplicateAndDeleteHarvest(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "")
	p := env.createPlant(t, "Bean")
	env.createHarvest(t, p.ID, 5, time.Date(2026, time.May, 3, 9, 0, 0, 0, time.Local))

	harvests, err := env.store.Harvests.List(t.Context(), nil)
	require.NoError(t, err)
	require.Len(t, harvests, 1)
	target := "/harvests/" + strconv.FormatUint(uint64(harvests[0].ID), 10)

	rec := env.do(newPost(target + "/duplicate"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dup := decode[datastore.Harvest](t, rec)
	assert.InDelta(t, 5.0, dup.WeightOz, 0.001)
	assert.Equal(t, p.ID, dup.PlantID)

	rec = env.do(newDelete(target))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Harvest deleted", decode[map[string]string](t, rec)["message"])
}

func TestNoteLifecycle(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "")
	p := env.createPlant(t, "Squash")
	plantID := strconv.FormatUint(uint64(p.ID), 10)

	rec := env.doMultipart(t, http.MethodPost, "/notes/", map[string]string{
		"body": "Powdery mildew on lower leaves", "plant_id": plantID,
	}, "leaf.jpg", jpegHeader)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	n := decode[datastore.Note](t, rec)
	require.NotNil(t, n.ImagePath)
	assert.Equal(t, &p.ID, n.PlantID)
	assert.False(t, n.Timestamp.IsZero(), "timestamp defaults to now")
	target := "/notes/" + strconv.FormatUint(uint64(n.ID), 10)

	rec = env.do(newGet("/notes/?plant_id=" + plantID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]datastore.Note](t, rec), 1)

	rec = env.doJSON(t, http.MethodPut, target, map[string]any{"body": "Treated with milk spray"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[datastore.Note](t, rec)
	assert.Equal(t, "Treated with milk spray", updated.Body)
	assert.Equal(t, n.ImagePath, updated.ImagePath)

	rec = env.do(newDelete(target))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Note deleted", decode[map[string]string](t, rec)["message"])
	assert.False(t, env.files.Exists(*n.ImagePath))
}

func TestNoteRejectsTwoParents(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "")
	p := env.createPlant(t, "Onion")
	sp := &datastore.SeedPacket{Name: "Onion"}
	require.NoError(t, env.store.SeedPackets.Create(t.Context(), sp))

	rec := env.doJSON(t, http.MethodPost, "/notes/", map[string]any{
		"body": "both", "plant_id": p.ID, "seed_packet_id": sp.ID,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
