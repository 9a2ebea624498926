//go:build integration

package datastore

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/gardentracker/gardentracker/internal/conf"
	"github.com/gardentracker/gardentracker/internal/logger"
)

// newMySQLStore starts a MySQL container and opens a migrated store on it
// through the same URL handling used in production
func newMySQLStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MySQL container test in short mode")
	}
	ctx := t.Context()

	ctr, err := tcmysql.Run(ctx, "mysql:8.4",
		tcmysql.WithDatabase("garden_db"),
		tcmysql.WithUsername("garden_user"),
		tcmysql.WithPassword("mygarden"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "failed to start MySQL container")

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	settings := conf.DefaultSettings()
	settings.Database.URL = fmt.Sprintf("mysql://garden_user:mygarden@%s:%s/garden_db", host, port.Port())

	store, err := Open(settings, logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil),
		WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.Equal(t, conf.DriverMySQL, store.Driver())

	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestMySQLPlantLifecycle(t *testing.T) {
	s := newMySQLStore(t)
	ctx := t.Context()

	p := createPlant(t, s, "Tomato")
	assert.Equal(t, testNow.Year(), p.YearID)

	at := time.Date(2026, time.July, 2, 7, 0, 0, 0, time.Local)
	require.NoError(t, s.Harvests.Create(ctx, &Harvest{PlantID: p.ID, WeightOz: 32, Timestamp: at}))

	stats, err := s.Harvests.Stats(ctx, Filters{"plant_id": p.ID})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, stats.TotalLbs, 1e-9)

	found, err := s.Plants.List(ctx, Filters{"name": "Tomato"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	_, err = s.Plants.Delete(ctx, p.ID)
	require.NoError(t, err)

	harvests, err := s.Harvests.List(ctx, Filters{"plant_id": p.ID})
	require.NoError(t, err)
	assert.Empty(t, harvests)
}

func TestMySQLYearGetOrCreateIsUnique(t *testing.T) {
	s := newMySQLStore(t)
	ctx := t.Context()

	first, err := s.Years.GetOrCreate(ctx, 2031)
	require.NoError(t, err)
	second, err := s.Years.GetOrCreate(ctx, 2031)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}
