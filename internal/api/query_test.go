package api

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gardentracker/gardentracker/internal/datastore"
	"github.com/gardentracker/gardentracker/internal/errors"
)

func TestParseFilters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		spec  filterSpec
		want  datastore.Filters
	}{
		{
			name:  "equality",
			query: "name=Tomato&variety=Roma",
			spec:  plantFilters,
			want:  datastore.Filters{"name": "Tomato", "variety": "Roma"},
		},
		{
			name:  "blank values ignored",
			query: "name=&variety=Roma",
			spec:  plantFilters,
			want:  datastore.Filters{"variety": "Roma"},
		},
		{
			name:  "range bounds",
			query: "days_to_germination_min=5&days_to_germination_max=10&package_weight_max=2.5",
			spec:  seedPacketFilters,
			want: datastore.Filters{
				"days_to_germination_min": 5,
				"days_to_germination_max": 10,
				"package_weight_max":      2.5,
			},
		},
		{
			name:  "repeated values become a set",
			query: "plant_id=1&plant_id=2",
			spec:  harvestFilters,
			want:  datastore.Filters{"plant_id": []any{uint(1), uint(2)}},
		},
		{
			name:  "planting method is normalized",
			query: "planting_method=raised_bed",
			spec:  plantFilters,
			want:  datastore.Filters{"planting_method": datastore.PlantingRaisedBed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			got, _, err := parseFilters(q, tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFiltersDateRange(t *testing.T) {
	t.Parallel()

	q := url.Values{"date_min": {"2026-05-01"}, "date_max": {"2026-05-31"}}
	got, _, err := parseFilters(q, harvestFilters)
	require.NoError(t, err)

	start := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.Local)
	end := time.Date(2026, time.May, 31, 23, 59, 59, 999999999, time.Local)
	assert.Equal(t, start, got["timestamp_min"])
	assert.Equal(t, end, got["timestamp_max"])
}

func TestParseFiltersPaging(t *testing.T) {
	t.Parallel()

	q := url.Values{"limit": {"10"}, "offset": {"20"}, "name": {"Kale"}}
	got, opts, err := parseFilters(q, plantFilters)
	require.NoError(t, err)
	assert.Len(t, opts, 2)
	assert.Equal(t, datastore.Filters{"name": "Kale"}, got)
}

func TestParseFiltersErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		spec  filterSpec
		field string
	}{
		{"unknown key", "colour=red", plantFilters, "colour"},
		{"string has no range", "name_min=a", plantFilters, "name_min"},
		{"bad integer", "quantity=lots", seedPacketFilters, "quantity"},
		{"bad id", "plant_id=0", noteFilters, "plant_id"},
		{"bad date", "expiration_date=tomorrow", seedPacketFilters, "expiration_date"},
		{"bad method", "planting_method=hydroponic", plantFilters, "planting_method"},
		{"bare date", "date=2026-05-01", harvestFilters, "date"},
		{"negative limit", "limit=-1", plantFilters, "limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			_, _, err = parseFilters(q, tt.spec)
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))

			var ee *errors.EnhancedError
			require.True(t, errors.As(err, &ee))
			assert.Contains(t, ee.FieldErrors(), tt.field)
		})
	}
}

func TestListFiltersOverHTTP(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "")
	env.createPlant(t, "Tomato")
	env.createPlant(t, "Basil")

	rec := env.do(newGet("/plants/?name=Basil"))
	plants := decode[[]datastore.Plant](t, rec)
	require.Len(t, plants, 1)
	assert.Equal(t, "Basil", plants[0].Name)

	rec = env.do(newGet("/plants/?colour=red"))
	assert.Equal(t, 400, rec.Code)
}
