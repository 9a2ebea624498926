package httpcontroller

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestFormatDate(t *testing.T) {
	ts := time.Date(2026, time.March, 9, 14, 5, 0, 0, time.UTC)
	date := datatypes.Date(ts)
	var nilTime *time.Time
	var nilDate *datatypes.Date

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"time", ts, "Mar 9, 2026"},
		{"time pointer", &ts, "Mar 9, 2026"},
		{"date", date, "Mar 9, 2026"},
		{"date pointer", &date, "Mar 9, 2026"},
		{"zero time", time.Time{}, ""},
		{"nil time pointer", nilTime, ""},
		{"nil date pointer", nilDate, ""},
		{"unsupported", "2026-03-09", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDate(tt.in))
		})
	}
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2026, time.March, 9, 14, 5, 0, 0, time.UTC)
	assert.Equal(t, "Mar 9, 2026 14:05", formatTime(ts))
	assert.Equal(t, "Mar 9, 2026 14:05", formatTime(&ts))
	assert.Empty(t, formatTime(time.Time{}))
	assert.Empty(t, formatTime(nil))
}

func TestDeref(t *testing.T) {
	s := "Roma"
	n := 7
	var u uint = 3
	f := 0.25
	var nilString *string

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string pointer", &s, "Roma"},
		{"nil string pointer", nilString, ""},
		{"int pointer", &n, "7"},
		{"uint pointer", &u, "3"},
		{"float pointer", &f, "0.25"},
		{"plain string", "x", "x"},
		{"nil", nil, ""},
		{"other", 42, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deref(tt.in))
		})
	}
}

func TestLbs(t *testing.T) {
	assert.Equal(t, "1.00", lbs(16))
	assert.Equal(t, "0.50", lbs(8))
	assert.Equal(t, "2.34", lbs(37.5))
}

func TestViewsDefineEveryPage(t *testing.T) {
	s := &Server{}
	tmpl, err := parseViews(s.GetTemplateFunctions())
	require.NoError(t, err)

	pages := []string{
		"home", "plants", "plant", "seed_packets", "seed_packet",
		"garden_supplies", "garden_supply", "notes", "note",
		"harvests", "harvest", "harvest_stats", "error",
		"header", "footer", "note_list", "image",
	}
	for _, name := range pages {
		assert.NotNil(t, tmpl.Lookup(name), "template %q is not defined", name)
	}
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "Pinched the suckers", excerpt("Pinched the suckers"))
	assert.Equal(t, "OCR Results: Roma", excerpt("OCR Results:\n\n  Roma"))

	table := excerpt("<table><tr><td>Roma</td><td>75 days</td></tr></table>")
	assert.Contains(t, table, "Roma")
	assert.Contains(t, table, "75 days")
	assert.NotContains(t, table, "<td>")

	long := excerpt(strings.Repeat("tomato ", 40))
	assert.Equal(t, excerptRunes+1, utf8.RuneCountInString(long))
	assert.True(t, strings.HasSuffix(long, "…"))
}
