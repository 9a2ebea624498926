package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(err *EnhancedError) { r.reported = append(r.reported, err) }
func (r *recordingReporter) IsEnabled() bool                { return true }

func TestBuildDefaults(t *testing.T) {
	ee := New(fmt.Errorf("plain failure")).Build()

	assert.Equal(t, "plain failure", ee.Error())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.Equal(t, "errors", componentFromFunc(modulePackagePrefix+"errors.New"))
	assert.NotEmpty(t, ee.GetComponent())
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuildExplicitComponentAndCategory(t *testing.T) {
	ee := Newf("row %d missing", 7).
		Component("datastore").
		Category(CategoryDatabase).
		Context(ContextOperation, "get").
		Build()

	assert.Equal(t, "datastore", ee.GetComponent())
	assert.Equal(t, "database", ee.GetCategory())
	assert.Equal(t, "get", ee.ContextString(ContextOperation))
	assert.Empty(t, ee.ContextString("missing"))
}

func TestComponentFromFunc(t *testing.T) {
	tests := []struct {
		name     string
		funcName string
		want     string
	}{
		{"datastore method", modulePackagePrefix + "datastore.(*plantRepository).Get", "datastore"},
		{"nested package", modulePackagePrefix + "observability/metrics.NewHTTPMetrics", "observability/metrics"},
		{"own package skipped", modulePackagePrefix + "errors.NotFound", ""},
		{"foreign package", "gorm.io/gorm.(*DB).First", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, componentFromFunc(tt.funcName))
		})
	}
}

func TestNotFound(t *testing.T) {
	err := NotFound("Plant", 42)

	assert.Equal(t, "Plant with id 42 not found", err.Error())
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "Plant", err.ContextString(ContextResourceType))
	assert.Equal(t, "42", err.ContextString(ContextResourceID))

	wrapped := fmt.Errorf("handler: %w", err)
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsValidation(wrapped))
}

func TestValidation(t *testing.T) {
	err := Validation(map[string]string{"weight_oz": "must be a number", "plant_id": "is required"})

	require.True(t, IsValidation(err))
	assert.Equal(t, "validation failed: plant_id: is required; weight_oz: must be a number", err.Error())
	assert.Equal(t, "is required", err.FieldErrors()["plant_id"])

	single := ValidationError("name", "is required")
	assert.Equal(t, map[string]string{"name": "is required"}, single.FieldErrors())
}

func TestUploadAndDatabase(t *testing.T) {
	up := Upload("packet.txt", NewStd("unsupported file type"))
	assert.True(t, IsCategory(up, CategoryFileUpload))
	assert.Equal(t, "packet.txt", up.ContextString(ContextFilename))

	cause := NewStd("disk I/O error")
	db := Database("create", cause)
	assert.True(t, IsCategory(db, CategoryDatabase))
	assert.Equal(t, "create", db.ContextString(ContextOperation))
	assert.ErrorIs(t, db, cause)
}

func TestEnhancedErrorIsMatchesCategory(t *testing.T) {
	a := New(NewStd("a")).Category(CategoryConflict).Build()
	b := New(NewStd("b")).Category(CategoryConflict).Build()
	c := New(NewStd("c")).Category(CategoryNetwork).Build()

	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, c)
}

func TestDetectCategory(t *testing.T) {
	assert.Equal(t, CategoryNotFound, detectCategory(NewStd("image file not found")))
	assert.Equal(t, CategoryNetwork, detectCategory(NewStd("connection refused")))
	assert.Equal(t, CategoryValidation, detectCategory(NewStd("invalid date")))
	assert.Equal(t, CategoryGeneric, detectCategory(NewStd("boom")))

	inner := New(NewStd("x")).Category(CategoryDatabase).Build()
	assert.Equal(t, CategoryDatabase, detectCategory(fmt.Errorf("wrap: %w", inner)))
}

func TestTelemetryReporting(t *testing.T) {
	rec := &recordingReporter{}
	SetTelemetryReporter(rec)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	_ = NotFound("Plant", 1)
	_ = Database("update", NewStd("locked"))

	require.Len(t, rec.reported, 1, "client errors are not reported")
	assert.Equal(t, CategoryDatabase, rec.reported[0].Category)
}

func TestScrubMessage(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		notWant string
	}{
		{"url query", "GET https://api.example.com/v1/ocr?key=secret123 failed", "secret123"},
		{"bearer token", "Authorization: Bearer abcdefghijk", "abcdefghijk"},
		{"dsn password", "dial postgresql://garden_user:mygarden@db:5432/garden_db", "mygarden"},
		{"api key", "api_key=topsecret rejected", "topsecret"},
		{"long key", "key 0123456789abcdefghijABCDEFGHIJ0123 invalid", "0123456789abcdefghijABCDEFGHIJ0123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotContains(t, scrubMessage(tt.input), tt.notWant)
		})
	}
}

func TestIssueTitle(t *testing.T) {
	ee := New(NewStd("x")).
		Component("datastore").
		Category(CategoryDatabase).
		Context(ContextOperation, "delete_plant").
		Build()

	assert.Equal(t, "Datastore Database Error Delete Plant", issueTitle(ee))
}
