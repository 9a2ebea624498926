package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gardentracker/gardentracker/internal/datastore"
	"github.com/gardentracker/gardentracker/internal/ocr"
)

const extractionReply = `{"name": "Tomato", "variety": "Roma", "days_to_germination": "7-10 days", "package_weight": "0.5g"}`

func ocrReply(text string) *ocr.OCRResponse {
	return &ocr.OCRResponse{Pages: []ocr.Page{{Index: 0, Markdown: text}}}
}

func (env *testEnv) seedPacketWithImage(t *testing.T) *datastore.SeedPacket {
	t.Helper()
	rec := env.doMultipart(t, http.MethodPost, "/seed-packets/", map[string]string{"name": "Roma"}, "packet.jpg", jpegHeader)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return ptr(decode[datastore.SeedPacket](t, rec))
}

func (env *testEnv) notes(t *testing.T) []datastore.Note {
	t.Helper()
	notes, err := env.store.Notes.List(t.Context(), nil)
	require.NoError(t, err)
	return notes
}

func TestOCRSeedPacket(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "key")
	sp := env.seedPacketWithImage(t)

	env.remote.On("OCR", mock.Anything, mock.Anything, mock.Anything).
		Return(ocrReply("Roma Tomato. Germination 7-10 days."), nil).Once()
	env.remote.On("Chat", mock.Anything, mock.Anything).Return(extractionReply, nil).Once()

	rec := env.do(newPost("/seed-packets/" + strconv.FormatUint(uint64(sp.ID), 10) + "/ocr"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[ocr.Result](t, rec)
	assert.Equal(t, ocr.StatusSuccess, res.Status)
	assert.Equal(t, ptr("Tomato"), res.StructuredData.Name)
	assert.Equal(t, ptr(7), res.StructuredData.DaysToGermination)
	require.NotNil(t, res.NoteID)

	notes := env.notes(t)
	require.Len(t, notes, 1)
	assert.Equal(t, &sp.ID, notes[0].SeedPacketID)
	assert.True(t, strings.HasPrefix(notes[0].Body, "OCR Results:\n\n"))
	env.remote.AssertExpectations(t)
}

func TestOCRNotConfigured(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "")
	sp := env.seedPacketWithImage(t)

	rec := env.do(newPost("/seed-packets/" + strconv.FormatUint(uint64(sp.ID), 10) + "/ocr"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, CodeOCRNotConfigured, body.Error.Code)
	assert.Equal(t, "MISTRAL_API_KEY not set", body.Error.Message)

	assert.Empty(t, env.notes(t), "no note is written when OCR cannot run")
	env.remote.AssertNotCalled(t, "OCR", mock.Anything, mock.Anything, mock.Anything)
}

func TestOCRMissingSeedPacket(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "key")

	rec := env.do(newPost("/seed-packets/404/ocr"))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decode[ErrorResponse](t, rec).Error.Code)
}

func TestOCRCallFailure(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "key")
	sp := env.seedPacketWithImage(t)

	env.remote.On("OCR", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("upstream returned 502")).Once()

	rec := env.do(newPost("/seed-packets/" + strconv.FormatUint(uint64(sp.ID), 10) + "/ocr"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, CodeOCRFailed, decode[ErrorResponse](t, rec).Error.Code)
	assert.Empty(t, env.notes(t))
}

func TestExtractSeedPacketData(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "key")
	sp := &datastore.SeedPacket{Name: "Roma"}
	require.NoError(t, env.store.SeedPackets.Create(t.Context(), sp))
	target := "/seed-packets/" + strconv.FormatUint(uint64(sp.ID), 10) + "/extract-data"

	env.remote.On("Chat", mock.Anything, mock.Anything).Return(extractionReply, nil).Once()

	rec := env.doForm(http.MethodPost, target, url.Values{"ocr_text": {"Roma Tomato 0.5g"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ext := decode[ocr.Extraction](t, rec)
	assert.Equal(t, ptr("Roma"), ext.Data.Variety)
	assert.Equal(t, ptr(0.5), ext.Data.PackageWeight)
	assert.Empty(t, env.notes(t), "extraction alone writes no note")

	rec = env.doForm(http.MethodPost, target, url.Values{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractInfoFallback(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "key")
	settings := env.c.Settings.OCR

	env.remote.On("Chat", mock.Anything, mock.MatchedBy(func(req ocr.ChatRequest) bool {
		return req.Model == settings.ChatModel
	})).Return("not json at all", nil).Once()
	env.remote.On("Chat", mock.Anything, mock.MatchedBy(func(req ocr.ChatRequest) bool {
		return req.Model == settings.FallbackModel
	})).Return(extractionReply, nil).Once()

	rec := env.doJSON(t, http.MethodPost, "/seed-packets/extract-info", map[string]string{"text": "Roma Tomato"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ext := decode[ocr.Extraction](t, rec)
	assert.Equal(t, settings.FallbackModel, ext.ModelUsed)
	assert.Equal(t, ptr("Tomato"), ext.Data.Name)
	env.remote.AssertExpectations(t)
}

func TestUploadAndOCR(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "key")

	env.remote.On("OCR", mock.Anything, mock.Anything, mock.Anything).
		Return(ocrReply("Sweet Basil Genovese"), nil).Once()
	env.remote.On("Chat", mock.Anything, mock.Anything).Return(`{"name": "Basil"}`, nil).Once()

	rec := env.doMultipart(t, http.MethodPost, "/seed-packets/upload-and-ocr", nil, "basil.jpg", jpegHeader)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[ocr.Result](t, rec)
	require.NotNil(t, res.ImageID)
	assert.True(t, env.files.Exists(res.ImagePath))

	img, err := env.store.Images.Get(t.Context(), *res.ImageID)
	require.NoError(t, err)
	assert.Equal(t, datastore.OCRProcessed, img.OCRProcessed)

	notes := env.notes(t)
	require.Len(t, notes, 1)
	assert.Nil(t, notes[0].SeedPacketID)
}

func TestUploadAndOCRNotConfiguredKeepsNothing(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "")

	rec := env.doMultipart(t, http.MethodPost, "/seed-packets/upload-and-ocr", nil, "basil.jpg", jpegHeader)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, CodeOCRNotConfigured, decode[ErrorResponse](t, rec).Error.Code)

	images, err := env.store.Images.List(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestOCRPreviewKeepsNothing(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "key")

	env.remote.On("OCR", mock.Anything, mock.Anything, mock.Anything).Return(ocrReply("  "), nil).Once()

	rec := env.doMultipart(t, http.MethodPost, "/seed-packets/ocr-temp", nil, "blurry.jpg", jpegHeader)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[ocr.Result](t, rec)
	assert.Equal(t, ocr.StatusWarning, res.Status)
	assert.Equal(t, ocr.DegenerateText, res.OCRText)

	assert.Empty(t, env.notes(t))
	images, err := env.store.Images.List(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestOCRImage(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "key")
	sp := &datastore.SeedPacket{Name: "Carrot"}
	require.NoError(t, env.store.SeedPackets.Create(t.Context(), sp))

	rec := env.doMultipart(t, http.MethodPost, "/images/", map[string]string{
		"seed_packet_id": strconv.FormatUint(uint64(sp.ID), 10),
	}, "carrot.jpg", jpegHeader)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	img := decode[datastore.Image](t, rec)

	env.remote.On("OCR", mock.Anything, mock.Anything, mock.Anything).Return(ocrReply("Carrot Nantes"), nil).Once()
	env.remote.On("Chat", mock.Anything, mock.Anything).Return(`{"name": "Carrot", "variety": "Nantes"}`, nil).Once()

	rec = env.do(newPost("/images/" + strconv.FormatUint(uint64(img.ID), 10) + "/ocr"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	notes := env.notes(t)
	require.Len(t, notes, 1)
	assert.Equal(t, &sp.ID, notes[0].SeedPacketID, "note goes to the first linked packet")
}

func TestOCRRateLimited(t *testing.T) {
	t.Parallel()
	env := setupTestEnvironment(t, "")
	env.c.Settings.OCR.RateLimit = 1
	limit := env.c.ocrRateLimiter()
	env.e.POST("/limited", func(ctx echo.Context) error { return ctx.NoContent(http.StatusNoContent) }, limit)

	first := env.do(newPost("/limited"))
	assert.Equal(t, http.StatusNoContent, first.Code)

	second := env.do(newPost("/limited"))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, CodeRateLimited, decode[ErrorResponse](t, second).Error.Code)
}
