package imagestore

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gardentracker/gardentracker/internal/errors"
	"github.com/gardentracker/gardentracker/internal/logger"
	"github.com/gardentracker/gardentracker/internal/observability/metrics"
)

const testPrefix = "/static/uploads"

func newTestStore(t *testing.T, maxBytes int64, opts ...Option) *Store {
	t.Helper()
	s, err := New(t.TempDir(), testPrefix+"/", maxBytes, logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, G: 40, B: 40, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(n int) []byte {
	data := make([]byte, n)
	copy(data, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00})
	return data
}

func requireUploadError(t *testing.T, err error, filename, reason string) {
	t.Helper()
	require.Error(t, err)
	var ee *errors.EnhancedError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, string(errors.CategoryFileUpload), ee.GetCategory())
	assert.Equal(t, filename, ee.ContextString(errors.ContextFilename))
	assert.Equal(t, reason, ee.ContextString("reason"))
}

func TestSave(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 1<<20)
	data := pngBytes(t)

	saved, err := s.Save(bytes.NewReader(data), "Tomato Seeds.PNG", "image/png", int64(len(data)))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(saved.Path, testPrefix+"/"))
	assert.True(t, strings.HasSuffix(saved.Path, ".png"), "extension is kept in lower case")
	assert.Equal(t, "Tomato Seeds.PNG", saved.OriginalFilename)
	assert.Equal(t, int64(len(data)), saved.Size)
	assert.Equal(t, "image/png", saved.ContentType)

	onDisk, err := s.Resolve(saved.Path)
	require.NoError(t, err)
	got, err := os.ReadFile(onDisk)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.True(t, s.Exists(saved.Path))

	second, err := s.Save(bytes.NewReader(data), "Tomato Seeds.PNG", "image/png", -1)
	require.NoError(t, err)
	assert.NotEqual(t, saved.Path, second.Path, "every upload gets a unique name")
}

func TestSaveDefaultExtension(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 1<<20)

	saved, err := s.Save(bytes.NewReader(jpegBytes(64)), "camera-upload", "image/jpeg", 64)
	require.NoError(t, err)
	assert.Equal(t, ".jpg", filepath.Ext(saved.Path))
	assert.Equal(t, "image/jpeg", saved.ContentType)
}

func TestSaveExtensionFollowsContent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 1<<20)

	gif := []byte("GIF89a<script>alert(document.domain)</script>")
	saved, err := s.Save(bytes.NewReader(gif), "evil.html", "image/gif", int64(len(gif)))
	require.NoError(t, err)
	assert.Equal(t, ".gif", filepath.Ext(saved.Path), "the client file name never picks the extension")
	assert.Equal(t, "image/gif", saved.ContentType)
	assert.Equal(t, "evil.html", saved.OriginalFilename)

	data := pngBytes(t)
	saved, err = s.Save(bytes.NewReader(data), "packet.jpg", "image/jpeg", int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, ".png", filepath.Ext(saved.Path))
}

func TestContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"/static/uploads/a.jpg", "image/jpeg"},
		{"/static/uploads/a.JPEG", "image/jpeg"},
		{"/static/uploads/a.png", "image/png"},
		{"/static/uploads/a.gif", "image/gif"},
		{"/static/uploads/a.html", "application/octet-stream"},
		{"/static/uploads/a.svg", "application/octet-stream"},
		{"/static/uploads/noext", "application/octet-stream"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ContentType(tt.path), tt.path)
	}
}

func TestSaveRejects(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := metrics.NewImageStoreMetrics(reg)
	require.NoError(t, err)
	s := newTestStore(t, 1024, WithMetrics(m))

	t.Run("content type", func(t *testing.T) {
		_, err := s.Save(bytes.NewReader(jpegBytes(32)), "notes.txt", "text/plain", 32)
		requireUploadError(t, err, "notes.txt", ReasonContentType)
	})

	t.Run("declared size", func(t *testing.T) {
		_, err := s.Save(bytes.NewReader(jpegBytes(32)), "big.jpg", "image/jpeg", 2048)
		requireUploadError(t, err, "big.jpg", ReasonTooLarge)
	})

	t.Run("signature", func(t *testing.T) {
		_, err := s.Save(strings.NewReader("<html>not an image</html>"), "fake.jpg", "image/jpeg", 25)
		requireUploadError(t, err, "fake.jpg", ReasonSignature)
	})

	t.Run("written size", func(t *testing.T) {
		_, err := s.Save(bytes.NewReader(jpegBytes(4096)), "liar.jpg", "image/jpeg", 100)
		requireUploadError(t, err, "liar.jpg", ReasonTooLarge)
	})

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected uploads leave no files")
	assert.Equal(t, 3, testutil.CollectAndCount(m, "imagestore_rejected_uploads_total"), "one series per rejection reason")
}

func TestSaveFile(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 1<<20)
	data := pngBytes(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="image"; filename="packet.png"`}
	h["Content-Type"] = []string{"image/png"}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	fh := req.MultipartForm.File["image"][0]

	saved, err := s.SaveFile(fh)
	require.NoError(t, err)
	assert.Equal(t, "packet.png", saved.OriginalFilename)
	assert.True(t, s.Exists(saved.Path))
}

func TestCopyAndDelete(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 1<<20)
	data := pngBytes(t)

	saved, err := s.Save(bytes.NewReader(data), "a.png", "image/png", int64(len(data)))
	require.NoError(t, err)

	dup, err := s.Copy(saved.Path)
	require.NoError(t, err)
	assert.NotEqual(t, saved.Path, dup)
	assert.Equal(t, ".png", filepath.Ext(dup))

	got, err := s.ReadAll(dup)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	assert.True(t, s.Delete(saved.Path))
	assert.False(t, s.Exists(saved.Path))
	assert.True(t, s.Delete(saved.Path), "deleting a missing file succeeds")
	assert.True(t, s.Exists(dup), "the copy is independent")

	_, err = s.Copy(saved.Path)
	assert.Error(t, err)

	assert.Equal(t, 1, s.DeleteAll([]string{dup, "/static/uploads/../../etc/passwd"}))
}

func TestResolve(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 1<<20)

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"url path", "/static/uploads/abc.jpg", "abc.jpg", false},
		{"legacy relative path", "uploads/abc.jpg", "abc.jpg", false},
		{"legacy root path", "/uploads/abc.jpg", "abc.jpg", false},
		{"traversal after prefix", "/static/uploads/../secret.db", "", true},
		{"traversal without prefix", "../../etc/passwd", "", true},
		{"nested below prefix", "/static/uploads/sub/abc.jpg", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Resolve(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(s.Dir(), tt.want), got)
		})
	}
}

func TestOpenMissing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, 1<<20)

	_, err := s.Open("/static/uploads/missing.png")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
