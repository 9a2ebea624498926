// Package imagestore keeps uploaded images on local disk under one directory.
// Stored images are addressed by URL paths such as /static/uploads/<uuid>.jpg.
package imagestore

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	units "github.com/labstack/gommon/bytes"

	"github.com/gardentracker/gardentracker/internal/errors"
	"github.com/gardentracker/gardentracker/internal/logger"
	"github.com/gardentracker/gardentracker/internal/observability/metrics"
)

const (
	componentImageStore = "imagestore"

	sniffLen   = 512
	defaultExt = ".jpg"

	octetStream = "application/octet-stream"
	filePerm    = 0o644
)

// Rejection reasons reported in errors and metrics
const (
	ReasonContentType = "content_type"
	ReasonTooLarge    = "too_large"
	ReasonSignature   = "signature"
)

var (
	// ErrInvalidPath is returned for paths that do not name a file in the upload directory
	ErrInvalidPath = errors.NewStd("invalid image path")

	// signatureExt maps an accepted sniffed type to the stored extension
	signatureExt = map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/gif":  ".gif",
	}

	extContentType = map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".gif":  "image/gif",
	}
)

// Saved describes a stored upload
type Saved struct {
	Path             string
	OriginalFilename string
	Size             int64
	ContentType      string
}

// Store writes, copies and removes image files. It is safe for concurrent use.
type Store struct {
	root      *os.Root
	dir       string
	urlPrefix string
	maxBytes  int64
	log       logger.Logger
	metrics   *metrics.ImageStoreMetrics
}

// Option configures a Store
type Option func(*Store)

// WithMetrics records image store metrics
func WithMetrics(m *metrics.ImageStoreMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New creates dir when missing and opens it as the store root
func New(dir, urlPrefix string, maxBytes int64, log logger.Logger, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(fmt.Errorf("create upload directory: %w", err)).
			Component(componentImageStore).
			Category(errors.CategoryFileIO).
			Context("dir", dir).
			Build()
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, errors.New(fmt.Errorf("open upload directory: %w", err)).
			Component(componentImageStore).
			Category(errors.CategoryFileIO).
			Context("dir", dir).
			Build()
	}
	if log == nil {
		log = logger.NewSlogLogger(io.Discard, logger.LogLevelInfo, nil)
	}

	s := &Store{
		root:      root,
		dir:       dir,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
		maxBytes:  maxBytes,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the directory handle
func (s *Store) Close() error {
	return s.root.Close()
}

// Dir returns the upload directory
func (s *Store) Dir() string {
	return s.dir
}

// MaxBytes returns the upload size limit
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// SaveFile stores a multipart upload
func (s *Store) SaveFile(fh *multipart.FileHeader) (Saved, error) {
	f, err := fh.Open()
	if err != nil {
		return Saved{}, uploadError(fh.Filename, fmt.Errorf("open upload: %w", err), "")
	}
	defer func() { _ = f.Close() }()

	return s.Save(f, fh.Filename, fh.Header.Get("Content-Type"), fh.Size)
}

// Save validates and writes an upload under a new unique name. A negative
// size means unknown; the written length is checked either way.
func (s *Store) Save(r io.Reader, filename, contentType string, size int64) (Saved, error) {
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return Saved{}, s.reject(filename, ReasonContentType, fmt.Errorf("file must be an image, got %q", contentType))
	}
	if size > s.maxBytes {
		return Saved{}, s.reject(filename, ReasonTooLarge, fmt.Errorf("file exceeds the %s limit", units.Format(s.maxBytes)))
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Saved{}, uploadError(filename, fmt.Errorf("read upload: %w", err), "")
	}
	head = head[:n]
	detected := http.DetectContentType(head)
	ext, ok := signatureExt[detected]
	if !ok {
		return Saved{}, s.reject(filename, ReasonSignature, fmt.Errorf("file content is not a JPEG, PNG or GIF image"))
	}

	name := newName(ext)
	written, err := s.write(name, io.MultiReader(bytes.NewReader(head), r), s.maxBytes)
	if err != nil {
		s.record("save", metrics.StatusError)
		return Saved{}, uploadError(filename, err, "")
	}
	if written > s.maxBytes {
		s.remove(name)
		return Saved{}, s.reject(filename, ReasonTooLarge, fmt.Errorf("file exceeds the %s limit", units.Format(s.maxBytes)))
	}

	s.record("save", metrics.StatusSuccess)
	if s.metrics != nil {
		s.metrics.RecordUpload(written)
	}
	s.log.Debug("image stored",
		logger.String("filename", filename),
		logger.String("name", name),
		logger.Int64("size", written))

	return Saved{
		Path:             s.urlPath(name),
		OriginalFilename: filename,
		Size:             written,
		ContentType:      detected,
	}, nil
}

// Delete removes a stored image. A missing file counts as deleted.
func (s *Store) Delete(p string) bool {
	name, err := s.name(p)
	if err != nil {
		s.log.Warn("refusing to delete image outside upload directory",
			logger.String("path", p))
		s.record("delete", metrics.StatusError)
		return false
	}
	if err := s.root.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn("failed to delete image",
			logger.String("path", p),
			logger.Error(err))
		s.record("delete", metrics.StatusError)
		return false
	}
	s.record("delete", metrics.StatusSuccess)
	return true
}

// DeleteAll removes every path and returns how many could not be removed
func (s *Store) DeleteAll(paths []string) int {
	failed := 0
	for _, p := range paths {
		if !s.Delete(p) {
			failed++
		}
	}
	return failed
}

// Copy duplicates a stored image under a new name. Files without an image
// extension are copied as .jpg.
func (s *Store) Copy(p string) (string, error) {
	name, err := s.name(p)
	if err != nil {
		s.record("copy", metrics.StatusError)
		return "", err
	}
	src, err := s.root.Open(name)
	if err != nil {
		s.record("copy", metrics.StatusError)
		return "", fileError(fmt.Errorf("open %s: %w", name, err), "copy", p)
	}
	defer func() { _ = src.Close() }()

	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := extContentType[ext]; !ok {
		ext = defaultExt
	}
	dup := newName(ext)
	if _, err := s.write(dup, src, -1); err != nil {
		s.record("copy", metrics.StatusError)
		return "", fileError(err, "copy", p)
	}
	s.record("copy", metrics.StatusSuccess)
	return s.urlPath(dup), nil
}

// Resolve maps a stored URL path to its filesystem path
func (s *Store) Resolve(p string) (string, error) {
	name, err := s.name(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

// Exists reports whether a stored image file is present
func (s *Store) Exists(p string) bool {
	name, err := s.name(p)
	if err != nil {
		return false
	}
	info, err := s.root.Stat(name)
	return err == nil && info.Mode().IsRegular()
}

// Open opens a stored image for reading
func (s *Store) Open(p string) (*os.File, error) {
	name, err := s.name(p)
	if err != nil {
		return nil, err
	}
	f, err := s.root.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.New(fmt.Errorf("image file %s not found: %w", p, err)).
				Component(componentImageStore).
				Category(errors.CategoryNotFound).
				Context(errors.ContextResourceType, "image file").
				Context(errors.ContextResourceID, p).
				Build()
		}
		return nil, fileError(err, "open", p)
	}
	return f, nil
}

// ReadAll returns the content of a stored image
func (s *Store) ReadAll(p string) ([]byte, error) {
	f, err := s.Open(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fileError(err, "read", p)
	}
	return data, nil
}

// name extracts the file name from a stored path. Paths outside the URL
// prefix are accepted by base name when they hold no parent references.
func (s *Store) name(p string) (string, error) {
	rel, ok := strings.CutPrefix(p, s.urlPrefix+"/")
	if !ok {
		for seg := range strings.SplitSeq(filepath.ToSlash(p), "/") {
			if seg == ".." {
				return "", invalidPath(p)
			}
		}
		rel = path.Base(filepath.ToSlash(p))
	}
	if rel == "" || rel == "." || rel == ".." || strings.ContainsAny(rel, `/\`) {
		return "", invalidPath(p)
	}
	return rel, nil
}

// write creates name exclusively and copies r into it. With limit >= 0 at
// most limit+1 bytes are written so oversized input is detectable.
func (s *Store) write(name string, r io.Reader, limit int64) (int64, error) {
	f, err := s.root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", name, err)
	}
	if limit >= 0 {
		r = io.LimitReader(r, limit+1)
	}
	written, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.remove(name)
		return 0, fmt.Errorf("write %s: %w", name, err)
	}
	return written, nil
}

func (s *Store) remove(name string) {
	if err := s.root.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn("failed to remove partial upload",
			logger.String("name", name),
			logger.Error(err))
	}
}

func (s *Store) urlPath(name string) string {
	return s.urlPrefix + "/" + name
}

func (s *Store) reject(filename, reason string, err error) error {
	if s.metrics != nil {
		s.metrics.RecordRejected(reason)
	}
	s.record("save", metrics.StatusError)
	s.log.Info("upload rejected",
		logger.String("filename", filename),
		logger.String("reason", reason))
	return uploadError(filename, err, reason)
}

func (s *Store) record(operation, status string) {
	if s.metrics != nil {
		s.metrics.RecordOperation(operation, status)
	}
}

// ContentType returns the image type for a stored path, by extension.
// Anything that is not a known image extension is application/octet-stream.
func ContentType(p string) string {
	if ct, ok := extContentType[strings.ToLower(path.Ext(p))]; ok {
		return ct
	}
	return octetStream
}

func newName(ext string) string {
	return uuid.NewString() + ext
}

func uploadError(filename string, err error, reason string) error {
	b := errors.New(err).
		Component(componentImageStore).
		Category(errors.CategoryFileUpload).
		Context(errors.ContextFilename, filename)
	if reason != "" {
		b = b.Context("reason", reason)
	}
	return b.Build()
}

func fileError(err error, operation, p string) error {
	return errors.New(err).
		Component(componentImageStore).
		Category(errors.CategoryFileIO).
		Context(errors.ContextOperation, operation).
		Context("path", p).
		Build()
}

func invalidPath(p string) error {
	return errors.New(fmt.Errorf("%w: %q", ErrInvalidPath, p)).
		Component(componentImageStore).
		Category(errors.CategoryValidation).
		FieldErrors(map[string]string{"path": "must name a file in the upload directory"}).
		Build()
}
