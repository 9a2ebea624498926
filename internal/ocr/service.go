package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gardentracker/gardentracker/internal/conf"
	"github.com/gardentracker/gardentracker/internal/datastore"
	"github.com/gardentracker/gardentracker/internal/errors"
	"github.com/gardentracker/gardentracker/internal/imagestore"
	"github.com/gardentracker/gardentracker/internal/logger"
	"github.com/gardentracker/gardentracker/internal/observability/metrics"
)

// Status is the outcome of an OCR run
type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// DegenerateText replaces OCR output that carries no readable text
const DegenerateText = "No readable text could be extracted from the image. " +
	"Try a clearer, well-lit photo with the packet text in focus."

const notePrefix = "OCR Results:\n\n"

// ErrNotConfigured is returned when no API key is set
var ErrNotConfigured = errors.Newf("MISTRAL_API_KEY not set").
	Component(componentOCR).
	Category(errors.CategoryConfiguration).
	Build()

// FileStore reads and writes image files
type FileStore interface {
	Save(r io.Reader, filename, contentType string, size int64) (imagestore.Saved, error)
	ReadAll(path string) ([]byte, error)
	Exists(path string) bool
	Delete(path string) bool
}

// NoteWriter persists the note written for an OCR run
type NoteWriter interface {
	Create(ctx context.Context, n *datastore.Note) error
}

// ImageInput is an image to run through the flow
type ImageInput struct {
	Data     []byte
	Filename string
	// SkipExtraction stops after the OCR stage
	SkipExtraction bool
}

// Result is the outcome of one run
type Result struct {
	Status          Status         `json:"status"`
	OCRText         string         `json:"ocr_text"`
	StructuredData  SeedPacketData `json:"structured_data"`
	ModelUsed       string         `json:"model_used,omitempty"`
	ExtractionError string         `json:"extraction_error,omitempty"`
	NoteID          *uint          `json:"note_id,omitempty"`
	ImageID         *uint          `json:"image_id,omitempty"`
	ImagePath       string         `json:"image_path,omitempty"`
}

// Extraction is the outcome of structured extraction alone
type Extraction struct {
	Data      SeedPacketData `json:"structured_data"`
	ModelUsed string         `json:"model_used,omitempty"`
	Error     string         `json:"extraction_error,omitempty"`
}

// Deps are the collaborators of a Service
type Deps struct {
	Files       FileStore
	Temp        FileStore
	SeedPackets datastore.SeedPacketRepository
	Images      datastore.ImageRepository
	Notes       NoteWriter
}

// Service runs the OCR and extraction flow
type Service struct {
	remote   Remote
	settings conf.OCRSettings
	deps     Deps
	log      logger.Logger
	metrics  *metrics.OCRMetrics
}

// Option configures a Service
type Option func(*Service)

// WithMetrics records OCR metrics
func WithMetrics(m *metrics.OCRMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service. remote may be nil when no API key is set.
func NewService(settings *conf.OCRSettings, remote Remote, deps Deps, log logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewSlogLogger(io.Discard, logger.LogLevelInfo, nil)
	}
	s := &Service{
		remote:   remote,
		settings: *settings,
		deps:     deps,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configured reports whether remote calls can be made
func (s *Service) Configured() bool {
	return s.remote != nil && s.settings.Configured()
}

// ProcessImage runs OCR and, unless skipped or degenerate, extraction.
// Only an OCR call failure is an error; extraction failures leave the
// structured data empty.
func (s *Service) ProcessImage(ctx context.Context, in ImageInput) (*Result, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	start := time.Now()
	resp, err := s.remote.OCR(ctx, s.settings.OCRModel, EncodeImage(in.Data, in.Filename))
	if err != nil {
		s.recordRequest(metrics.StageOCR, s.settings.OCRModel, metrics.StatusError, start)
		s.log.Error("OCR request failed",
			logger.String("filename", in.Filename),
			logger.Error(err))
		return nil, errors.New(fmt.Errorf("OCR failed: %w", err)).
			Component(componentOCR).
			Category(errors.CategoryProcessing).
			Context(errors.ContextOperation, metrics.StageOCR).
			Build()
	}

	text := JoinPages(resp.Pages)
	if IsDegenerate(text) {
		s.recordRequest(metrics.StageOCR, s.settings.OCRModel, metrics.StatusWarning, start)
		if s.metrics != nil {
			s.metrics.RecordDegenerate()
		}
		s.log.Warn("OCR returned no readable text",
			logger.String("filename", in.Filename),
			logger.Int("pages", len(resp.Pages)))
		return &Result{Status: StatusWarning, OCRText: DegenerateText}, nil
	}
	s.recordRequest(metrics.StageOCR, s.settings.OCRModel, metrics.StatusSuccess, start)

	res := &Result{Status: StatusSuccess, OCRText: text}
	if in.SkipExtraction {
		return res, nil
	}

	ext := s.extract(ctx, text)
	res.StructuredData = ext.Data
	res.ModelUsed = ext.ModelUsed
	res.ExtractionError = ext.Error
	return res, nil
}

// Extract runs structured extraction on caller supplied text
func (s *Service) Extract(ctx context.Context, text string) (*Extraction, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if IsDegenerate(text) {
		return nil, errors.ValidationError("ocr_text", "is required")
	}
	ext := s.extract(ctx, text)
	return &ext, nil
}

// extract tries the chat model, then the fallback model once
func (s *Service) extract(ctx context.Context, text string) Extraction {
	data, err := s.extractWith(ctx, s.settings.ChatModel, text)
	if err == nil {
		return Extraction{Data: data, ModelUsed: s.settings.ChatModel}
	}
	s.log.Warn("structured extraction failed, retrying with fallback model",
		logger.String("model", s.settings.ChatModel),
		logger.String("fallback_model", s.settings.FallbackModel),
		logger.Error(err))
	if s.metrics != nil {
		s.metrics.RecordFallback()
	}

	data, err = s.extractWith(ctx, s.settings.FallbackModel, text)
	if err == nil {
		return Extraction{Data: data, ModelUsed: s.settings.FallbackModel}
	}
	s.log.Warn("fallback extraction failed",
		logger.String("model", s.settings.FallbackModel),
		logger.Error(err))
	return Extraction{Error: err.Error()}
}

func (s *Service) extractWith(ctx context.Context, model, text string) (SeedPacketData, error) {
	start := time.Now()
	content, err := s.remote.Chat(ctx, ChatRequest{
		Model:    model,
		Messages: []Message{{Role: "user", Content: BuildExtractionPrompt(text)}},
	})
	if err == nil {
		var data SeedPacketData
		if data, err = ParseExtraction(content); err == nil {
			s.recordRequest(metrics.StageExtraction, model, metrics.StatusSuccess, start)
			if s.metrics != nil {
				s.metrics.RecordExtractedFields(data.FieldCount())
			}
			return data, nil
		}
	}
	s.recordRequest(metrics.StageExtraction, model, metrics.StatusError, start)
	return SeedPacketData{}, err
}

// RunForSeedPacket runs the flow on a packet's image and writes a note on the packet
func (s *Service) RunForSeedPacket(ctx context.Context, id uint) (*Result, error) {
	sp, err := s.deps.SeedPackets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if sp.ImagePath == nil || *sp.ImagePath == "" {
		return nil, errors.ValidationError("image_path", "no image available for this seed packet")
	}

	data, err := s.load(*sp.ImagePath)
	if err != nil {
		return nil, err
	}

	s.log.Info("processing seed packet image",
		logger.Uint("seed_packet_id", sp.ID),
		logger.String("path", *sp.ImagePath))

	res, err := s.ProcessImage(ctx, ImageInput{Data: data, Filename: *sp.ImagePath})
	if err != nil {
		return nil, err
	}
	res.ImagePath = *sp.ImagePath
	if err := s.writeNote(ctx, res, &sp.ID); err != nil {
		return nil, err
	}
	return res, nil
}

// RunForImage runs the flow on an image record, stores the outcome on the
// record and writes a note on its first linked seed packet, if any
func (s *Service) RunForImage(ctx context.Context, imageID uint) (*Result, error) {
	img, err := s.deps.Images.Get(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	data, err := s.load(img.FilePath)
	if err != nil {
		return nil, err
	}

	res, err := s.ProcessImage(ctx, ImageInput{Data: data, Filename: img.FilePath})
	if err != nil {
		if markErr := s.deps.Images.MarkOCR(ctx, img.ID, datastore.OCRFailed, nil, nil); markErr != nil {
			s.log.Warn("failed to record OCR failure",
				logger.Uint("image_id", img.ID),
				logger.Error(markErr))
		}
		return nil, err
	}

	structured, err := json.Marshal(res.StructuredData)
	if err != nil {
		return nil, errors.New(err).Component(componentOCR).Category(errors.CategoryProcessing).Build()
	}
	if err := s.deps.Images.MarkOCR(ctx, img.ID, datastore.OCRProcessed, &res.OCRText, structured); err != nil {
		return nil, err
	}

	var parent *uint
	if len(img.SeedPackets) > 0 {
		parent = &img.SeedPackets[0].ID
	}
	res.ImageID = &img.ID
	res.ImagePath = img.FilePath
	if err := s.writeNote(ctx, res, parent); err != nil {
		return nil, err
	}
	return res, nil
}

// RunForUpload records a stored upload as an image and runs the flow on it.
// The note has no parent. The file is removed when the image row cannot be
// written.
func (s *Service) RunForUpload(ctx context.Context, saved imagestore.Saved) (*Result, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	img := &datastore.Image{
		FilePath:         saved.Path,
		OriginalFilename: &saved.OriginalFilename,
		FileSize:         &saved.Size,
		ContentType:      &saved.ContentType,
	}
	if err := s.deps.Images.Create(ctx, img); err != nil {
		if !s.deps.Files.Delete(saved.Path) {
			s.log.Warn("failed to remove upload of unsaved image",
				logger.String("path", saved.Path))
		}
		return nil, err
	}
	return s.RunForImage(ctx, img.ID)
}

// Preview runs the flow on an upload without keeping the file or writing a note
func (s *Service) Preview(ctx context.Context, r io.Reader, filename, contentType string, size int64) (*Result, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	saved, err := s.deps.Temp.Save(r, filename, contentType, size)
	if err != nil {
		return nil, err
	}
	defer s.deps.Temp.Delete(saved.Path)

	data, err := s.deps.Temp.ReadAll(saved.Path)
	if err != nil {
		return nil, err
	}
	return s.ProcessImage(ctx, ImageInput{Data: data, Filename: saved.Path})
}

// load reads a stored image, reporting a missing file as not found
func (s *Service) load(path string) ([]byte, error) {
	if !s.deps.Files.Exists(path) {
		return nil, errors.NotFound("image file", path)
	}
	return s.deps.Files.ReadAll(path)
}

func (s *Service) writeNote(ctx context.Context, res *Result, seedPacketID *uint) error {
	body, err := NoteBody(res)
	if err != nil {
		return err
	}
	note := &datastore.Note{Body: body, SeedPacketID: seedPacketID}
	if err := s.deps.Notes.Create(ctx, note); err != nil {
		return err
	}
	res.NoteID = &note.ID
	s.log.Info("OCR note written",
		logger.Uint("note_id", note.ID),
		logger.String("status", string(res.Status)),
		logger.Int("fields", res.StructuredData.FieldCount()))
	return nil
}

// NoteBody renders the note text for a run
func NoteBody(res *Result) (string, error) {
	body := notePrefix + res.OCRText
	if res.StructuredData.Empty() {
		return body, nil
	}
	pretty, err := json.MarshalIndent(res.StructuredData, "", "  ")
	if err != nil {
		return "", errors.New(err).Component(componentOCR).Category(errors.CategoryProcessing).Build()
	}
	return body + "\n\nExtracted Data:\n" + string(pretty), nil
}

func (s *Service) recordRequest(stage, model, status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordRequest(stage, model, status, time.Since(start).Seconds())
	}
}
