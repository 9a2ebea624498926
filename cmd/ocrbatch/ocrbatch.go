// Package ocrbatch implements the ocr-batch command, which runs OCR over a
// directory of images and caches each result as a JSON file.
package ocrbatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/gardentracker/gardentracker/internal/conf"
	"github.com/gardentracker/gardentracker/internal/errors"
	"github.com/gardentracker/gardentracker/internal/logger"
	"github.com/gardentracker/gardentracker/internal/ocr"
)

const resultSuffix = "_ocr.json"

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}

// Processor runs the OCR flow on one image
type Processor interface {
	ProcessImage(ctx context.Context, in ocr.ImageInput) (*ocr.Result, error)
}

// Options control a batch run
type Options struct {
	InputDir         string
	OutputDir        string
	SkipExisting     bool
	NoStructuredData bool
	Delay            time.Duration
}

// Record is the JSON document written for each image
type Record struct {
	Status          ocr.Status          `json:"status"`
	ImagePath       string              `json:"image_path"`
	OCRText         string              `json:"ocr_text,omitempty"`
	StructuredData  *ocr.SeedPacketData `json:"structured_data,omitempty"`
	ModelUsed       string              `json:"model_used,omitempty"`
	ExtractionError string              `json:"extraction_error,omitempty"`
	ErrorMessage    string              `json:"error_message,omitempty"`
	Timestamp       time.Time           `json:"timestamp"`
}

// Summary counts the outcomes of a run
type Summary struct {
	Found     int
	Processed int
	Skipped   int
	Failed    int
}

// Command creates the ocr-batch command
func Command(settings *conf.Settings) *cobra.Command {
	var opts Options
	cmd := &cobra.Command{
		Use:   "ocr-batch",
		Short: "Run OCR over a directory of seed packet images",
		Long:  "Process every image under --input-dir and write <name>_ocr.json result files to --output-dir.",
		RunE: func(cmd *cobra.Command, args []string) error {
			central, err := logger.NewCentralLogger(settings.LoggingConfig())
			if err != nil {
				return fmt.Errorf("error initializing logger: %w", err)
			}
			defer func() { _ = central.Close() }()
			log := central.Module("ocrbatch")

			if !settings.OCR.Configured() {
				return ocr.ErrNotConfigured
			}
			client := ocr.NewClient(&settings.OCR, central.Module("ocr"))
			defer client.Close()
			svc := ocr.NewService(&settings.OCR, client, ocr.Deps{}, central.Module("ocr"))

			summary, err := Run(cmd.Context(), svc, opts, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d of %d images (%d skipped, %d failed)\n",
				summary.Processed, summary.Found, summary.Skipped, summary.Failed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.InputDir, "input-dir", "i", "", "Directory containing images to process")
	cmd.Flags().StringVarP(&opts.OutputDir, "output-dir", "o", "", "Directory to store JSON results")
	cmd.Flags().BoolVarP(&opts.SkipExisting, "skip-existing", "s", false, "Skip images that already have a result file")
	cmd.Flags().BoolVar(&opts.NoStructuredData, "no-structured-data", false, "Skip structured data extraction")
	cmd.Flags().DurationVar(&opts.Delay, "delay", time.Second, "Minimum delay between API calls")
	_ = cmd.MarkFlagRequired("input-dir")
	_ = cmd.MarkFlagRequired("output-dir")
	return cmd
}

// Run processes every image below opts.InputDir. A failure on one image is
// recorded in its result file and does not stop the run.
func Run(ctx context.Context, p Processor, opts Options, log logger.Logger) (Summary, error) {
	var summary Summary
	if info, err := os.Stat(opts.InputDir); err != nil || !info.IsDir() {
		return summary, errors.Newf("input directory not found: %s", opts.InputDir).
			Component("ocrbatch").
			Category(errors.CategoryValidation).
			Build()
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return summary, errors.New(err).
			Component("ocrbatch").
			Category(errors.CategoryFileIO).
			Context("dir", opts.OutputDir).
			Build()
	}

	images, err := findImages(opts.InputDir)
	if err != nil {
		return summary, err
	}
	summary.Found = len(images)
	log.Info("found images", logger.Int("count", len(images)), logger.String("input_dir", opts.InputDir))

	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	for i, path := range images {
		out := resultPath(opts.OutputDir, path)
		if opts.SkipExisting && fileExists(out) {
			log.Info("skipping image with existing result", logger.String("image", path))
			summary.Skipped++
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			return summary, err
		}

		log.Info("processing image",
			logger.Int("index", i+1),
			logger.Int("total", len(images)),
			logger.String("image", path))
		rec := processOne(ctx, p, path, !opts.NoStructuredData)
		if rec.Status == ocr.StatusError {
			summary.Failed++
			log.Error("image failed", logger.String("image", path), logger.String("error", rec.ErrorMessage))
		} else {
			summary.Processed++
		}

		if err := writeRecord(out, rec); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func processOne(ctx context.Context, p Processor, path string, extract bool) Record {
	rec := Record{ImagePath: path, Timestamp: time.Now()}

	data, err := os.ReadFile(path)
	if err == nil {
		var res *ocr.Result
		res, err = p.ProcessImage(ctx, ocr.ImageInput{
			Data:           data,
			Filename:       filepath.Base(path),
			SkipExtraction: !extract,
		})
		if err == nil {
			rec.Status = res.Status
			rec.OCRText = res.OCRText
			rec.ModelUsed = res.ModelUsed
			rec.ExtractionError = res.ExtractionError
			if extract && res.Status == ocr.StatusSuccess {
				sd := res.StructuredData
				rec.StructuredData = &sd
			}
			return rec
		}
	}

	rec.Status = ocr.StatusError
	rec.ErrorMessage = err.Error()
	return rec
}

// findImages walks dir for files with an image extension
func findImages(dir string) ([]string, error) {
	var images []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(path))) {
			images = append(images, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.New(err).
			Component("ocrbatch").
			Category(errors.CategoryFileIO).
			Context("dir", dir).
			Build()
	}
	return images, nil
}

// resultPath maps an image to <output>/<base>_ocr.json
func resultPath(outputDir, imagePath string) string {
	base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	return filepath.Join(outputDir, base+resultSuffix)
}

func writeRecord(path string, rec Record) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.New(err).Component("ocrbatch").Category(errors.CategoryFileIO).Context("path", path).Build()
	}
	defer func() { _ = f.Close() }()
	return encodeRecord(f, rec)
}

func encodeRecord(w io.Writer, rec Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(rec)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
