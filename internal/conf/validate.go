package conf

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gardentracker/gardentracker/internal/logger"
)

// maxUploadMB is the hard ceiling on configurable upload size
const maxUploadMB = 50

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	ve.Errors = append(ve.Errors, validateDatabaseSettings(&settings.Database)...)
	ve.Errors = append(ve.Errors, validateOCRSettings(&settings.OCR)...)
	ve.Errors = append(ve.Errors, validateUploadSettings(&settings.Upload)...)

	if settings.WebServer.Port < 1 || settings.WebServer.Port > 65535 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("webserver port must be between 1 and 65535, got %d", settings.WebServer.Port))
	}
	if settings.Logging.Level != "" && !logger.ValidLevel(strings.ToLower(settings.Logging.Level)) {
		ve.Errors = append(ve.Errors, fmt.Sprintf("unknown log level %q", settings.Logging.Level))
	}
	for module, level := range settings.Logging.ModuleLevels {
		if !logger.ValidLevel(strings.ToLower(level)) {
			ve.Errors = append(ve.Errors, fmt.Sprintf("unknown log level %q for module %s", level, module))
		}
	}
	if settings.Metrics.Enabled && !strings.HasPrefix(settings.Metrics.Path, "/") {
		ve.Errors = append(ve.Errors, "metrics path must start with /")
	}
	if settings.Sentry.SampleRate < 0 || settings.Sentry.SampleRate > 1 {
		ve.Errors = append(ve.Errors, "sentry sample rate must be between 0 and 1")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateDatabaseSettings(d *DatabaseSettings) []string {
	var errs []string
	if d.URL != "" {
		if _, err := DriverFromURL(d.URL); err != nil {
			errs = append(errs, err.Error())
		}
		return errs
	}

	switch strings.ToLower(d.Driver) {
	case DriverSQLite:
		if d.SQLitePath == "" {
			errs = append(errs, "database sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres, DriverMySQL:
		if d.Host == "" || d.Name == "" || d.User == "" {
			errs = append(errs, fmt.Sprintf("database host, name and user are required for the %s driver", d.Driver))
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported database driver %q", d.Driver))
	}
	return errs
}

func validateOCRSettings(o *OCRSettings) []string {
	var errs []string
	if u, err := url.Parse(o.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("ocr base_url %q is not a valid URL", o.BaseURL))
	}
	if o.OCRModel == "" || o.ChatModel == "" || o.FallbackModel == "" {
		errs = append(errs, "ocr model names must not be empty")
	}
	if o.Timeout <= 0 {
		errs = append(errs, "ocr timeout must be positive")
	}
	if o.RateLimit <= 0 {
		errs = append(errs, "ocr rate_limit must be positive")
	}
	return errs
}

func validateUploadSettings(u *UploadSettings) []string {
	var errs []string
	if u.Dir == "" {
		errs = append(errs, "upload dir must not be empty")
	}
	if !strings.HasPrefix(u.URLPrefix, "/") {
		errs = append(errs, "upload url_prefix must start with /")
	}
	if u.MaxSizeMB <= 0 || u.MaxSizeMB > maxUploadMB {
		errs = append(errs, fmt.Sprintf("upload max_size_mb must be between 1 and %d", maxUploadMB))
	}
	return errs
}
