// env.go - environment variable bindings and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gardentracker/gardentracker/internal/logger"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "DEBUG", validateEnvBool},

		// Database
		{"database.url", "DATABASE_URL", validateEnvDatabaseURL},
		{"database.driver", "DATABASE_DRIVER", validateEnvDriver},
		{"database.host", "POSTGRES_HOST", nil},
		{"database.port", "POSTGRES_PORT", validateEnvPort},
		{"database.user", "POSTGRES_USER", nil},
		{"database.password", "POSTGRES_PASSWORD", nil},
		{"database.name", "POSTGRES_DB", nil},
		{"database.sqlite_path", "SQLITE_PATH", nil},

		// OCR
		{"ocr.api_key", "MISTRAL_API_KEY", nil},
		{"ocr.base_url", "MISTRAL_BASE_URL", validateEnvURL},
		{"ocr.ocr_model", "MISTRAL_OCR_MODEL", nil},
		{"ocr.chat_model", "MISTRAL_CHAT_MODEL", nil},
		{"ocr.fallback_model", "MISTRAL_FALLBACK_MODEL", nil},
		{"ocr.timeout", "OCR_TIMEOUT", validateEnvDuration},
		{"ocr.rate_limit", "OCR_RATE_LIMIT", validateEnvPositiveFloat},

		// Uploads
		{"upload.dir", "UPLOAD_FOLDER", nil},
		{"upload.url_prefix", "UPLOAD_URL_PREFIX", nil},
		{"upload.max_size_mb", "MAX_UPLOAD_MB", validateEnvPositiveInt},

		// Web server, logging and telemetry
		{"webserver.port", "PORT", validateEnvPort},
		{"logging.level", "LOG_LEVEL", validateEnvLogLevel},
		{"logging.file", "LOG_FILE", nil},
		{"metrics.enabled", "METRICS_ENABLED", validateEnvBool},
		{"sentry.dsn", "SENTRY_DSN", validateEnvURL},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value: %v", binding.EnvVar, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables() error {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars()
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("must be positive, got %d", n)
	}
	return nil
}

func validateEnvPositiveFloat(value string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("invalid number: %w", err)
	}
	if f <= 0 {
		return fmt.Errorf("must be positive, got %g", f)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", d)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("URL must include scheme and host")
	}
	return nil
}

func validateEnvDriver(value string) error {
	switch strings.ToLower(value) {
	case DriverSQLite, DriverPostgres, DriverMySQL:
		return nil
	}
	return fmt.Errorf("unsupported driver %q, expected sqlite, postgres or mysql", value)
}

func validateEnvDatabaseURL(value string) error {
	if _, err := DriverFromURL(value); err != nil {
		return err
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	if !logger.ValidLevel(strings.ToLower(value)) {
		return fmt.Errorf("unknown log level %q", value)
	}
	return nil
}
