// conf/defaults.go default values for settings
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// setDefaultConfig registers the default value of every setting
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("database.url", "")
	viper.SetDefault("database.driver", DriverSQLite)
	viper.SetDefault("database.host", "db")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "garden_user")
	viper.SetDefault("database.password", "mygarden")
	viper.SetDefault("database.name", "garden_db")
	viper.SetDefault("database.sqlite_path", "garden.db")
	viper.SetDefault("database.slow_query", 200*time.Millisecond)
	viper.SetDefault("database.max_open_conns", 10)

	viper.SetDefault("ocr.api_key", "")
	viper.SetDefault("ocr.base_url", "https://api.mistral.ai/v1")
	viper.SetDefault("ocr.ocr_model", "mistral-ocr-latest")
	viper.SetDefault("ocr.chat_model", "mistral-large-latest")
	viper.SetDefault("ocr.fallback_model", "mistral-small-latest")
	viper.SetDefault("ocr.timeout", 60*time.Second)
	viper.SetDefault("ocr.rate_limit", 2.0)

	viper.SetDefault("upload.dir", "static/uploads")
	viper.SetDefault("upload.url_prefix", "/static/uploads")
	viper.SetDefault("upload.max_size_mb", 50)

	viper.SetDefault("webserver.host", "")
	viper.SetDefault("webserver.port", 8000)
	viper.SetDefault("webserver.read_timeout", 30*time.Second)
	viper.SetDefault("webserver.write_timeout", 120*time.Second)
	viper.SetDefault("webserver.shutdown_timeout", 10*time.Second)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")
	viper.SetDefault("logging.timezone", "Local")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.environment", "production")
	viper.SetDefault("sentry.sample_rate", 1.0)
}

// DefaultSettings returns the settings a fresh install starts with
func DefaultSettings() *Settings {
	return &Settings{
		Database: DatabaseSettings{
			Driver:       DriverSQLite,
			Host:         "db",
			Port:         5432,
			User:         "garden_user",
			Name:         "garden_db",
			SQLitePath:   "garden.db",
			SlowQuery:    200 * time.Millisecond,
			MaxOpenConns: 10,
		},
		OCR: OCRSettings{
			BaseURL:       "https://api.mistral.ai/v1",
			OCRModel:      "mistral-ocr-latest",
			ChatModel:     "mistral-large-latest",
			FallbackModel: "mistral-small-latest",
			Timeout:       60 * time.Second,
			RateLimit:     2,
		},
		Upload: UploadSettings{
			Dir:       "static/uploads",
			URLPrefix: "/static/uploads",
			MaxSizeMB: 50,
		},
		WebServer: WebServerSettings{
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LogSettings{Level: "info", Timezone: "Local"},
		Metrics: MetricsSettings{Enabled: true, Path: "/metrics"},
		Sentry:  SentrySettings{Environment: "production", SampleRate: 1.0},
	}
}

// WriteDefaultConfig writes a config.yaml with default values to path.
// Secrets are left empty; supply them through the environment.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}

	data, err := yaml.Marshal(DefaultSettings())
	if err != nil {
		return fmt.Errorf("error marshaling default config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}
