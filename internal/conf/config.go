// Package conf loads application settings from config.yaml, .env and the environment.
package conf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/gardentracker/gardentracker/internal/logger"
)

// Settings is the root of the application configuration
type Settings struct {
	Debug bool `yaml:"debug" mapstructure:"debug"`

	Database  DatabaseSettings  `yaml:"database" mapstructure:"database"`
	OCR       OCRSettings       `yaml:"ocr" mapstructure:"ocr"`
	Upload    UploadSettings    `yaml:"upload" mapstructure:"upload"`
	WebServer WebServerSettings `yaml:"webserver" mapstructure:"webserver"`
	Logging   LogSettings       `yaml:"logging" mapstructure:"logging"`
	Metrics   MetricsSettings   `yaml:"metrics" mapstructure:"metrics"`
	Sentry    SentrySettings    `yaml:"sentry" mapstructure:"sentry"`
}

// DatabaseSettings selects and addresses the SQL backend
type DatabaseSettings struct {
	URL          string        `yaml:"url" mapstructure:"url"`       // full URL, wins over the parts below
	Driver       string        `yaml:"driver" mapstructure:"driver"` // sqlite, postgres or mysql
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	User         string        `yaml:"user" mapstructure:"user"`
	Password     string        `yaml:"password" mapstructure:"password"`
	Name         string        `yaml:"name" mapstructure:"name"`
	SQLitePath   string        `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	SlowQuery    time.Duration `yaml:"slow_query" mapstructure:"slow_query"` // queries slower than this are logged as warnings
	MaxOpenConns int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
}

// OCRSettings configures the remote OCR and chat-completion API
type OCRSettings struct {
	APIKey        string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL       string        `yaml:"base_url" mapstructure:"base_url"`
	OCRModel      string        `yaml:"ocr_model" mapstructure:"ocr_model"`
	ChatModel     string        `yaml:"chat_model" mapstructure:"chat_model"`
	FallbackModel string        `yaml:"fallback_model" mapstructure:"fallback_model"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RateLimit     float64       `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second per client
}

// Configured reports whether an API key is available
func (o *OCRSettings) Configured() bool {
	return o.APIKey != ""
}

// UploadSettings configures the image store
type UploadSettings struct {
	Dir       string `yaml:"dir" mapstructure:"dir"`
	URLPrefix string `yaml:"url_prefix" mapstructure:"url_prefix"`
	MaxSizeMB int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
}

// MaxBytes returns the upload limit in bytes
func (u *UploadSettings) MaxBytes() int64 {
	return int64(u.MaxSizeMB) << 20
}

// WebServerSettings configures the HTTP listener
type WebServerSettings struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// Address returns host:port for the listener
func (w *WebServerSettings) Address() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// LogSettings configures the central logger
type LogSettings struct {
	Level        string            `yaml:"level" mapstructure:"level"`
	File         string            `yaml:"file" mapstructure:"file"`
	Timezone     string            `yaml:"timezone" mapstructure:"timezone"`
	ModuleLevels map[string]string `yaml:"module_levels" mapstructure:"module_levels"`
}

// MetricsSettings toggles the Prometheus endpoint
type MetricsSettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SentrySettings enables error telemetry when a DSN is set
type SentrySettings struct {
	DSN         string  `yaml:"dsn" mapstructure:"dsn"`
	Environment string  `yaml:"environment" mapstructure:"environment"`
	SampleRate  float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// Enabled reports whether Sentry reporting is configured
func (s *SentrySettings) Enabled() bool {
	return s.DSN != ""
}

// LoggingConfig converts the settings into the central logger configuration.
// Debug mode forces debug level.
func (s *Settings) LoggingConfig() *logger.LoggingConfig {
	level := s.Logging.Level
	if s.Debug {
		level = string(logger.LogLevelDebug)
	}
	cfg := &logger.LoggingConfig{
		DefaultLevel: level,
		Timezone:     s.Logging.Timezone,
		Console:      &logger.ConsoleOutput{Enabled: true, Level: level},
		ModuleLevels: s.Logging.ModuleLevels,
	}
	if s.Logging.File != "" {
		cfg.FileOutput = &logger.FileOutput{Enabled: true, Path: s.Logging.File, Level: level}
	}
	return cfg
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads .env, config.yaml and the environment into Settings and validates the result.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// GetSettings returns the most recently loaded settings, or nil
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// loadDotEnv populates the environment from ./.env when present. Variables
// already set in the environment are not overridden.
func loadDotEnv() error {
	envFile := os.Getenv("GARDEN_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error reading %s: %w", envFile, err)
	}
	return nil
}

// initViper registers defaults, reads config.yaml if one exists and binds the environment.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	for _, path := range GetDefaultConfigPaths() {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		return err
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// GetDefaultConfigPaths lists the directories searched for config.yaml
func GetDefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "gardentracker"))
	}
	return append(paths, "/etc/gardentracker")
}
