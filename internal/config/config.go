package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/docs-manager/internal/core/domain"
)

const (
	OCREngineTesseract = "tesseract"
	OCREngineNone      = "none"

	CatalogDriverSQLite   = "sqlite"
	CatalogDriverPostgres = "pgx"
)

type Config struct {
	APIPort  string `yaml:"api_port"`
	LogLevel string `yaml:"log_level"`

	StoragePath string `yaml:"storage_path"`
	TempPath    string `yaml:"temp_path"`
	FilingMode  string `yaml:"filing_mode"`

	OCREngine    string `yaml:"ocr_engine"`
	OCRLanguages string `yaml:"ocr_languages"`

	CatalogDriver string `yaml:"catalog_driver"`
	CatalogDSN    string `yaml:"catalog_dsn"`

	NATSURL          string `yaml:"nats_url"`
	NATSSubject      string `yaml:"nats_subject"`
	RetryMaxAttempts int    `yaml:"retry_max_attempts"`

	InboxPath     string        `yaml:"inbox_path"`
	InboxDebounce time.Duration `yaml:"inbox_debounce"`

	APIRateLimitRPS     float64       `yaml:"api_rate_limit_rps"`
	APIRateLimitBurst   int           `yaml:"api_rate_limit_burst"`
	APIMaxConnections   int           `yaml:"api_max_connections"`
	APIMaxInFlight      int           `yaml:"api_max_in_flight"`
	APIBackpressureWait time.Duration `yaml:"api_backpressure_wait"`
	MetricsEnabled      bool          `yaml:"metrics_enabled"`

	WorkerMetricsPort string `yaml:"worker_metrics_port"`
}

func defaults() Config {
	return Config{
		APIPort:  "8080",
		LogLevel: "info",

		StoragePath: "./data/documents",
		TempPath:    "./data/tmp",
		FilingMode:  string(domain.FilingByPerson),

		OCREngine:    OCREngineTesseract,
		OCRLanguages: "eng",

		CatalogDriver: CatalogDriverSQLite,

		NATSSubject:      "documents.filed",
		RetryMaxAttempts: 1,

		InboxDebounce: 500 * time.Millisecond,

		APIRateLimitRPS:     20,
		APIRateLimitBurst:   40,
		APIMaxConnections:   256,
		APIMaxInFlight:      64,
		APIBackpressureWait: 250 * time.Millisecond,
		MetricsEnabled:      true,

		WorkerMetricsPort: "9090",
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE, and environment variables, in that order of precedence.
func Load() (Config, error) {
	base := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &base); err != nil {
			return Config{}, err
		}
	}

	cfg := Config{
		APIPort:  mustEnv("API_PORT", base.APIPort),
		LogLevel: mustEnv("LOG_LEVEL", base.LogLevel),

		StoragePath: mustEnv("STORAGE_PATH", base.StoragePath),
		TempPath:    mustEnv("TEMP_PATH", base.TempPath),
		FilingMode:  mustEnv("FILING_MODE", base.FilingMode),

		OCREngine:    strings.ToLower(mustEnv("OCR_ENGINE", base.OCREngine)),
		OCRLanguages: mustEnv("OCR_LANGUAGES", base.OCRLanguages),

		CatalogDriver: strings.ToLower(mustEnv("CATALOG_DRIVER", base.CatalogDriver)),
		CatalogDSN:    mustEnv("CATALOG_DSN", base.CatalogDSN),

		NATSURL:          mustEnv("NATS_URL", base.NATSURL),
		NATSSubject:      mustEnv("NATS_SUBJECT", base.NATSSubject),
		RetryMaxAttempts: mustEnvInt("RETRY_MAX_ATTEMPTS", base.RetryMaxAttempts),

		InboxPath:     mustEnv("INBOX_PATH", base.InboxPath),
		InboxDebounce: mustEnvDuration("INBOX_DEBOUNCE", base.InboxDebounce),

		APIRateLimitRPS:     mustEnvFloat("API_RATE_LIMIT_RPS", base.APIRateLimitRPS),
		APIRateLimitBurst:   mustEnvInt("API_RATE_LIMIT_BURST", base.APIRateLimitBurst),
		APIMaxConnections:   mustEnvInt("API_MAX_CONNECTIONS", base.APIMaxConnections),
		APIMaxInFlight:      mustEnvInt("API_MAX_IN_FLIGHT", base.APIMaxInFlight),
		APIBackpressureWait: mustEnvDuration("API_BACKPRESSURE_WAIT", base.APIBackpressureWait),
		MetricsEnabled:      mustEnvBool("METRICS_ENABLED", base.MetricsEnabled),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", base.WorkerMetricsPort),
	}

	if cfg.CatalogDSN == "" && cfg.CatalogDriver == CatalogDriverSQLite {
		cfg.CatalogDSN = filepath.Join(filepath.Dir(filepath.Clean(cfg.StoragePath)), "catalog.db")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Filing returns the parsed filing mode. Validate guarantees it is known.
func (c Config) Filing() domain.FilingMode {
	mode, _ := domain.ParseFilingMode(c.FilingMode)
	return mode
}

func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.StoragePath) == "" {
		errs = append(errs, errors.New("STORAGE_PATH is required"))
	}
	if strings.TrimSpace(c.TempPath) == "" {
		errs = append(errs, errors.New("TEMP_PATH is required"))
	}
	if c.StoragePath != "" && filepath.Clean(c.StoragePath) == filepath.Clean(c.TempPath) {
		errs = append(errs, errors.New("TEMP_PATH must differ from STORAGE_PATH"))
	}
	if _, ok := domain.ParseFilingMode(c.FilingMode); !ok {
		errs = append(errs, fmt.Errorf("FILING_MODE %q must be person or type", c.FilingMode))
	}
	switch c.OCREngine {
	case OCREngineTesseract, OCREngineNone:
	default:
		errs = append(errs, fmt.Errorf("OCR_ENGINE %q must be tesseract or none", c.OCREngine))
	}
	switch c.CatalogDriver {
	case CatalogDriverSQLite, CatalogDriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("CATALOG_DRIVER %q must be sqlite or pgx", c.CatalogDriver))
	}
	if c.CatalogDriver == CatalogDriverPostgres && c.CatalogDSN == "" {
		errs = append(errs, errors.New("CATALOG_DSN is required for the pgx driver"))
	}
	if c.NATSURL != "" && c.NATSSubject == "" {
		errs = append(errs, errors.New("NATS_SUBJECT is required when NATS_URL is set"))
	}
	if c.RetryMaxAttempts < 1 {
		errs = append(errs, errors.New("RETRY_MAX_ATTEMPTS must be >= 1"))
	}
	if c.APIRateLimitRPS < 0 {
		errs = append(errs, errors.New("API_RATE_LIMIT_RPS must be >= 0"))
	}
	if c.APIRateLimitRPS > 0 && c.APIRateLimitBurst < 1 {
		errs = append(errs, errors.New("API_RATE_LIMIT_BURST must be >= 1 when rate limiting is on"))
	}
	if c.APIMaxConnections < 0 {
		errs = append(errs, errors.New("API_MAX_CONNECTIONS must be >= 0"))
	}
	if c.APIMaxInFlight < 0 {
		errs = append(errs, errors.New("API_MAX_IN_FLIGHT must be >= 0"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
