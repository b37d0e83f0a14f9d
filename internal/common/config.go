package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. A loaded Config is treated as an
// immutable snapshot; use ConfigHolder to swap it between pipeline runs.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Model    ModelConfig    `yaml:"model"`
	Render   RenderConfig   `yaml:"render"`
	Review   ReviewConfig   `yaml:"review"`
	Extract  ExtractConfig  `yaml:"extract"`
	Events   EventsConfig   `yaml:"events"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // sqlite | postgres
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr    string `yaml:"grpc_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// StorageConfig holds on-disk locations.
type StorageConfig struct {
	DataDir  string `yaml:"data_dir"`
	InboxDir string `yaml:"inbox_dir"`
}

// UploadsDir is where ingested copies live.
func (s StorageConfig) UploadsDir() string {
	return filepath.Join(s.DataDir, "uploads")
}

// DBPath is the default SQLite file location.
func (s StorageConfig) DBPath() string {
	return filepath.Join(s.DataDir, "tax.db")
}

// ModelConfig selects and tunes the model backend.
type ModelConfig struct {
	Backend             string        `yaml:"backend"`        // local | cloud
	CloudProvider       string        `yaml:"cloud_provider"` // anthropic | openai | gemini
	LocalModel          string        `yaml:"local_model"`
	CloudModel          string        `yaml:"cloud_model"`
	APIKey              string        `yaml:"cloud_api_key"`
	BaseURL             string        `yaml:"base_url"`
	OllamaURL           string        `yaml:"ollama_url"`
	PrivacyAcknowledged bool          `yaml:"privacy_acknowledged"`
	Timeout             time.Duration `yaml:"timeout"`
	MaxTokens           int           `yaml:"max_tokens"`
	RateLimit           float64       `yaml:"rate_limit"` // calls per second, 0 disables
	RateBurst           int           `yaml:"rate_burst"`
	BreakerEnabled      bool          `yaml:"breaker_enabled"`
	BreakerMinRequests  uint32        `yaml:"breaker_min_requests"`
	BreakerFailureRatio float64       `yaml:"breaker_failure_ratio"`
	BreakerOpenTimeout  time.Duration `yaml:"breaker_open_timeout"`
}

// RenderConfig tunes the page rasterizer.
type RenderConfig struct {
	Pdftoppm string  `yaml:"pdftoppm"`
	Scale    float64 `yaml:"scale"`
}

// ReviewConfig holds the confidence blending weights and review thresholds.
type ReviewConfig struct {
	MinOverallConfidence        float64 `yaml:"min_overall_confidence"`
	MinClassificationConfidence float64 `yaml:"min_classification_confidence"`
	ClassificationWeight        float64 `yaml:"classification_weight"`
	CompletenessWeight          float64 `yaml:"completeness_weight"`
}

// ExtractConfig tunes page-level inference.
type ExtractConfig struct {
	PageConcurrency int `yaml:"page_concurrency"`
}

// EventsConfig configures processed-document notifications.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Format string `yaml:"format"` // text | json
	Level  string `yaml:"level"`
}

// DefaultConfigPath is where LoadConfig looks when no path is given.
func DefaultConfigPath() string {
	return expandHome("~/.config/taxdocs/config.yaml")
}

// DefaultConfig returns the built-in defaults before file and env overrides.
func DefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:          "sqlite",
			MaxConns:        20,
			MinConns:        2,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			GRPCAddr:    ":8421",
			MetricsAddr: ":9421",
		},
		Storage: StorageConfig{
			DataDir: "~/.local/share/taxdocs",
		},
		Model: ModelConfig{
			Backend:             "local",
			CloudProvider:       "anthropic",
			LocalModel:          "llama3.2",
			CloudModel:          "claude-haiku-4-5",
			OllamaURL:           "http://localhost:11434",
			Timeout:             120 * time.Second,
			MaxTokens:           2048,
			BreakerEnabled:      true,
			BreakerMinRequests:  5,
			BreakerFailureRatio: 0.6,
			BreakerOpenTimeout:  30 * time.Second,
		},
		Render: RenderConfig{
			Pdftoppm: "pdftoppm",
			Scale:    2.0,
		},
		Review: ReviewConfig{
			MinOverallConfidence:        0.75,
			MinClassificationConfidence: 0.6,
			ClassificationWeight:        0.5,
			CompletenessWeight:          0.5,
		},
		Extract: ExtractConfig{
			PageConcurrency: 1,
		},
		Events: EventsConfig{
			Subject: "taxdocs.document.processed",
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// LoadConfig builds a snapshot from defaults, an optional YAML file, then env overrides.
// A missing file is not an error; an unreadable or malformed one is.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("parse %s", path), errors.Join(ErrInvalidInput, err))
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("read %s", path), err)
	}

	applyEnv(&cfg)

	cfg.Storage.DataDir = expandHome(cfg.Storage.DataDir)
	cfg.Storage.InboxDir = expandHome(cfg.Storage.InboxDir)
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = cfg.Storage.DBPath()
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getEnv("DB_URL", cfg.Database.DSN)
	cfg.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", cfg.Database.MaxConns)
	cfg.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", cfg.Database.MinConns)
	cfg.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", cfg.Database.MaxConnLifetime)
	cfg.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", cfg.Database.MaxConnIdleTime)
	cfg.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", cfg.Database.DialTimeout)
	cfg.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", cfg.Database.StatementTimeout)

	cfg.Server.GRPCAddr = getEnv("GRPC_ADDR", cfg.Server.GRPCAddr)
	cfg.Server.MetricsAddr = getEnv("METRICS_ADDR", cfg.Server.MetricsAddr)

	cfg.Storage.DataDir = getEnv("DATA_DIR", cfg.Storage.DataDir)
	cfg.Storage.InboxDir = getEnv("INBOX_DIR", cfg.Storage.InboxDir)

	cfg.Model.Backend = getEnv("MODEL_BACKEND", cfg.Model.Backend)
	cfg.Model.CloudProvider = getEnv("CLOUD_PROVIDER", cfg.Model.CloudProvider)
	cfg.Model.LocalModel = getEnv("LOCAL_MODEL", cfg.Model.LocalModel)
	cfg.Model.CloudModel = getEnv("CLOUD_MODEL", cfg.Model.CloudModel)
	cfg.Model.BaseURL = getEnv("MODEL_BASE_URL", cfg.Model.BaseURL)
	cfg.Model.OllamaURL = getEnv("OLLAMA_URL", cfg.Model.OllamaURL)
	cfg.Model.Timeout = getEnvAsDuration("MODEL_TIMEOUT", cfg.Model.Timeout)
	cfg.Model.MaxTokens = getEnvAsInt("MODEL_MAX_TOKENS", cfg.Model.MaxTokens)
	cfg.Model.RateLimit = getEnvAsFloat64("MODEL_RATE_LIMIT", cfg.Model.RateLimit)
	cfg.Model.RateBurst = getEnvAsInt("MODEL_RATE_BURST", cfg.Model.RateBurst)
	cfg.Model.BreakerEnabled = getEnvAsBool("MODEL_BREAKER_ENABLED", cfg.Model.BreakerEnabled)
	cfg.Model.PrivacyAcknowledged = getEnvAsBool("PRIVACY_ACKNOWLEDGED", cfg.Model.PrivacyAcknowledged)
	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = getEnv(apiKeyEnv(cfg.Model.CloudProvider), "")
	}

	cfg.Render.Pdftoppm = getEnv("PDFTOPPM", cfg.Render.Pdftoppm)
	cfg.Render.Scale = getEnvAsFloat64("RENDER_SCALE", cfg.Render.Scale)

	cfg.Review.MinOverallConfidence = getEnvAsFloat64("REVIEW_MIN_OVERALL", cfg.Review.MinOverallConfidence)
	cfg.Review.MinClassificationConfidence = getEnvAsFloat64("REVIEW_MIN_CLASSIFICATION", cfg.Review.MinClassificationConfidence)

	cfg.Extract.PageConcurrency = getEnvAsInt("PAGE_CONCURRENCY", cfg.Extract.PageConcurrency)

	cfg.Events.NATSURL = getEnv("NATS_URL", cfg.Events.NATSURL)
	cfg.Events.Subject = getEnv("NATS_SUBJECT", cfg.Events.Subject)

	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
}

func apiKeyEnv(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return "OPENAI_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	default:
		return "ANTHROPIC_API_KEY"
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unsupported DB_DRIVER %q", c.Database.Driver), ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Storage.DataDir == "" {
		return NewAppError("CONFIG_ERROR", "DATA_DIR is required", ErrInvalidInput)
	}

	switch c.Model.Backend {
	case "local":
		if c.Model.LocalModel == "" {
			return NewAppError("CONFIG_ERROR", "LOCAL_MODEL is required", ErrInvalidInput)
		}
	case "cloud":
		switch c.Model.CloudProvider {
		case "anthropic", "openai", "gemini":
		default:
			return NewAppError("CONFIG_ERROR", fmt.Sprintf("unsupported CLOUD_PROVIDER %q", c.Model.CloudProvider), ErrInvalidInput)
		}
		if c.Model.APIKey == "" {
			return NewAppError("CONFIG_ERROR", apiKeyEnv(c.Model.CloudProvider)+" is required for the cloud backend", ErrInvalidInput)
		}
		if !c.Model.PrivacyAcknowledged {
			return NewAppError("PRIVACY_NOT_ACKNOWLEDGED",
				"cloud backends send document images to a third-party provider; set privacy_acknowledged: true to continue",
				ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unsupported MODEL_BACKEND %q", c.Model.Backend), ErrInvalidInput)
	}

	if c.Render.Scale <= 0 {
		return NewAppError("CONFIG_ERROR", "render scale must be positive", ErrInvalidInput)
	}

	r := c.Review
	if !inUnit(r.MinOverallConfidence) || !inUnit(r.MinClassificationConfidence) {
		return NewAppError("CONFIG_ERROR", "review thresholds must be within [0,1]", ErrInvalidInput)
	}
	if r.ClassificationWeight < 0 || r.CompletenessWeight < 0 || r.ClassificationWeight+r.CompletenessWeight == 0 {
		return NewAppError("CONFIG_ERROR", "review weights must be non-negative and not both zero", ErrInvalidInput)
	}
	return nil
}

func inUnit(f float64) bool { return f >= 0 && f <= 1 }

// ConfigHolder publishes the active configuration snapshot. Readers take a
// copy once per run so a concurrent Swap never changes a run midway.
type ConfigHolder struct {
	cur atomic.Pointer[Config]
}

func NewConfigHolder(cfg *Config) *ConfigHolder {
	h := &ConfigHolder{}
	c := *cfg
	h.cur.Store(&c)
	return h
}

// Snapshot returns a copy of the active configuration.
func (h *ConfigHolder) Snapshot() Config {
	return *h.cur.Load()
}

// Swap validates cfg and makes it the active snapshot for subsequent runs.
func (h *ConfigHolder) Swap(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c := *cfg
	h.cur.Store(&c)
	return nil
}
