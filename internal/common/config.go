package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Export   ExportConfig   `yaml:"export"`
	Ingest   IngestConfig   `yaml:"ingest"`
}

// DatabaseConfig holds database-related configuration. A DSN starting with
// postgres:// or postgresql:// selects Postgres, anything else is a SQLite path.
type DatabaseConfig struct {
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
	HTTPAddr    string `yaml:"http_addr"`
	GRPCAddr    string `yaml:"grpc_addr"`
	UploadDir   string `yaml:"upload_dir"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// LLMConfig holds model gateway configuration
type LLMConfig struct {
	Provider          string        `yaml:"provider"`
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Temperature       float32       `yaml:"temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RetryBackoff      time.Duration `yaml:"retry_backoff"`
	OAuthTokenURL     string        `yaml:"oauth_token_url"`
	OAuthClientID     string        `yaml:"oauth_client_id"`
	OAuthClientSecret string        `yaml:"oauth_client_secret"`
}

// PipelineConfig holds stage policy knobs
type PipelineConfig struct {
	Workers                  int           `yaml:"workers"`
	QueueSize                int           `yaml:"queue_size"`
	InvoiceTimeout           time.Duration `yaml:"invoice_timeout"`
	ROIThreshold             float64       `yaml:"roi_threshold"`
	HighAmount               float64       `yaml:"high_amount"`
	PORequiredAbove          float64       `yaml:"po_required_above"`
	DuplicateAmountTolerance float64       `yaml:"duplicate_amount_tolerance"`
	DuplicateWindowDays      int           `yaml:"duplicate_window_days"`
	Narratives               bool          `yaml:"narratives"`
}

// ExportConfig holds spreadsheet output configuration
type ExportConfig struct {
	Path  string `yaml:"path"`
	Sheet string `yaml:"sheet"`
}

// IngestConfig holds inbox watcher configuration
type IngestConfig struct {
	WatchDir string        `yaml:"watch_dir"`
	Debounce time.Duration `yaml:"debounce"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             "invoices.db",
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			HTTPAddr:    ":8000",
			GRPCAddr:    ":9090",
			UploadDir:   "./uploads",
			MaxUploadMB: 20,
		},
		LLM: LLMConfig{
			Provider:     "gemini",
			Model:        "gemini-2.0-flash",
			Timeout:      60 * time.Second,
			MaxAttempts:  2,
			RetryBackoff: 500 * time.Millisecond,
		},
		Pipeline: PipelineConfig{
			Workers:                  4,
			QueueSize:                256,
			InvoiceTimeout:           3 * time.Minute,
			ROIThreshold:             10,
			HighAmount:               100000,
			PORequiredAbove:          50000,
			DuplicateAmountTolerance: 0.10,
			DuplicateWindowDays:      7,
			Narratives:               true,
		},
		Export: ExportConfig{
			Path:  "processed_invoices.xlsx",
			Sheet: "Processed Invoices",
		},
		Ingest: IngestConfig{
			Debounce: 2 * time.Second,
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file and
// environment variables, in that order. An empty path falls back to INVOICE_CONFIG.
func LoadConfig(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("INVOICE_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError(CodeConfig, "read config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, NewAppError(CodeConfig, fmt.Sprintf("parse config file %s", path), err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.UploadDir = getEnv("UPLOAD_DIR", c.Server.UploadDir)
	c.Server.MaxUploadMB = getEnvAsInt("MAX_UPLOAD_MB", c.Server.MaxUploadMB)

	c.LLM.Provider = strings.ToLower(getEnv("LLM_PROVIDER", c.LLM.Provider))
	c.LLM.Model = getEnv("DEFAULT_MODEL", c.LLM.Model)
	switch c.LLM.Provider {
	case "openai":
		c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	default:
		c.LLM.APIKey = getEnv("GEMINI_API_KEY", c.LLM.APIKey)
	}
	c.LLM.APIKey = getEnv("LLM_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Temperature = getEnvAsFloat32("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", c.LLM.Timeout)
	c.LLM.MaxAttempts = getEnvAsInt("LLM_MAX_ATTEMPTS", c.LLM.MaxAttempts)
	c.LLM.RetryBackoff = getEnvAsDuration("LLM_RETRY_BACKOFF", c.LLM.RetryBackoff)
	c.LLM.OAuthTokenURL = getEnv("LLM_OAUTH_TOKEN_URL", c.LLM.OAuthTokenURL)
	c.LLM.OAuthClientID = getEnv("LLM_OAUTH_CLIENT_ID", c.LLM.OAuthClientID)
	c.LLM.OAuthClientSecret = getEnv("LLM_OAUTH_CLIENT_SECRET", c.LLM.OAuthClientSecret)

	c.Pipeline.Workers = getEnvAsInt("PIPELINE_WORKERS", c.Pipeline.Workers)
	c.Pipeline.QueueSize = getEnvAsInt("PIPELINE_QUEUE_SIZE", c.Pipeline.QueueSize)
	c.Pipeline.InvoiceTimeout = getEnvAsDuration("PIPELINE_INVOICE_TIMEOUT", c.Pipeline.InvoiceTimeout)
	c.Pipeline.ROIThreshold = getEnvAsFloat64("PIPELINE_ROI_THRESHOLD", c.Pipeline.ROIThreshold)
	c.Pipeline.HighAmount = getEnvAsFloat64("PIPELINE_HIGH_AMOUNT", c.Pipeline.HighAmount)
	c.Pipeline.PORequiredAbove = getEnvAsFloat64("PIPELINE_PO_REQUIRED_ABOVE", c.Pipeline.PORequiredAbove)
	c.Pipeline.Narratives = getEnvAsBool("PIPELINE_NARRATIVES", c.Pipeline.Narratives)

	c.Export.Path = getEnv("EXPORT_PATH", c.Export.Path)

	c.Ingest.WatchDir = getEnv("WATCH_DIR", c.Ingest.WatchDir)
	c.Ingest.Debounce = getEnvAsDuration("WATCH_DEBOUNCE", c.Ingest.Debounce)
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

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
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

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "gemini", "openai":
	default:
		return NewAppError(CodeConfig, fmt.Sprintf("unknown LLM_PROVIDER %q", c.LLM.Provider), ErrInvalidInput)
	}
	if c.LLM.APIKey == "" && c.LLM.OAuthTokenURL == "" {
		return NewAppError(CodeConfig, "an API key (GEMINI_API_KEY, OPENAI_API_KEY or LLM_API_KEY) is required", ErrInvalidInput)
	}
	if c.LLM.OAuthTokenURL != "" && c.LLM.Provider != "openai" {
		return NewAppError(CodeConfig, "LLM_OAUTH_TOKEN_URL is only supported with LLM_PROVIDER=openai", ErrInvalidInput)
	}
	if c.LLM.MaxAttempts < 1 {
		return NewAppError(CodeConfig, "LLM_MAX_ATTEMPTS must be at least 1", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput)
	}
	if c.Pipeline.Workers < 1 {
		return NewAppError(CodeConfig, "PIPELINE_WORKERS must be at least 1", ErrInvalidInput)
	}
	if c.Pipeline.ROIThreshold < 0 {
		return NewAppError(CodeConfig, "PIPELINE_ROI_THRESHOLD must not be negative", ErrInvalidInput)
	}
	if c.Pipeline.DuplicateAmountTolerance < 0 || c.Pipeline.DuplicateWindowDays < 0 {
		return NewAppError(CodeConfig, "duplicate tolerances must not be negative", ErrInvalidInput)
	}
	if c.Export.Path == "" {
		return NewAppError(CodeConfig, "EXPORT_PATH is required", ErrInvalidInput)
	}
	return nil
}
