// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.kbase/config.yaml or ./config.yaml)
//  3. Default values
//
// Categories:
//   - AI: provider models for classification and embeddings
//   - Storage: PostgreSQL connection for documents and chunk vectors
//   - Ingest: chunk size, batch concurrency, external-call rate limit
//   - HTTP: listen address for serve mode
//   - Tracing: OTLP exporter endpoint
//
// Sensitive values (the PostgreSQL password) are masked in String() and
// MarshalJSON. Validation is fail-fast with sentinel errors so callers can
// match with errors.Is.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidHTTPAddr indicates the HTTP listen address is empty.
	ErrInvalidHTTPAddr = errors.New("invalid http address")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates an unsupported sslmode value.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidChunkSize indicates the chunk size is out of range.
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrInvalidConcurrency indicates the ingest concurrency is out of range.
	ErrInvalidConcurrency = errors.New("invalid ingest concurrency")

	// ErrInvalidRateLimit indicates the AI call rate limit is not positive.
	ErrInvalidRateLimit = errors.New("invalid AI rate limit")

	// ErrInvalidEmbedderModel indicates the embedder model name is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidClassifierModel indicates the classifier model name is empty.
	ErrInvalidClassifierModel = errors.New("invalid classifier model")
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model. The chunk
	// schema's vector column is dimensionless, so switching to a model
	// with a different embedding width needs no migration.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultClassifierModel is the default model for document
	// classification (tiers/audience/tags/summary inference).
	DefaultClassifierModel = "googleai/gemini-2.5-flash"

	// DefaultChunkSize is the default embedding chunk width in characters.
	DefaultChunkSize = 900

	// DefaultIngestConcurrency bounds how many batch items are processed
	// at once.
	DefaultIngestConcurrency = 2
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON. When adding new
// secrets, update MarshalJSON as well.
type Config struct {
	// HTTP server (serve mode)
	HTTPAddr string `mapstructure:"http_addr" json:"http_addr"`

	// Storage configuration
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// AI models
	EmbedderModel   string `mapstructure:"embedder_model" json:"embedder_model"`
	ClassifierModel string `mapstructure:"classifier_model" json:"classifier_model"`

	// Ingestion tuning
	ChunkSize         int     `mapstructure:"chunk_size" json:"chunk_size"`
	IngestConcurrency int     `mapstructure:"ingest_concurrency" json:"ingest_concurrency"`
	AIRateLimit       float64 `mapstructure:"ai_rate_limit" json:"ai_rate_limit"` // external AI calls per second

	// Transcription (optional; uses application default credentials when empty)
	GoogleCredentialsFile string `mapstructure:"google_credentials_file" json:"google_credentials_file"`

	// Tracing configuration
	TracingEnabled bool   `mapstructure:"tracing_enabled" json:"tracing_enabled"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName    string `mapstructure:"service_name" json:"service_name"`
	Environment    string `mapstructure:"environment" json:"environment"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".kbase")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("http_addr", "127.0.0.1:4000")

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "kbase")
	viper.SetDefault("postgres_password", "kbase_dev_password")
	viper.SetDefault("postgres_db_name", "kbase")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("classifier_model", DefaultClassifierModel)

	viper.SetDefault("chunk_size", DefaultChunkSize)
	viper.SetDefault("ingest_concurrency", DefaultIngestConcurrency)
	viper.SetDefault("ai_rate_limit", 2.0)

	viper.SetDefault("tracing_enabled", false)
	viper.SetDefault("otlp_endpoint", "localhost:4318")
	viper.SetDefault("service_name", "kbase")
	viper.SetDefault("environment", "dev")
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly by the Genkit plugin, not via Viper.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("http_addr", "KBASE_HTTP_ADDR")
	mustBind("embedder_model", "KBASE_EMBEDDER_MODEL")
	mustBind("classifier_model", "KBASE_CLASSIFIER_MODEL")
	mustBind("google_credentials_file", "GOOGLE_APPLICATION_CREDENTIALS")
	mustBind("tracing_enabled", "KBASE_TRACING_ENABLED")
	mustBind("otlp_endpoint", "KBASE_OTLP_ENDPOINT")
}

// parseDatabaseURL overrides the PostgreSQL settings from DATABASE_URL when
// set. The URL form wins over individual fields.
func (c *Config) parseDatabaseURL() error {
	raw := os.Getenv("DATABASE_URL")
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed DATABASE_URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("unsupported DATABASE_URL scheme %q", u.Scheme)
	}

	c.PostgresHost = u.Hostname()
	if p := u.Port(); p != "" {
		if _, err := fmt.Sscanf(p, "%d", &c.PostgresPort); err != nil {
			return fmt.Errorf("malformed DATABASE_URL port %q: %w", p, err)
		}
	}
	if u.User != nil {
		c.PostgresUser = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.PostgresPassword = pw
		}
	}
	if db := filepath.Base(u.Path); db != "." && db != "/" {
		c.PostgresDBName = db
	}
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.PostgresSSLMode = mode
	}
	return nil
}

// ConnString returns the PostgreSQL connection URL.
func (c *Config) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:   fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:   "/" + c.PostgresDBName,
	}
	q := url.Values{}
	q.Set("sslmode", c.PostgresSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked to prevent substring matching; longer secrets keep the first and
// last two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
