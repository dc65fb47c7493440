package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends for raw import files.
const (
	StorageBackendPostgres = "postgres"
	StorageBackendS3       = "s3"
)

// Config struct to hold the configuration settings
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	HTTP          HTTPConfig          `yaml:"http"`
	Import        ImportConfig        `yaml:"import"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig holds NATS configuration. An empty URL keeps lifecycle events in process.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// HTTPConfig holds the API server configuration.
type HTTPConfig struct {
	Address        string   `yaml:"address"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateLimit      float64  `yaml:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst"`
}

// ImportConfig bounds the import pipeline.
type ImportConfig struct {
	MaxRows        int           `yaml:"max_rows"`
	MaxFileBytes   int64         `yaml:"max_file_bytes"`
	MaxAttempts    int           `yaml:"max_attempts"`
	StaleAfter     time.Duration `yaml:"stale_after"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	SweepBatchSize int           `yaml:"sweep_batch_size"`
	Workers        int           `yaml:"workers"`
	AutoExecute    bool          `yaml:"auto_execute"`
}

// StorageConfig selects where raw files are kept.
type StorageConfig struct {
	Backend string   `yaml:"backend"`
	S3      S3Config `yaml:"s3"`
}

// S3Config holds S3-compatible object store settings.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	MetricsAddress string `yaml:"metrics_address"`
	Environment    string `yaml:"environment"`
	LogLevel       string `yaml:"log_level"`
}

// LoadConfig loads the configuration from a YAML file, falling back to environment
// variables when the file does not exist. A .env file is loaded first when present.
func LoadConfig(filename string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Environment only.
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides file values with environment variables when present.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("METRICS_ADDRESS"); v != "" {
		cfg.Observability.MetricsAddress = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Observability.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("S3_ACCESS_KEY"); v != "" {
		cfg.Storage.S3.AccessKey = v
	}
	if v := os.Getenv("S3_SECRET_KEY"); v != "" {
		cfg.Storage.S3.SecretKey = v
	}
	if v := os.Getenv("S3_USE_SSL"); v != "" {
		cfg.Storage.S3.UseSSL = v == "true"
	}
	if v := os.Getenv("S3_PREFIX"); v != "" {
		cfg.Storage.S3.Prefix = v
	}
	if v := os.Getenv("IMPORT_AUTO_EXECUTE"); v != "" {
		cfg.Import.AutoExecute = v == "true"
	}

	var err error
	if cfg.Import.MaxRows, err = envInt("IMPORT_MAX_ROWS", cfg.Import.MaxRows); err != nil {
		return err
	}
	if cfg.Import.MaxAttempts, err = envInt("IMPORT_MAX_ATTEMPTS", cfg.Import.MaxAttempts); err != nil {
		return err
	}
	if cfg.Import.Workers, err = envInt("IMPORT_WORKERS", cfg.Import.Workers); err != nil {
		return err
	}
	if v := os.Getenv("IMPORT_MAX_FILE_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid IMPORT_MAX_FILE_BYTES value: %v", err)
		}
		cfg.Import.MaxFileBytes = n
	}
	if v := os.Getenv("IMPORT_STALE_AFTER"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid IMPORT_STALE_AFTER value: %v", err)
		}
		cfg.Import.StaleAfter = d
	}
	return nil
}

func envInt(key string, current int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return current, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %v", key, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.RateLimit <= 0 {
		c.HTTP.RateLimit = 10
	}
	if c.HTTP.RateBurst <= 0 {
		c.HTTP.RateBurst = 20
	}
	if c.Import.MaxRows <= 0 {
		c.Import.MaxRows = 10000
	}
	if c.Import.MaxFileBytes <= 0 {
		c.Import.MaxFileBytes = 10 << 20
	}
	if c.Import.MaxAttempts <= 0 {
		c.Import.MaxAttempts = 3
	}
	if c.Import.StaleAfter <= 0 {
		c.Import.StaleAfter = 10 * time.Minute
	}
	if c.Import.SweepInterval <= 0 {
		c.Import.SweepInterval = time.Minute
	}
	if c.Import.SweepBatchSize <= 0 {
		c.Import.SweepBatchSize = 100
	}
	if c.Import.Workers <= 0 {
		c.Import.Workers = 10
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageBackendPostgres
	}
	if c.Storage.S3.Region == "" {
		c.Storage.S3.Region = "us-east-1"
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = "production"
	}
}

// Validate reports settings the process cannot start with.
func (c *Config) Validate() error {
	var problems []string
	if c.Postgres.DSN == "" {
		problems = append(problems, "postgres dsn is required (DATABASE_URL)")
	}
	switch c.Storage.Backend {
	case StorageBackendPostgres:
	case StorageBackendS3:
		if c.Storage.S3.Bucket == "" {
			problems = append(problems, "storage.s3.bucket is required for the s3 backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.Import.StaleAfter < time.Minute {
		problems = append(problems, "import.stale_after must be at least 1m")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// LogLevel returns the configured slog level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Observability.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// IsDevelopment reports whether the process runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.Observability.Environment == "development"
}
