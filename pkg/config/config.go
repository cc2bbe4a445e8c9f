package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/apilibrary/apilibrary/pkg/blob"
	"github.com/apilibrary/apilibrary/pkg/registry"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Registry      RegistryConfig      `yaml:"registry"`
	Blob          BlobConfig          `yaml:"blob"`
	Engine        EngineConfig        `yaml:"engine"`
	Export        ExportConfig        `yaml:"export"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds the metrics/admin listener configuration
type ServerConfig struct {
	MetricsPort     string        `yaml:"metrics_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RegistryConfig selects and tunes the catalog backend
type RegistryConfig struct {
	// Type is "memory" or "postgres"
	Type        string        `yaml:"type"`
	PostgresURL string        `yaml:"postgres_url"`
	MaxConns    int           `yaml:"max_conns"`
	MinConns    int           `yaml:"min_conns"`
	Timeout     time.Duration `yaml:"timeout"`

	// CacheSize enables the in-process record cache when > 0
	CacheSize int `yaml:"cache_size"`
}

// BlobConfig selects and tunes the object store backend
type BlobConfig struct {
	// Type is "filesystem", "s3" or "memory"
	Type           string `yaml:"type"`
	FilesystemRoot string `yaml:"filesystem_root"`

	S3Endpoint     string `yaml:"s3_endpoint"`
	S3Region       string `yaml:"s3_region"`
	S3Bucket       string `yaml:"s3_bucket"`
	S3AccessKey    string `yaml:"s3_access_key"`
	S3SecretKey    string `yaml:"s3_secret_key"`
	S3UsePathStyle bool   `yaml:"s3_use_path_style"`
}

// EngineConfig tunes artifact creation and storage layout
type EngineConfig struct {
	GroupPrefix string `yaml:"group_prefix"`
	SeedVersion string `yaml:"seed_version"`
	ImagePrefix string `yaml:"image_prefix"`
	MavenDir    string `yaml:"maven_dir"`
}

// ExportConfig tunes the catalog exporter and its snapshot cache
type ExportConfig struct {
	OutputKey    string `yaml:"output_key"`
	BoundaryTerm string `yaml:"boundary_term"`

	// Schedule is a cron expression for periodic exports; empty disables
	// the schedule and exports run only on catalog changes.
	Schedule string `yaml:"schedule"`

	RedisURL      string        `yaml:"redis_url"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			MetricsPort:     "9090",
			ShutdownTimeout: 30 * time.Second,
		},
		Registry: RegistryConfig{
			Type:     "memory",
			MaxConns: 25,
			MinConns: 5,
			Timeout:  5 * time.Second,
		},
		Blob: BlobConfig{
			Type:           "filesystem",
			FilesystemRoot: "/var/lib/apilibrary",
			S3Region:       "us-east-1",
		},
		Engine: EngineConfig{
			GroupPrefix: "edu.wpi.cs3733.",
			SeedVersion: "1.0.0",
			ImagePrefix: "img",
			MavenDir:    "releases",
		},
		Export: ExportConfig{
			OutputKey:    "apis.json",
			BoundaryTerm: "B",
			RedisDB:      0,
			CacheTTL:     time.Hour,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "apilibrary",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file,
// and APILIB_* environment variables, in that order of precedence (env
// wins). Pass an empty path to skip the file layer.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.MetricsPort = getEnv("APILIB_METRICS_PORT", c.Server.MetricsPort)
	c.Server.ShutdownTimeout = getEnvDuration("APILIB_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Registry.Type = getEnv("APILIB_REGISTRY_TYPE", c.Registry.Type)
	c.Registry.PostgresURL = getEnv("APILIB_POSTGRES_URL", c.Registry.PostgresURL)
	c.Registry.MaxConns = getEnvInt("APILIB_POSTGRES_MAX_CONNS", c.Registry.MaxConns)
	c.Registry.MinConns = getEnvInt("APILIB_POSTGRES_MIN_CONNS", c.Registry.MinConns)
	c.Registry.Timeout = getEnvDuration("APILIB_POSTGRES_TIMEOUT", c.Registry.Timeout)
	c.Registry.CacheSize = getEnvInt("APILIB_REGISTRY_CACHE_SIZE", c.Registry.CacheSize)

	c.Blob.Type = getEnv("APILIB_BLOB_TYPE", c.Blob.Type)
	c.Blob.FilesystemRoot = getEnv("APILIB_FILESYSTEM_ROOT", c.Blob.FilesystemRoot)
	c.Blob.S3Endpoint = getEnv("APILIB_S3_ENDPOINT", c.Blob.S3Endpoint)
	c.Blob.S3Region = getEnv("APILIB_S3_REGION", c.Blob.S3Region)
	c.Blob.S3Bucket = getEnv("APILIB_S3_BUCKET", c.Blob.S3Bucket)
	c.Blob.S3AccessKey = getEnv("APILIB_S3_ACCESS_KEY", c.Blob.S3AccessKey)
	c.Blob.S3SecretKey = getEnv("APILIB_S3_SECRET_KEY", c.Blob.S3SecretKey)
	c.Blob.S3UsePathStyle = getEnvBool("APILIB_S3_USE_PATH_STYLE", c.Blob.S3UsePathStyle)

	c.Engine.GroupPrefix = getEnv("APILIB_GROUP_PREFIX", c.Engine.GroupPrefix)
	c.Engine.SeedVersion = getEnv("APILIB_SEED_VERSION", c.Engine.SeedVersion)
	c.Engine.ImagePrefix = getEnv("APILIB_IMAGE_PREFIX", c.Engine.ImagePrefix)
	c.Engine.MavenDir = getEnv("APILIB_MAVEN_DIR", c.Engine.MavenDir)

	c.Export.OutputKey = getEnv("APILIB_EXPORT_KEY", c.Export.OutputKey)
	c.Export.BoundaryTerm = getEnv("APILIB_EXPORT_BOUNDARY_TERM", c.Export.BoundaryTerm)
	c.Export.Schedule = getEnv("APILIB_EXPORT_SCHEDULE", c.Export.Schedule)
	c.Export.RedisURL = getEnv("APILIB_REDIS_URL", c.Export.RedisURL)
	c.Export.RedisPassword = getEnv("APILIB_REDIS_PASSWORD", c.Export.RedisPassword)
	c.Export.RedisDB = getEnvInt("APILIB_REDIS_DB", c.Export.RedisDB)
	c.Export.CacheTTL = getEnvDuration("APILIB_EXPORT_CACHE_TTL", c.Export.CacheTTL)

	c.Observability.LogLevel = getEnv("APILIB_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.MetricsEnabled = getEnvBool("APILIB_METRICS_ENABLED", c.Observability.MetricsEnabled)
	c.Observability.OTelEnabled = getEnvBool("APILIB_OTEL_ENABLED", c.Observability.OTelEnabled)
	c.Observability.OTelEndpoint = getEnv("APILIB_OTEL_ENDPOINT", c.Observability.OTelEndpoint)
	c.Observability.OTelServiceName = getEnv("APILIB_OTEL_SERVICE_NAME", c.Observability.OTelServiceName)
	c.Observability.OTelServiceVersion = getEnv("APILIB_OTEL_SERVICE_VERSION", c.Observability.OTelServiceVersion)
	c.Observability.OTelInsecure = getEnvBool("APILIB_OTEL_INSECURE", c.Observability.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.MetricsPort == "" {
		return fmt.Errorf("metrics port is required")
	}

	switch c.Registry.Type {
	case "memory":
	case "postgres":
		if c.Registry.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres registry")
		}
	default:
		return fmt.Errorf("invalid registry type: %s (must be memory or postgres)", c.Registry.Type)
	}

	switch c.Blob.Type {
	case "memory":
	case "filesystem":
		if c.Blob.FilesystemRoot == "" {
			return fmt.Errorf("filesystem root is required for filesystem blob store")
		}
	case "s3":
		if c.Blob.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 blob store")
		}
	default:
		return fmt.Errorf("invalid blob store type: %s (must be memory, filesystem, or s3)", c.Blob.Type)
	}

	if c.Engine.GroupPrefix == "" {
		return fmt.Errorf("group prefix is required")
	}
	if c.Export.BoundaryTerm < "A" || c.Export.BoundaryTerm > "D" || len(c.Export.BoundaryTerm) != 1 {
		return fmt.Errorf("invalid export boundary term: %s (must be A, B, C, or D)", c.Export.BoundaryTerm)
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// S3 returns the blob settings as the S3 store's configuration type.
func (c *BlobConfig) S3() blob.S3Config {
	return blob.S3Config{
		Endpoint:     c.S3Endpoint,
		Region:       c.S3Region,
		Bucket:       c.S3Bucket,
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
		UsePathStyle: c.S3UsePathStyle,
	}
}

// SQL returns the registry settings as the SQL backend's configuration type.
func (c *RegistryConfig) SQL() registry.SQLConfig {
	return registry.SQLConfig{
		Driver:   "postgres",
		URL:      c.PostgresURL,
		MaxConns: c.MaxConns,
		MinConns: c.MinConns,
		Timeout:  c.Timeout,
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
