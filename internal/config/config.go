package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Filter state persistence backends.
const (
	FilterBackendPostgres = "postgres"
	FilterBackendRedis    = "redis"
	FilterBackendNone     = "none"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_PORT"` specify the environment variable name.
// `default:""` provides a default value if the env var is not set.
// `required:"true"` makes an environment variable mandatory.
type Config struct {
	AppEnv      string `envconfig:"APP_ENV" default:"development"` // development, staging, production
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`      // debug, info, warn, error
	HttpServer  ServerConfig
	GrpcServer  GrpcServerConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	FilterState FilterStateConfig
	Catalog     CatalogConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port         string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"15s"`
	TimeoutIdle  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
}

// GrpcServerConfig holds gRPC server-specific configurations.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090"`
}

// PostgresConfig holds PostgreSQL database connection details.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	DBName   string `envconfig:"POSTGRES_DBNAME" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	Migrate  bool   `envconfig:"POSTGRES_MIGRATE" default:"true"` // Apply embedded migrations at startup
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// RedisConfig holds Redis connection details. Only used by the redis filter state backend.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// FilterStateConfig selects where the shopper's filter selection is persisted.
type FilterStateConfig struct {
	Backend      string        `envconfig:"FILTER_STATE_BACKEND" default:"postgres"`
	Key          string        `envconfig:"FILTER_STATE_KEY" default:"storefront:filters"`
	WriteTimeout time.Duration `envconfig:"FILTER_STATE_WRITE_TIMEOUT" default:"5s"`
}

// CatalogConfig controls the in-memory catalog snapshot.
type CatalogConfig struct {
	CacheTTL time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"1m"`
}

// Load initializes the configuration from environment variables.
// It should be called once during application startup.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express as tags.
func (c *Config) Validate() error {
	switch c.FilterState.Backend {
	case FilterBackendPostgres, FilterBackendRedis, FilterBackendNone:
	default:
		return fmt.Errorf("invalid FILTER_STATE_BACKEND %q: want %s, %s or %s",
			c.FilterState.Backend, FilterBackendPostgres, FilterBackendRedis, FilterBackendNone)
	}
	if c.FilterState.Backend != FilterBackendNone && c.FilterState.Key == "" {
		return fmt.Errorf("FILTER_STATE_KEY must not be empty")
	}
	if c.Catalog.CacheTTL < 0 {
		return fmt.Errorf("CATALOG_CACHE_TTL must not be negative")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
