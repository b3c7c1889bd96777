package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported values of DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config is the full runtime configuration of the service.
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	RabbitMQ   RabbitMQConfig
	Telemetry  TelemetryConfig
	Pagination PaginationConfig
}

// AppConfig holds the HTTP listener and startup settings.
type AppConfig struct {
	Port         string
	Environment  string
	SeedProducts bool
}

// DatabaseConfig selects the product store and its connection pool limits.
// DSN falls back to a per-driver default when empty.
type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RabbitMQConfig holds the broker settings. An empty URL disables events.
type RabbitMQConfig struct {
	URL        string
	Exchange   string
	Queue      string
	BindingKey string
}

// TelemetryConfig holds logging and OpenTelemetry settings. An empty
// Endpoint disables OTLP export; Prometheus metrics are always served.
type TelemetryConfig struct {
	Endpoint    string
	ServiceName string
	Environment string
	LogLevel    string
}

// PaginationConfig bounds the page size of product listings.
type PaginationConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// Load reads an optional .env file and then the environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SEED_PRODUCTS", false)

	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DATABASE_DSN", "")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")

	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_EXCHANGE", "catalog")
	v.SetDefault("RABBITMQ_QUEUE", "catalog_events")
	v.SetDefault("RABBITMQ_BINDING_KEY", "product.#")

	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_SERVICE_NAME", "catalog-api")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("PAGE_DEFAULT_LIMIT", 10)
	v.SetDefault("PAGE_MAX_LIMIT", 100)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Port:         v.GetString("APP_PORT"),
			Environment:  v.GetString("APP_ENV"),
			SeedProducts: v.GetBool("SEED_PRODUCTS"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("DB_DRIVER"),
			DSN:             v.GetString("DATABASE_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:        v.GetString("RABBITMQ_URL"),
			Exchange:   v.GetString("RABBITMQ_EXCHANGE"),
			Queue:      v.GetString("RABBITMQ_QUEUE"),
			BindingKey: v.GetString("RABBITMQ_BINDING_KEY"),
		},
		Telemetry: TelemetryConfig{
			Endpoint:    v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName: v.GetString("OTEL_SERVICE_NAME"),
			Environment: v.GetString("APP_ENV"),
			LogLevel:    v.GetString("LOG_LEVEL"),
		},
		Pagination: PaginationConfig{
			DefaultLimit: v.GetInt("PAGE_DEFAULT_LIMIT"),
			MaxLimit:     v.GetInt("PAGE_MAX_LIMIT"),
		},
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = defaultDSN(cfg.Database.Driver)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultDSN(driver string) string {
	switch driver {
	case DriverPostgres:
		return "host=127.0.0.1 user=postgres password=postgres dbname=catalog port=5432 sslmode=disable"
	case DriverSQLite:
		return "file:catalog.db?_foreign_keys=1"
	}
	return ""
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Pagination.DefaultLimit < 1 {
		return fmt.Errorf("PAGE_DEFAULT_LIMIT must be positive, got %d", c.Pagination.DefaultLimit)
	}
	if c.Pagination.MaxLimit < c.Pagination.DefaultLimit {
		return fmt.Errorf("PAGE_MAX_LIMIT (%d) must not be below PAGE_DEFAULT_LIMIT (%d)",
			c.Pagination.MaxLimit, c.Pagination.DefaultLimit)
	}
	return nil
}
