// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jcmexdev/orders-service/internal/order-service/adapters/sqlstore"
	"github.com/jcmexdev/orders-service/internal/order-service/domain"
	"github.com/jcmexdev/orders-service/internal/pkg/broker"
)

type Config struct {
	Port        string
	APIToken    string
	ServiceName string
	LogLevel    string

	StoreDriver string
	SQLitePath  string
	DatabaseURL string

	// KafkaBrokers empty selects the in-process channel.
	KafkaBrokers []string
	KafkaGroupID string

	// RedisAddr empty disables Idempotency-Key replay.
	RedisAddr string

	OTLPEndpoint string

	StatusSet       domain.StatusSet
	ShutdownTimeout time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		Port:         getEnv("PORT", "8001"),
		APIToken:     getEnv("API_TOKEN", ""),
		ServiceName:  getEnv("SERVICE_NAME", "orders-api"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		StoreDriver:  getEnv("STORE_DRIVER", sqlstore.DriverSQLite),
		SQLitePath:   getEnv("SQLITE_PATH", "./data/orders.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		KafkaBrokers: broker.ParseBrokers(getEnv("KAFKA_BROKERS", "")),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "orders-api"),
		RedisAddr:    getEnv("REDIS_ADDR", ""),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	var errs []error

	if cfg.APIToken == "" {
		errs = append(errs, errors.New("API_TOKEN is required"))
	}

	switch cfg.StoreDriver {
	case sqlstore.DriverSQLite:
	case sqlstore.DriverPostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q",
			sqlstore.DriverSQLite, sqlstore.DriverPostgres, cfg.StoreDriver))
	}

	set, err := domain.StatusSetByName(getEnv("ORDER_STATUS_SET", domain.FullStatusSet.Name))
	if err != nil {
		errs = append(errs, fmt.Errorf("ORDER_STATUS_SET: %w", err))
	}
	cfg.StatusSet = set

	timeout, err := time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"))
	if err != nil || timeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be a positive duration"))
	}
	cfg.ShutdownTimeout = timeout

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// StoreDSN is the data source handed to sqlstore.Open.
func (c Config) StoreDSN() string {
	if c.StoreDriver == sqlstore.DriverPostgres {
		return c.DatabaseURL
	}
	return c.SQLitePath
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
