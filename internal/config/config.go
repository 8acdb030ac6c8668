// Package config centralises configuration parsing for the enrollment service.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Catalog sources.
const (
	CatalogBuiltin  = "builtin"
	CatalogFile     = "file"
	CatalogPostgres = "postgres"
)

// Config captures runtime configuration values for the API and the audit consumer.
type Config struct {
	HTTPAddress       string `env:"HTTP_ADDRESS" envDefault:":8080"`
	MetricsAddress    string `env:"METRICS_ADDRESS" envDefault:":9102"`
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	CatalogSource   string `env:"CATALOG_SOURCE" envDefault:"builtin"`
	CatalogFile     string `env:"CATALOG_FILE"`
	PostgresURL     string `env:"POSTGRES_URL"`
	EnforceCapacity bool   `env:"ENFORCE_CAPACITY" envDefault:"false"`

	KafkaBrokers        []string      `env:"KAFKA_BROKERS" envSeparator:","`
	RosterTopic         string        `env:"ROSTER_TOPIC" envDefault:"roster_events"`
	ConsumerGroupID     string        `env:"CONSUMER_GROUP_ID" envDefault:"roster-audit"`
	OutboxBuffer        int           `env:"OUTBOX_BUFFER" envDefault:"256"`
	OutboxBatchSize     int           `env:"OUTBOX_BATCH_SIZE" envDefault:"25"`
	OutboxFlushInterval time.Duration `env:"OUTBOX_FLUSH_INTERVAL" envDefault:"1s"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// Load reads an optional .env file, then the environment, and validates the result.
// Variables already set in the environment win over the .env file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv parses and validates the process environment.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.KafkaBrokers = splitAndTrim(cfg.KafkaBrokers)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.CatalogSource {
	case CatalogBuiltin:
	case CatalogFile:
		if strings.TrimSpace(c.CatalogFile) == "" {
			return errors.New("CATALOG_FILE is required when CATALOG_SOURCE=file")
		}
	case CatalogPostgres:
		if strings.TrimSpace(c.PostgresURL) == "" {
			return errors.New("POSTGRES_URL is required when CATALOG_SOURCE=postgres")
		}
	default:
		return fmt.Errorf("CATALOG_SOURCE must be one of builtin, file, postgres; got %q", c.CatalogSource)
	}
	if c.OutboxBuffer <= 0 || c.OutboxBatchSize <= 0 {
		return errors.New("OUTBOX_BUFFER and OUTBOX_BATCH_SIZE must be positive")
	}
	if c.OutboxFlushInterval <= 0 {
		return errors.New("OUTBOX_FLUSH_INTERVAL must be positive")
	}
	return nil
}

// PublishingEnabled reports whether roster events should go to Kafka.
func (c Config) PublishingEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func splitAndTrim(values []string) []string {
	out := make([]string, 0, len(values))
	for _, part := range values {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
