package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"crimewatch/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	ErrorTracking ErrorTrackingConfig
	Artifacts     ArtifactConfig
	Dataset       DatasetConfig
	Trainer       TrainerConfig
	ONNX          ONNXConfig
	Alerts        AlertsConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"crimewatch"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
}

type HTTPConfig struct {
	Port            int           `envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
	RateLimitRPS    float64       `envconfig:"HTTP_RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst  int           `envconfig:"HTTP_RATE_LIMIT_BURST" default:"100"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"crimewatch"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"crimewatch"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func (c PostgresConfig) Enabled() bool { return c.Host != "" }

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"crimewatch"`
}

func (c ClickHouseConfig) Enabled() bool { return c.Host != "" }

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c RedisConfig) Enabled() bool { return c.Host != "" }

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"crimewatch"`
}

func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// ArtifactConfig selects where model bundles live
type ArtifactConfig struct {
	Backend     string `envconfig:"ARTIFACT_BACKEND" default:"file"` // file | redis
	Dir         string `envconfig:"ARTIFACT_DIR" default:"models"`
	RedisPrefix string `envconfig:"ARTIFACT_REDIS_PREFIX" default:"crimewatch:bundle"`
}

type DatasetConfig struct {
	Path string `envconfig:"DATASET_PATH" default:"data/crime_dataset_india.csv"`
}

// TrainerConfig carries the knobs of the offline training pipeline
type TrainerConfig struct {
	FromYear         int     `envconfig:"TRAINER_FROM_YEAR" default:"2020"`
	ToYear           int     `envconfig:"TRAINER_TO_YEAR" default:"2024"`
	MinLabelSupport  int     `envconfig:"TRAINER_MIN_LABEL_SUPPORT" default:"50"`
	Candidates       []int   `envconfig:"TRAINER_CANDIDATES" default:"100,200,300"`
	TestRatio        float64 `envconfig:"TRAINER_TEST_RATIO" default:"0.2"`
	Folds            int     `envconfig:"TRAINER_FOLDS" default:"5"`
	Seed             int64   `envconfig:"TRAINER_SEED" default:"42"`
	Workers          int     `envconfig:"TRAINER_WORKERS" default:"0"`
	AllowSingleClass bool    `envconfig:"TRAINER_ALLOW_SINGLE_CLASS" default:"false"`
}

type ONNXConfig struct {
	LibraryPath string `envconfig:"ONNX_LIBRARY_PATH"`
}

type AlertsConfig struct {
	DefaultRegion string `envconfig:"ALERTS_PHONE_REGION" default:"IN"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Artifacts.Backend {
	case "file", "redis":
	default:
		return errors.NewValidationError("ARTIFACT_BACKEND", "must be file or redis", c.Artifacts.Backend)
	}
	if c.Artifacts.Backend == "redis" && !c.Redis.Enabled() {
		return errors.NewValidationError("REDIS_HOST", "required when ARTIFACT_BACKEND=redis", "")
	}
	if c.Trainer.FromYear > c.Trainer.ToYear {
		return errors.NewValidationError("TRAINER_FROM_YEAR", "must not exceed TRAINER_TO_YEAR", c.Trainer.FromYear)
	}
	if len(c.Trainer.Candidates) == 0 {
		return errors.NewValidationError("TRAINER_CANDIDATES", "at least one forest size required", "")
	}
	return nil
}

// RequireServer checks the settings the HTTP server cannot run without
func (c *Config) RequireServer() error {
	if !c.Postgres.Enabled() {
		return errors.NewValidationError("POSTGRES_HOST", "required for the API server", "")
	}
	return nil
}
