package testsupport

import (
	"os"
	"strconv"
	"testing"

	"github.com/joho/godotenv"

	"crimewatch/internal/adapters/config"
)

func init() {
	// .env.test is optional; CI passes the variables directly
	_ = godotenv.Load(".env.test")
}

// requireEnv skips the test unless every key is set
func requireEnv(t *testing.T, keys ...string) {
	t.Helper()

	var missing []string
	for _, key := range keys {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		t.Skipf("integration environment missing, set %v to run", missing)
	}
}

// PostgresConfigFromEnv returns Postgres settings or skips the test
func PostgresConfigFromEnv(t *testing.T) config.PostgresConfig {
	t.Helper()
	requireEnv(t, "POSTGRES_HOST", "POSTGRES_USER", "POSTGRES_DB")

	return config.PostgresConfig{
		Host:     os.Getenv("POSTGRES_HOST"),
		Port:     intValue("POSTGRES_PORT", 5432),
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Database: os.Getenv("POSTGRES_DB"),
		SSLMode:  valueWithDefault("POSTGRES_SSL_MODE", "disable"),
		MaxConns: 5,
	}
}

// ClickHouseConfigFromEnv returns ClickHouse settings or skips the test
func ClickHouseConfigFromEnv(t *testing.T) config.ClickHouseConfig {
	t.Helper()
	requireEnv(t, "CLICKHOUSE_HOST", "CLICKHOUSE_DB")

	return config.ClickHouseConfig{
		Host:     os.Getenv("CLICKHOUSE_HOST"),
		Port:     intValue("CLICKHOUSE_PORT", 9000),
		User:     valueWithDefault("CLICKHOUSE_USER", "default"),
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		Database: os.Getenv("CLICKHOUSE_DB"),
	}
}

// RedisConfigFromEnv returns Redis settings or skips the test
func RedisConfigFromEnv(t *testing.T) config.RedisConfig {
	t.Helper()
	requireEnv(t, "REDIS_HOST")

	return config.RedisConfig{
		Host:     os.Getenv("REDIS_HOST"),
		Port:     intValue("REDIS_PORT", 6379),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       intValue("REDIS_DB", 15),
	}
}

func valueWithDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func intValue(key string, fallback int) int {
	if val, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return val
	}
	return fallback
}
