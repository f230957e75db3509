package testsupport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "localhost")
	t.Setenv("POSTGRES_USER", "user")
	t.Setenv("POSTGRES_DB", "db")
	t.Setenv("POSTGRES_PORT", "5543")

	t.Setenv("CLICKHOUSE_HOST", "click")
	t.Setenv("CLICKHOUSE_DB", "analytics")
	t.Setenv("CLICKHOUSE_PORT", "8123")

	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "2")

	pg := PostgresConfigFromEnv(t)
	assert.Equal(t, "localhost", pg.Host)
	assert.Equal(t, 5543, pg.Port)
	assert.Equal(t, "disable", pg.SSLMode)

	ch := ClickHouseConfigFromEnv(t)
	assert.Equal(t, "click", ch.Host)
	assert.Equal(t, 8123, ch.Port)
	assert.Equal(t, "default", ch.User)

	rd := RedisConfigFromEnv(t)
	assert.Equal(t, "redis:6380", rd.Addr())
	assert.Equal(t, 2, rd.DB)
}

func TestIntValue_FallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_PORT", "not-a-number")
	assert.Equal(t, 42, intValue("SOME_PORT", 42))
}
