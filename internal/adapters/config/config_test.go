package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crimewatch/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ARTIFACT_BACKEND", "file")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2020, cfg.Trainer.FromYear)
	assert.Equal(t, 2024, cfg.Trainer.ToYear)
	assert.Equal(t, 50, cfg.Trainer.MinLabelSupport)
	assert.Equal(t, []int{100, 200, 300}, cfg.Trainer.Candidates)
	assert.Equal(t, int64(42), cfg.Trainer.Seed)
	assert.InDelta(t, 0.2, cfg.Trainer.TestRatio, 1e-12)
	assert.Equal(t, 5, cfg.Trainer.Folds)
	assert.Equal(t, "IN", cfg.Alerts.DefaultRegion)
}

func TestLoad_RedisBackendNeedsRedis(t *testing.T) {
	t.Setenv("ARTIFACT_BACKEND", "redis")
	t.Setenv("REDIS_HOST", "")

	_, err := Load()
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("ARTIFACT_BACKEND", "s3")

	_, err := Load()
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "ARTIFACT_BACKEND", ve.Field)
}

func TestRequireServer(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.RequireServer())

	cfg.Postgres.Host = "localhost"
	assert.NoError(t, cfg.RequireServer())
}

func TestPostgresDSN(t *testing.T) {
	c := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=d sslmode=disable", c.DSN())
}
