package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "does-not-exist.toml")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "deepresearch", cfg.App.Name)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "research.session.run", cfg.RabbitMQ.ResearchQueue)
	assert.Equal(t, 900, cfg.Research.PipelineTimeoutSeconds)
	assert.Equal(t, 1, cfg.Research.WorkerConcurrency)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "does-not-exist.toml")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("LLM_MODEL", "o3-deep-research")
	t.Setenv("RABBITMQ_RESEARCH_QUEUE", "jobs.test")
	t.Setenv("RESEARCH_WORKER_CONCURRENCY", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "o3-deep-research", cfg.LLM.Model)
	assert.Equal(t, "jobs.test", cfg.RabbitMQ.ResearchQueue)
	assert.Equal(t, 4, cfg.Research.WorkerConcurrency)
}

func TestLoadInvalidIntFallsBack(t *testing.T) {
	t.Setenv("CONFIG_FILE", "does-not-exist.toml")
	t.Setenv("APP_PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.App.Port)
}

func TestModelCostsJSONOverride(t *testing.T) {
	t.Setenv("CONFIG_FILE", "does-not-exist.toml")
	t.Setenv("MODEL_COSTS_JSON", `{"o3-deep-research":{"input":10,"output":40},"default":{"input":2,"output":8}}`)

	cfg, err := Load()
	require.NoError(t, err)

	require.Contains(t, cfg.Research.Costs, "o3-deep-research")
	assert.Equal(t, 10.0, cfg.Research.Costs["o3-deep-research"].Input)
	assert.Equal(t, 40.0, cfg.Research.Costs["o3-deep-research"].Output)
	require.Contains(t, cfg.Research.Costs, "default")
	assert.Equal(t, 2.0, cfg.Research.Costs["default"].Input)
}

func TestModelCostsJSONMalformedIgnored(t *testing.T) {
	t.Setenv("CONFIG_FILE", "does-not-exist.toml")
	t.Setenv("MODEL_COSTS_JSON", `{not json`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Research.Costs)
}

func TestMySQLDSN(t *testing.T) {
	cfg := defaultConfig()
	cfg.MySQL.User = "app"
	cfg.MySQL.Password = "secret"
	cfg.MySQL.Host = "db"
	cfg.MySQL.Port = 3307
	cfg.MySQL.DB = "research"
	cfg.MySQL.Params = "parseTime=true"

	assert.Equal(t, "app:secret@tcp(db:3307)/research?parseTime=true", cfg.MySQLDSN())
}

func TestHTTPAddr(t *testing.T) {
	cfg := defaultConfig()
	cfg.App.Host = "127.0.0.1"
	cfg.App.Port = 8081
	assert.Equal(t, "127.0.0.1:8081", cfg.HTTPAddr())
}
