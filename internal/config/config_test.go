package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 120, cfg.HTTP.TimeoutSecs)
	assert.Equal(t, 4, cfg.Harvest.Concurrency)
	assert.Equal(t, "lenient", cfg.Stakeholder.RegistryPolicy)
	assert.Equal(t, 50, cfg.Stakeholder.PauseEvery)
	assert.Equal(t, 10, cfg.Mtr.ProgressEvery)
	assert.Equal(t, "data", cfg.RefLoad.DataDir)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SINIR_STAKEHOLDER_REGISTRY_POLICY", "strict")
	t.Setenv("SINIR_HARVEST_CONCURRENCY", "8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "strict", cfg.Stakeholder.RegistryPolicy)
	assert.Equal(t, 8, cfg.Harvest.Concurrency)
}

func TestInitLogger(t *testing.T) {
	logger, err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	logger, err = InitLogger(LogConfig{Level: "not-a-level", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
