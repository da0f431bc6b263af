package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 50000, cfg.MaxPatientsPerJob)
	assert.Equal(t, 1800, cfg.JobTimeoutSeconds)
	assert.Equal(t, 2, cfg.MaxConcurrentJobs)
	assert.Equal(t, 512, cfg.JobMaxMemoryMB)
	assert.Equal(t, 300, cfg.JobMaxCPUSeconds)
	assert.Equal(t, 600, cfg.JobMaxRuntimeSeconds)
	assert.Equal(t, 1000, cfg.JobBatchSize)
	assert.Equal(t, 100, cfg.RateLimitRPS)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, 3600, cfg.CacheTTLSeconds)
	assert.Equal(t, "medgen-results", cfg.MinioBucket)
	assert.Equal(t, "output", cfg.OutputDir)
	assert.False(t, cfg.Debug)
	assert.Empty(t, cfg.APIKeys)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_PATIENTS_PER_JOB", "2500")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("DEBUG", "1")
	t.Setenv("API_KEY", "alpha, beta,,gamma")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 2500, cfg.MaxPatientsPerJob)
	assert.False(t, cfg.CacheEnabled)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, cfg.APIKeys)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestDebugCORSFallback(t *testing.T) {
	t.Setenv("DEBUG", "true")
	t.Setenv("CORS_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestBadIntFallsBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.RateLimitRPS)
}
