package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "https://api.hyperliquid.xyz/info", cfg.Upstream.APIURL)
	assert.Equal(t, 10*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 4, cfg.Upstream.RetryBudget)
	assert.Equal(t, time.Second, cfg.Upstream.RetryBaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Refresh.Interval)
	assert.Equal(t, 12, cfg.Refresh.ResolverWorkers)
	assert.Equal(t, 6, cfg.Refresh.CandleGate)
	assert.Empty(t, cfg.Cache.RedisAddr)
	assert.Equal(t, 120, cfg.Security.RateLimitRPM)
	assert.NotEmpty(t, cfg.Security.CORSAllowedOrigins)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HIP3_ENV", "prod")
	t.Setenv("HIP3_HTTP_ADDR", ":9999")
	t.Setenv("HIP3_API_RETRIES", "2")
	t.Setenv("HIP3_REFRESH_INTERVAL", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, 2, cfg.Upstream.RetryBudget)
	assert.Equal(t, 5*time.Second, cfg.Refresh.Interval)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("HIP3_RESOLVER_WORKERS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HIP3_RESOLVER_WORKERS")
}
