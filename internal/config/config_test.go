package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequired sets the minimum environment for Load to pass validation.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MARISK_DATABASE_URL", "postgres://localhost:5432/marisk")
	t.Setenv("MARISK_INTA_BASE_URL", "https://inta.example.com")
	t.Setenv("MARISK_INTA_TOKEN", "token-a")
	t.Setenv("MARISK_INTB_BASE_URL", "https://intb.example.com")
	t.Setenv("MARISK_INTB_TOKEN", "token-b")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 150*time.Second, cfg.UpstreamBulkTimeout)
	assert.Equal(t, 8, cfg.Fanout)
	assert.Equal(t, int64(1*1024*1024), cfg.MaxRequestBodyBytes)
	assert.True(t, cfg.RateLimitEnabled)
	assert.False(t, cfg.MCPEnabled)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.APIKeyHashes)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("MARISK_PORT", "9090")
	t.Setenv("MARISK_UPSTREAM_BULK_TIMEOUT", "4m")
	t.Setenv("MARISK_FANOUT", "16")
	t.Setenv("MARISK_RATE_LIMIT_ENABLED", "false")
	t.Setenv("MARISK_MCP_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 4*time.Minute, cfg.UpstreamBulkTimeout)
	assert.Equal(t, 16, cfg.Fanout)
	assert.False(t, cfg.RateLimitEnabled)
	assert.True(t, cfg.MCPEnabled)
}

func TestLoadUnparseableValueFallsBack(t *testing.T) {
	setRequired(t)
	t.Setenv("MARISK_PORT", "abc")
	t.Setenv("MARISK_READ_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
}

func TestValidateRequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"missing database", "MARISK_DATABASE_URL"},
		{"missing provider A url", "MARISK_INTA_BASE_URL"},
		{"missing provider A token", "MARISK_INTA_TOKEN"},
		{"missing provider B url", "MARISK_INTB_BASE_URL"},
		{"missing provider B token", "MARISK_INTB_TOKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.unset, "")

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.unset)
		})
	}
}

func TestValidateBounds(t *testing.T) {
	setRequired(t)
	t.Setenv("MARISK_FANOUT", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MARISK_FANOUT")

	t.Setenv("MARISK_FANOUT", "8")
	t.Setenv("MARISK_RATE_LIMIT_RPS", "0")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MARISK_RATE_LIMIT_RPS")

	// Disabling rate limiting lifts the RPS requirement.
	t.Setenv("MARISK_RATE_LIMIT_ENABLED", "false")
	_, err = Load()
	require.NoError(t, err)
}

func TestEnvList(t *testing.T) {
	setRequired(t)
	t.Setenv("MARISK_API_KEY_HASHES", " $argon2id$v=19$one , $argon2id$v=19$two ,, ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"$argon2id$v=19$one", "$argon2id$v=19$two"}, cfg.APIKeyHashes)
}
