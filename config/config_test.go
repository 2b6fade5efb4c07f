package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

func TestDefaultConfigMatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1024, cfg.AnalyzerCacheSize)
	assert.Equal(t, 10, cfg.MaxFunctionCalls)
	assert.Equal(t, 5, cfg.MaxFallbacks)
	assert.Equal(t, 10000, cfg.CostBufferCapacity)
	assert.False(t, cfg.EmitFailedCostEvents)
}

func TestLoadOverridesDefaultsFromYAML(t *testing.T) {
	cfg, err := Load([]byte("max_fallbacks: 3\nlog:\n  level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxFallbacks)
	assert.Equal(t, 1024, cfg.AnalyzerCacheSize) // untouched fields keep defaults
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFileReturnsDefaultsWhenMissing(t *testing.T) {
	cfg, err := LoadFile("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().MaxFallbacks, cfg.MaxFallbacks)
}

func TestCredentialAvailableTrueForLocal(t *testing.T) {
	assert.True(t, CredentialAvailable(types.ProviderLocal))
}

func TestCredentialEnvVarMapsKnownProviders(t *testing.T) {
	assert.Equal(t, "OPENAI_API_KEY", CredentialEnvVar(types.ProviderOpenAI))
	assert.Equal(t, "ANTHROPIC_API_KEY", CredentialEnvVar(types.ProviderAnthropic))
}
