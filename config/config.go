// Package config implements the orchestrator's ambient runtime
// configuration: YAML-first with env-var credential resolution, grounded on
// the teacher's config/loader.go ("defaults -> YAML file -> env override"
// priority order) and config/defaults.go (one DefaultXConfig() function per
// section). Trimmed to the runtime knobs SPEC_FULL.md names — no
// Redis/Database/Qdrant/Milvus/Telemetry sections, since this module has no
// persisted state or tracing SDK (see DESIGN.md's dropped-dependency list).
package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

// Config is the orchestrator's full runtime configuration.
type Config struct {
	RegistryPath      string `yaml:"registry_path"`
	PricingPath       string `yaml:"pricing_path"`
	AnalyzerPatterns  string `yaml:"analyzer_patterns_path"`
	SelectorGuidePath string `yaml:"selector_guide_path"`

	AnalyzerCacheSize  int           `yaml:"analyzer_cache_size"`
	MaxFunctionCalls   int           `yaml:"max_function_calls"`
	ToolTimeout        time.Duration `yaml:"tool_timeout"`
	MaxFallbacks       int           `yaml:"max_fallbacks"`
	HealthCacheTTL     time.Duration `yaml:"health_cache_ttl"`
	ShutdownGrace      time.Duration `yaml:"shutdown_grace"`
	CostBufferCapacity int           `yaml:"cost_buffer_capacity"`

	// EmitFailedCostEvents controls whether a Route call that exhausts its
	// whole candidate chain still records a zero-usage status=failed
	// CostEvent (spec S6: "failed runs may emit status=failed event
	// depending on config — test both modes"). Off by default: a hard
	// failure produced no billable tokens, so the default ledger stays
	// success/fallback_used only.
	EmitFailedCostEvents bool `yaml:"emit_failed_cost_events"`

	Log LogConfig `yaml:"log"`
}

// LogConfig controls the zap logger built by BuildLogger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the spec's documented defaults (§4.6-§4.9):
// analyzer cache 1024, max function calls (= executor max iterations) 10,
// tool timeout 30s, max fallbacks 5, health-check cache TTL 60s, shutdown
// grace 5s, cost buffer 10000.
func DefaultConfig() *Config {
	return &Config{
		AnalyzerCacheSize:  1024,
		MaxFunctionCalls:   10,
		ToolTimeout:        30 * time.Second,
		MaxFallbacks:       5,
		HealthCacheTTL:     60 * time.Second,
		ShutdownGrace:      5 * time.Second,
		CostBufferCapacity: 10000,
		Log:                LogConfig{Level: "info", Format: "json"},
	}
}

// LoadFile reads path, applies it over DefaultConfig, and returns the
// result. A missing file is not an error: callers get DefaultConfig back,
// matching the teacher's "config file is optional" loader behavior.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Load(data)
}

// Load parses YAML bytes over DefaultConfig (defaults first, file second;
// env vars are resolved separately per-provider by CredentialAvailable,
// since this module has no generic env-to-struct reflection layer — each
// provider adapter reads its own credential env vars in its constructor).
func Load(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	return cfg, nil
}

// BuildLogger constructs a *zap.Logger from Log, grounded on the teacher's
// config.LogConfig level/format handling.
func (c *Config) BuildLogger() (*zap.Logger, error) {
	var zapCfg zap.Config
	if c.Log.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapCfg.Level = level
	return zapCfg.Build()
}

// CredentialEnvVar returns the environment variable an adapter reads its
// API key/credential from, mirroring each provider constructor in
// providers/*.go. ProviderLocal needs none (Ollama has no API key).
func CredentialEnvVar(provider types.Provider) string {
	switch provider {
	case types.ProviderOpenAI:
		return "OPENAI_API_KEY"
	case types.ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case types.ProviderGoogle:
		return "GOOGLE_API_KEY"
	case types.ProviderXAI:
		return "XAI_API_KEY"
	case types.ProviderAzure:
		return "AZURE_OPENAI_API_KEY"
	case types.ProviderDial:
		return "DIAL_API_KEY"
	case types.ProviderBedrock:
		return "AWS_ACCESS_KEY_ID"
	case types.ProviderLocal:
		return ""
	default:
		return ""
	}
}

// CredentialAvailable reports whether provider's credential is present,
// feeding the Client Pool's Register(provider, available, factory) call
// (spec §4.5's availability snapshot).
func CredentialAvailable(provider types.Provider) bool {
	envVar := CredentialEnvVar(provider)
	if envVar == "" {
		return true
	}
	return os.Getenv(envVar) != ""
}
