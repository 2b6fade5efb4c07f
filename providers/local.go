package providers

import (
	"os"

	"go.uber.org/zap"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

// NewLocal builds the local adapter against an Ollama-style endpoint
// speaking the OpenAI-compatible chat completions format. Local requires no
// credentials (spec §6) — OLLAMA_HOST only overrides the default address.
func NewLocal(logger *zap.Logger) *OpenAICompat {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	return NewOpenAICompat(OpenAICompatConfig{
		ProviderName:  types.ProviderLocal,
		BaseURL:       host,
		RequireAPIKey: false,
	}, logger)
}
