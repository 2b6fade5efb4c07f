package providers

import (
	"os"

	"go.uber.org/zap"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

// NewOpenAI builds the OpenAI adapter, reading OPENAI_API_KEY per spec §6.
func NewOpenAI(logger *zap.Logger) *OpenAICompat {
	return NewOpenAICompat(OpenAICompatConfig{
		ProviderName:  types.ProviderOpenAI,
		APIKey:        os.Getenv("OPENAI_API_KEY"),
		BaseURL:       "https://api.openai.com",
		RequireAPIKey: true,
	}, logger)
}
