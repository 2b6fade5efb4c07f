package providers

import (
	"os"

	"go.uber.org/zap"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

// NewXAI builds the xAI (Grok) adapter, which speaks the OpenAI chat
// completions wire format. Reads XAI_API_KEY per spec §6.
func NewXAI(logger *zap.Logger) *OpenAICompat {
	return NewOpenAICompat(OpenAICompatConfig{
		ProviderName:  types.ProviderXAI,
		APIKey:        os.Getenv("XAI_API_KEY"),
		BaseURL:       "https://api.x.ai",
		RequireAPIKey: true,
	}, logger)
}
