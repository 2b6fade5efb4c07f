package providers

import (
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

// NewAzure builds the Azure OpenAI adapter. Azure diverges from vanilla
// OpenAI in two ways: it authenticates with an "api-key" header instead of
// "Authorization: Bearer", and its chat path is per-deployment. Reads
// AZURE_OPENAI_API_KEY and AZURE_OPENAI_ENDPOINT per spec §6.
func NewAzure(deployment, apiVersion string, logger *zap.Logger) *OpenAICompat {
	endpoint := strings.TrimRight(os.Getenv("AZURE_OPENAI_ENDPOINT"), "/")
	key := os.Getenv("AZURE_OPENAI_API_KEY")
	return NewOpenAICompat(OpenAICompatConfig{
		ProviderName:  types.ProviderAzure,
		APIKey:        key,
		BaseURL:       endpoint,
		ChatPath:      "/openai/deployments/" + deployment + "/chat/completions?api-version=" + apiVersion,
		ModelsPath:    "/openai/models?api-version=" + apiVersion,
		RequireAPIKey: true,
		BuildHeaders: func(req *http.Request, apiKey string) {
			req.Header.Set("api-key", apiKey)
			req.Header.Set("Content-Type", "application/json")
		},
	}, logger)
}
