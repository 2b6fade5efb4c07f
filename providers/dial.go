package providers

import (
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

// NewDial builds the DIAL adapter. DIAL proxies multiple upstream vendors
// behind one OpenAI-compatible gateway, authenticated via an "Api-Key"
// header. Reads DIAL_API_KEY and DIAL_ENDPOINT per spec §6.
func NewDial(logger *zap.Logger) *OpenAICompat {
	endpoint := strings.TrimRight(os.Getenv("DIAL_ENDPOINT"), "/")
	key := os.Getenv("DIAL_API_KEY")
	return NewOpenAICompat(OpenAICompatConfig{
		ProviderName:  types.ProviderDial,
		APIKey:        key,
		BaseURL:       endpoint,
		RequireAPIKey: true,
		BuildHeaders: func(req *http.Request, apiKey string) {
			req.Header.Set("Api-Key", apiKey)
			req.Header.Set("Content-Type", "application/json")
		},
	}, logger)
}
