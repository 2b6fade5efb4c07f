package providers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

// MapHTTPError maps an HTTP status code plus upstream message into the
// orchestrator's error taxonomy (spec §7). Grounded directly on the
// teacher's llm/providers/common.go MapHTTPError, adapted from the
// teacher's own llm.ErrorCode set to types.ErrorCode.
func MapHTTPError(status int, msg string, provider types.Provider) *types.Error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.NewError(types.ErrProviderUnavailable, msg).WithProvider(string(provider))
	case http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimited, msg).WithProvider(string(provider))
	case http.StatusRequestEntityTooLarge:
		return types.NewError(types.ErrContextTooLong, msg).WithProvider(string(provider))
	case http.StatusBadRequest:
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "context") && (strings.Contains(lower, "length") || strings.Contains(lower, "token")) {
			return types.NewError(types.ErrContextTooLong, msg).WithProvider(string(provider))
		}
		if strings.Contains(lower, "moderation") || strings.Contains(lower, "content policy") || strings.Contains(lower, "safety") {
			return types.NewError(types.ErrContentRejected, msg).WithProvider(string(provider))
		}
		return types.NewError(types.ErrInvalidRequest, msg).WithProvider(string(provider))
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return types.NewError(types.ErrTransientProvider, msg).WithProvider(string(provider))
	case 529: // overloaded, used by some providers in place of 503
		return types.NewError(types.ErrTransientProvider, msg).WithProvider(string(provider))
	default:
		if status >= 500 {
			return types.NewError(types.ErrTransientProvider, msg).WithProvider(string(provider))
		}
		return types.NewError(types.ErrInvalidRequest, msg).WithProvider(string(provider))
	}
}

// ReadErrorMessage extracts a human-readable message from an HTTP error
// body, trying the common {"error":{"message":...}} envelope before
// falling back to raw text. Grounded on the teacher's
// llm/providers/common.go ReadErrorMessage.
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil {
		return "failed to read error response"
	}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Message != "" {
		if envelope.Error.Type != "" {
			return envelope.Error.Message + " (type: " + envelope.Error.Type + ")"
		}
		return envelope.Error.Message
	}
	return string(data)
}
