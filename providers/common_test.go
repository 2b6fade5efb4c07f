package providers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

func TestMapHTTPErrorClassifiesKnownStatuses(t *testing.T) {
	cases := []struct {
		status int
		msg    string
		want   types.ErrorCode
	}{
		{http.StatusUnauthorized, "bad key", types.ErrProviderUnavailable},
		{http.StatusForbidden, "denied", types.ErrProviderUnavailable},
		{http.StatusTooManyRequests, "slow down", types.ErrRateLimited},
		{http.StatusRequestEntityTooLarge, "too big", types.ErrContextTooLong},
		{http.StatusBadRequest, "context_length_exceeded: too many tokens", types.ErrContextTooLong},
		{http.StatusBadRequest, "content flagged by moderation", types.ErrContentRejected},
		{http.StatusBadRequest, "missing field foo", types.ErrInvalidRequest},
		{http.StatusServiceUnavailable, "down", types.ErrTransientProvider},
		{http.StatusInternalServerError, "oops", types.ErrTransientProvider},
	}
	for _, c := range cases {
		got := MapHTTPError(c.status, c.msg, types.ProviderOpenAI)
		assert.Equal(t, c.want, got.Kind, "status=%d msg=%q", c.status, c.msg)
	}
}

func TestReadErrorMessageParsesEnvelope(t *testing.T) {
	body := strings.NewReader(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`)
	msg := ReadErrorMessage(body)
	assert.Contains(t, msg, "invalid api key")
	assert.Contains(t, msg, "invalid_request_error")
}

func TestReadErrorMessageFallsBackToRawText(t *testing.T) {
	body := strings.NewReader("plain text failure")
	assert.Equal(t, "plain text failure", ReadErrorMessage(body))
}
