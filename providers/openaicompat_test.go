package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

func TestValidateConfigRejectsMissingAPIKey(t *testing.T) {
	p := NewOpenAICompat(OpenAICompatConfig{ProviderName: types.ProviderOpenAI, BaseURL: "https://example.com", RequireAPIKey: true}, nil)
	err := p.ValidateConfig()
	assert.Error(t, err)
}

func TestValidateConfigAllowsNoKeyWhenNotRequired(t *testing.T) {
	p := NewOpenAICompat(OpenAICompatConfig{ProviderName: types.ProviderLocal, BaseURL: "http://localhost:11434", RequireAPIKey: false}, nil)
	assert.NoError(t, p.ValidateConfig())
}

func TestChatCompletionParsesTextResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": "hello"}},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 999},
		})
	}))
	defer srv.Close()

	p := NewOpenAICompat(OpenAICompatConfig{ProviderName: types.ProviderOpenAI, APIKey: "sk-test", BaseURL: srv.URL, RequireAPIKey: true}, nil)
	resp, err := p.ChatCompletion(context.Background(), types.APIRequest{ModelAPIName: "gpt-5-mini", Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, types.FinishStop, resp.FinishReason)
	assert.Equal(t, 10, resp.Usage.PromptTokens)
	assert.Equal(t, 5, resp.Usage.CompletionTokens)
}

func TestChatCompletionParsesToolCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{
					"finish_reason": "tool_calls",
					"message": map[string]any{
						"role": "assistant",
						"tool_calls": []map[string]any{
							{"id": "call_1", "type": "function", "function": map[string]any{"name": "get_weather", "arguments": `{"city":"NYC"}`}},
						},
					},
				},
			},
		})
	}))
	defer srv.Close()

	p := NewOpenAICompat(OpenAICompatConfig{ProviderName: types.ProviderOpenAI, APIKey: "sk-test", BaseURL: srv.URL, RequireAPIKey: true}, nil)
	resp, err := p.ChatCompletion(context.Background(), types.APIRequest{ModelAPIName: "gpt-5-mini"})
	require.NoError(t, err)
	require.NotNil(t, resp.ToolCall)
	assert.Equal(t, "get_weather", resp.ToolCall.Name)
	assert.Equal(t, types.FinishToolCall, resp.FinishReason)
}

func TestChatCompletionMapsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "rate limited"}})
	}))
	defer srv.Close()

	p := NewOpenAICompat(OpenAICompatConfig{ProviderName: types.ProviderOpenAI, APIKey: "sk-test", BaseURL: srv.URL, RequireAPIKey: true}, nil)
	_, err := p.ChatCompletion(context.Background(), types.APIRequest{ModelAPIName: "gpt-5-mini"})
	require.Error(t, err)
	orchErr := types.AsError(err)
	require.NotNil(t, orchErr)
	assert.Equal(t, types.ErrRateLimited, orchErr.Kind)
}

func TestHealthCheckSucceedsOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewOpenAICompat(OpenAICompatConfig{ProviderName: types.ProviderOpenAI, APIKey: "sk-test", BaseURL: srv.URL, RequireAPIKey: true}, nil)
	assert.NoError(t, p.HealthCheck(context.Background()))
}
