// OpenAICompat is the shared base for every provider whose wire format is
// OpenAI's Chat Completions API: openai itself, azure (OpenAI-on-Azure),
// xai (Grok), dial, and local (Ollama's OpenAI-compatible endpoint). Rather
// than duplicating HTTP/JSON/error-mapping plumbing five times, each of
// those constructors returns a *OpenAICompat configured through
// OpenAICompatConfig with its own base URL and, where it differs, its header
// builder and chat/model-list paths.
//
// Grounded directly on the teacher's llm/providers/openaicompat.Provider,
// which plays exactly this "shared base, embedders override what differs"
// role for its own DeepSeek/Qwen/GLM/Grok/Doubao/MiniMax family.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

// OpenAICompatConfig configures one OpenAI-wire-format provider instance.
type OpenAICompatConfig struct {
	ProviderName   types.Provider
	APIKey         string
	BaseURL        string
	Timeout        time.Duration
	ChatPath       string
	ModelsPath     string
	BuildHeaders   func(req *http.Request, apiKey string)
	RequireAPIKey  bool // false for "local", which needs no credentials
}

// OpenAICompat is the embeddable base implementation.
type OpenAICompat struct {
	cfg    OpenAICompatConfig
	client *http.Client
	logger *zap.Logger
}

// NewOpenAICompat builds a base adapter. Logger may be nil (defaults to a
// no-op logger).
func NewOpenAICompat(cfg OpenAICompatConfig, logger *zap.Logger) *OpenAICompat {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ChatPath == "" {
		cfg.ChatPath = "/v1/chat/completions"
	}
	if cfg.ModelsPath == "" {
		cfg.ModelsPath = "/v1/models"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAICompat{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// ValidateConfig fails fast if required credentials are structurally
// missing, per spec §4.4.
func (p *OpenAICompat) ValidateConfig() error {
	if p.cfg.RequireAPIKey && strings.TrimSpace(p.cfg.APIKey) == "" {
		return types.NewError(types.ErrProviderUnavailable, "missing API key").
			WithProvider(string(p.cfg.ProviderName))
	}
	if strings.TrimSpace(p.cfg.BaseURL) == "" {
		return types.NewError(types.ErrProviderUnavailable, "missing base URL").
			WithProvider(string(p.cfg.ProviderName))
	}
	return nil
}

func (p *OpenAICompat) buildHeaders(req *http.Request) {
	if p.cfg.BuildHeaders != nil {
		p.cfg.BuildHeaders(req, p.cfg.APIKey)
		return
	}
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")
}

// HealthCheck performs a bounded, quota-cheap list-models probe.
func (p *OpenAICompat) HealthCheck(ctx context.Context) error {
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + p.cfg.ModelsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return types.NewError(types.ErrProviderUnavailable, err.Error()).WithProvider(string(p.cfg.ProviderName))
	}
	p.buildHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return types.NewError(types.ErrTransientProvider, err.Error()).WithProvider(string(p.cfg.ProviderName)).WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		msg := ReadErrorMessage(resp.Body)
		return MapHTTPError(resp.StatusCode, msg, p.cfg.ProviderName)
	}
	return nil
}

// Close is a no-op: the shared *http.Client has no per-call connections to
// release beyond what the transport's idle-conn pool already manages.
func (p *OpenAICompat) Close() error { return nil }

type openAICompatMessage struct {
	Role       string                `json:"role"`
	Content    string                `json:"content,omitempty"`
	Name       string                `json:"name,omitempty"`
	ToolCalls  []openAICompatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string                `json:"tool_call_id,omitempty"`
}

type openAICompatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAICompatTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Parameters  any    `json:"parameters,omitempty"`
	} `json:"function"`
}

type openAICompatRequest struct {
	Model       string                 `json:"model"`
	Messages    []openAICompatMessage  `json:"messages"`
	Tools       []openAICompatTool     `json:"tools,omitempty"`
	MaxTokens   int                    `json:"max_tokens,omitempty"`
	Temperature float32                `json:"temperature,omitempty"`
}

type openAICompatChoice struct {
	FinishReason string              `json:"finish_reason"`
	Message      openAICompatMessage `json:"message"`
}

type openAICompatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAICompatResponse struct {
	Choices []openAICompatChoice `json:"choices"`
	Usage   *openAICompatUsage   `json:"usage"`
}

func toOpenAIMessages(msgs []types.Message) []openAICompatMessage {
	out := make([]openAICompatMessage, 0, len(msgs))
	for _, m := range msgs {
		oa := openAICompatMessage{Role: string(m.Role), Content: m.Content, Name: m.Name, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			var compat openAICompatToolCall
			compat.ID = tc.ID
			compat.Type = "function"
			compat.Function.Name = tc.Name
			compat.Function.Arguments = string(tc.Arguments)
			oa.ToolCalls = append(oa.ToolCalls, compat)
		}
		out = append(out, oa)
	}
	return out
}

func toOpenAITools(tools []types.ToolSchema) []openAICompatTool {
	out := make([]openAICompatTool, 0, len(tools))
	for _, t := range tools {
		var tool openAICompatTool
		tool.Type = "function"
		tool.Function.Name = t.Name
		tool.Function.Description = t.Description
		tool.Function.Parameters = t.Parameters
		out = append(out, tool)
	}
	return out
}

// ChatCompletion issues one OpenAI-wire-format chat completion round-trip.
func (p *OpenAICompat) ChatCompletion(ctx context.Context, req types.APIRequest) (types.APIResponse, error) {
	body := openAICompatRequest{
		Model:       req.ModelAPIName,
		Messages:    toOpenAIMessages(req.Messages),
		Tools:       toOpenAITools(req.Tools),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return types.APIResponse{}, types.NewError(types.ErrInternal, err.Error())
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + p.cfg.ChatPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return types.APIResponse{}, types.NewError(types.ErrInternal, err.Error())
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return types.APIResponse{}, types.NewError(types.ErrCancelled, ctx.Err().Error()).WithProvider(string(p.cfg.ProviderName))
		}
		return types.APIResponse{}, types.NewError(types.ErrTransientProvider, err.Error()).WithProvider(string(p.cfg.ProviderName)).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := ReadErrorMessage(resp.Body)
		return types.APIResponse{}, MapHTTPError(resp.StatusCode, msg, p.cfg.ProviderName)
	}

	var out openAICompatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return types.APIResponse{}, types.NewError(types.ErrTransientProvider, fmt.Sprintf("malformed response: %v", err)).WithProvider(string(p.cfg.ProviderName))
	}
	if len(out.Choices) == 0 {
		return types.APIResponse{}, types.NewError(types.ErrTransientProvider, "empty choices array").WithProvider(string(p.cfg.ProviderName))
	}

	choice := out.Choices[0]
	result := types.APIResponse{
		Content:      choice.Message.Content,
		ModelAPIName: req.ModelAPIName,
		FinishReason: mapFinishReason(choice.FinishReason),
	}
	if out.Usage != nil {
		// Usage is populated when the provider supplies it; never
		// fabricated otherwise (spec §4.4). R3 means the caller will
		// recompute TotalTokens regardless of what we set here.
		result.Usage = types.Usage{PromptTokens: out.Usage.PromptTokens, CompletionTokens: out.Usage.CompletionTokens, TotalTokens: out.Usage.PromptTokens + out.Usage.CompletionTokens}
	}
	if len(choice.Message.ToolCalls) > 0 {
		tc := choice.Message.ToolCalls[0]
		result.ToolCall = &types.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: json.RawMessage(tc.Function.Arguments)}
		result.FinishReason = types.FinishToolCall
	}
	return result, nil
}

func mapFinishReason(raw string) types.FinishReason {
	switch raw {
	case "tool_calls", "function_call":
		return types.FinishToolCall
	case "length":
		return types.FinishLength
	case "content_filter":
		return types.FinishError
	default:
		return types.FinishStop
	}
}
