// Anthropic speaks a materially different wire format from OpenAI's: auth
// via an "x-api-key" header (not Bearer), a top-level "system" field pulled
// out of the message array, array-valued message content mixing text and
// tool_use/tool_result blocks, and requests that always carry max_tokens.
// Grounded on the teacher's llm/providers/anthropic package doc comment
// (ClaudeProvider implements the provider interface standalone, not via
// openaicompat, specifically because of these protocol differences).
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

// AnthropicConfig configures the Anthropic adapter.
type AnthropicConfig struct {
	APIKey        string
	BaseURL       string
	AnthropicVer  string
	Timeout       time.Duration
}

// Anthropic implements Client against the Messages API (/v1/messages).
type Anthropic struct {
	cfg    AnthropicConfig
	client *http.Client
	logger *zap.Logger
}

// NewAnthropic builds the Anthropic adapter, reading ANTHROPIC_API_KEY per
// spec §6.
func NewAnthropic(logger *zap.Logger) *Anthropic {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Anthropic{
		cfg: AnthropicConfig{
			APIKey:       os.Getenv("ANTHROPIC_API_KEY"),
			BaseURL:      "https://api.anthropic.com",
			AnthropicVer: "2023-06-01",
		},
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

func (a *Anthropic) ValidateConfig() error {
	if strings.TrimSpace(a.cfg.APIKey) == "" {
		return types.NewError(types.ErrProviderUnavailable, "missing API key").WithProvider(string(types.ProviderAnthropic))
	}
	return nil
}

func (a *Anthropic) Close() error { return nil }

func (a *Anthropic) buildHeaders(req *http.Request) {
	req.Header.Set("x-api-key", a.cfg.APIKey)
	req.Header.Set("anthropic-version", a.cfg.AnthropicVer)
	req.Header.Set("Content-Type", "application/json")
}

func (a *Anthropic) HealthCheck(ctx context.Context) error {
	endpoint := strings.TrimRight(a.cfg.BaseURL, "/") + "/v1/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return types.NewError(types.ErrProviderUnavailable, err.Error()).WithProvider(string(types.ProviderAnthropic))
	}
	a.buildHeaders(req)
	resp, err := a.client.Do(req)
	if err != nil {
		return types.NewError(types.ErrTransientProvider, err.Error()).WithProvider(string(types.ProviderAnthropic)).WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return MapHTTPError(resp.StatusCode, ReadErrorMessage(resp.Body), types.ProviderAnthropic)
	}
	return nil
}

type anthropicContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema,omitempty"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float32            `json:"temperature,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      anthropicUsage          `json:"usage"`
}

// toAnthropicRequest pulls the leading system message out of the array (per
// the protocol's separate "system" field) and converts the remainder to
// Anthropic's content-block shape.
func toAnthropicRequest(req types.APIRequest) anthropicRequest {
	out := anthropicRequest{Model: req.ModelAPIName, MaxTokens: req.MaxTokens, Temperature: req.Temperature}
	if out.MaxTokens == 0 {
		out.MaxTokens = 4096
	}
	for _, m := range req.Messages {
		if m.Role == types.RoleSystem {
			if out.System != "" {
				out.System += "\n"
			}
			out.System += m.Content
			continue
		}
		am := anthropicMessage{Role: string(m.Role)}
		if m.Role == types.RoleTool {
			am.Role = "user"
			am.Content = append(am.Content, anthropicContentBlock{Type: "tool_result", ToolUseID: m.ToolCallID, Content: m.Content})
		} else {
			if m.Content != "" {
				am.Content = append(am.Content, anthropicContentBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				am.Content = append(am.Content, anthropicContentBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: json.RawMessage(tc.Arguments)})
			}
		}
		out.Messages = append(out.Messages, am)
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, anthropicTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters})
	}
	return out
}

func (a *Anthropic) ChatCompletion(ctx context.Context, req types.APIRequest) (types.APIResponse, error) {
	body := toAnthropicRequest(req)
	payload, err := json.Marshal(body)
	if err != nil {
		return types.APIResponse{}, types.NewError(types.ErrInternal, err.Error())
	}

	endpoint := strings.TrimRight(a.cfg.BaseURL, "/") + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return types.APIResponse{}, types.NewError(types.ErrInternal, err.Error())
	}
	a.buildHeaders(httpReq)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return types.APIResponse{}, types.NewError(types.ErrCancelled, ctx.Err().Error()).WithProvider(string(types.ProviderAnthropic))
		}
		return types.APIResponse{}, types.NewError(types.ErrTransientProvider, err.Error()).WithProvider(string(types.ProviderAnthropic)).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return types.APIResponse{}, MapHTTPError(resp.StatusCode, ReadErrorMessage(resp.Body), types.ProviderAnthropic)
	}

	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return types.APIResponse{}, types.NewError(types.ErrTransientProvider, fmt.Sprintf("malformed response: %v", err)).WithProvider(string(types.ProviderAnthropic))
	}

	result := types.APIResponse{
		ModelAPIName: req.ModelAPIName,
		FinishReason: mapAnthropicStopReason(out.StopReason),
		Usage:        types.Usage{PromptTokens: out.Usage.InputTokens, CompletionTokens: out.Usage.OutputTokens, TotalTokens: out.Usage.InputTokens + out.Usage.OutputTokens},
	}
	for _, block := range out.Content {
		switch block.Type {
		case "text":
			result.Content += block.Text
		case "tool_use":
			result.ToolCall = &types.ToolCall{ID: block.ID, Name: block.Name, Arguments: block.Input}
			result.FinishReason = types.FinishToolCall
		}
	}
	return result, nil
}

func mapAnthropicStopReason(raw string) types.FinishReason {
	switch raw {
	case "tool_use":
		return types.FinishToolCall
	case "max_tokens":
		return types.FinishLength
	default:
		return types.FinishStop
	}
}
