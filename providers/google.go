// Google speaks Gemini's native REST format (generativelanguage.googleapis.com),
// authenticated via an "x-goog-api-key" header and structured around
// "contents"/"parts" rather than a flat messages array. Grounded on the
// teacher's llm/providers/gemini package doc comment (GeminiProvider is a
// standalone implementation, not built on openaicompat, for the same reason
// Anthropic isn't: the wire format diverges too much to share the base).
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

// Google implements Client against Gemini's generateContent endpoint.
type Google struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewGoogle builds the Google adapter, reading GOOGLE_API_KEY per spec §6.
func NewGoogle(logger *zap.Logger) *Google {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Google{
		apiKey:  os.Getenv("GOOGLE_API_KEY"),
		baseURL: "https://generativelanguage.googleapis.com",
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

func (g *Google) ValidateConfig() error {
	if strings.TrimSpace(g.apiKey) == "" {
		return types.NewError(types.ErrProviderUnavailable, "missing API key").WithProvider(string(types.ProviderGoogle))
	}
	return nil
}

func (g *Google) Close() error { return nil }

func (g *Google) HealthCheck(ctx context.Context) error {
	endpoint := g.baseURL + "/v1beta/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return types.NewError(types.ErrProviderUnavailable, err.Error()).WithProvider(string(types.ProviderGoogle))
	}
	req.Header.Set("x-goog-api-key", g.apiKey)
	resp, err := g.client.Do(req)
	if err != nil {
		return types.NewError(types.ErrTransientProvider, err.Error()).WithProvider(string(types.ProviderGoogle)).WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return MapHTTPError(resp.StatusCode, ReadErrorMessage(resp.Body), types.ProviderGoogle)
	}
	return nil
}

type geminiPart struct {
	Text         string               `json:"text,omitempty"`
	FunctionCall *geminiFunctionCall  `json:"functionCall,omitempty"`
	FunctionResp *geminiFunctionResp  `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type geminiFunctionResp struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiFunctionDecl struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDecl `json:"functionDeclarations"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Tools             []geminiTool    `json:"tools,omitempty"`
	GenerationConfig  struct {
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
		Temperature     float32 `json:"temperature,omitempty"`
	} `json:"generationConfig,omitempty"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate   `json:"candidates"`
	UsageMetadata geminiUsageMetadata `json:"usageMetadata"`
}

func toGeminiRequest(req types.APIRequest) geminiRequest {
	var out geminiRequest
	for _, m := range req.Messages {
		if m.Role == types.RoleSystem {
			out.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: m.Content}}}
			continue
		}
		role := "user"
		if m.Role == types.RoleAssistant {
			role = "model"
		}
		content := geminiContent{Role: role}
		if m.Role == types.RoleTool {
			content.Role = "function"
			content.Parts = append(content.Parts, geminiPart{FunctionResp: &geminiFunctionResp{Name: m.Name, Response: json.RawMessage(m.Content)}})
		} else {
			if m.Content != "" {
				content.Parts = append(content.Parts, geminiPart{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				content.Parts = append(content.Parts, geminiPart{FunctionCall: &geminiFunctionCall{Name: tc.Name, Args: tc.Arguments}})
			}
		}
		out.Contents = append(out.Contents, content)
	}
	if len(req.Tools) > 0 {
		var decls []geminiFunctionDecl
		for _, t := range req.Tools {
			decls = append(decls, geminiFunctionDecl{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
		}
		out.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}
	out.GenerationConfig.MaxOutputTokens = req.MaxTokens
	out.GenerationConfig.Temperature = req.Temperature
	return out
}

func (g *Google) ChatCompletion(ctx context.Context, req types.APIRequest) (types.APIResponse, error) {
	body := toGeminiRequest(req)
	payload, err := json.Marshal(body)
	if err != nil {
		return types.APIResponse{}, types.NewError(types.ErrInternal, err.Error())
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, req.ModelAPIName)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return types.APIResponse{}, types.NewError(types.ErrInternal, err.Error())
	}
	httpReq.Header.Set("x-goog-api-key", g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return types.APIResponse{}, types.NewError(types.ErrCancelled, ctx.Err().Error()).WithProvider(string(types.ProviderGoogle))
		}
		return types.APIResponse{}, types.NewError(types.ErrTransientProvider, err.Error()).WithProvider(string(types.ProviderGoogle)).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return types.APIResponse{}, MapHTTPError(resp.StatusCode, ReadErrorMessage(resp.Body), types.ProviderGoogle)
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return types.APIResponse{}, types.NewError(types.ErrTransientProvider, fmt.Sprintf("malformed response: %v", err)).WithProvider(string(types.ProviderGoogle))
	}
	if len(out.Candidates) == 0 {
		return types.APIResponse{}, types.NewError(types.ErrTransientProvider, "empty candidates array").WithProvider(string(types.ProviderGoogle))
	}

	candidate := out.Candidates[0]
	result := types.APIResponse{
		ModelAPIName: req.ModelAPIName,
		FinishReason: mapGeminiFinishReason(candidate.FinishReason),
		Usage: types.Usage{
			PromptTokens:     out.UsageMetadata.PromptTokenCount,
			CompletionTokens: out.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      out.UsageMetadata.PromptTokenCount + out.UsageMetadata.CandidatesTokenCount,
		},
	}
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			result.Content += part.Text
		}
		if part.FunctionCall != nil {
			result.ToolCall = &types.ToolCall{Name: part.FunctionCall.Name, Arguments: part.FunctionCall.Args}
			result.FinishReason = types.FinishToolCall
		}
	}
	return result, nil
}

func mapGeminiFinishReason(raw string) types.FinishReason {
	switch raw {
	case "MAX_TOKENS":
		return types.FinishLength
	case "SAFETY", "RECITATION":
		return types.FinishError
	default:
		return types.FinishStop
	}
}
