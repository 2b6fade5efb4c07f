package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// APIRequest is the input to a single provider call (one iteration of the
// conversation executor's loop, addressed to a specific model_api_name).
type APIRequest struct {
	ModelAPIName string       `json:"model_api_name"`
	Messages     []Message    `json:"messages"`
	Tools        []ToolSchema `json:"tools,omitempty"`
	Temperature  float32      `json:"temperature,omitempty"`
	MaxTokens    int          `json:"max_tokens,omitempty"`
	TraceID      string       `json:"trace_id"`
}

// FinishReason is why a provider stopped generating.
type FinishReason string

const (
	FinishStop     FinishReason = "stop"
	FinishToolCall FinishReason = "tool_call"
	FinishLength   FinishReason = "length"
	FinishError    FinishReason = "error"
)

// Usage is the token accounting for one provider call or an aggregate across
// a whole conversation executor run.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add folds delta into u in place, used by the conversation executor's
// billing aggregator. The caller is responsible for invariant checking (R1,
// R4) — Add itself only performs the arithmetic.
func (u *Usage) Add(delta Usage) {
	u.PromptTokens += delta.PromptTokens
	u.CompletionTokens += delta.CompletionTokens
	u.TotalTokens = u.PromptTokens + u.CompletionTokens // R3: always recomputed, never trusted from delta.TotalTokens
}

// APIResponse is the result of one provider call.
type APIResponse struct {
	Content      string       `json:"content,omitempty"`
	ToolCall     *ToolCall    `json:"tool_call,omitempty"`
	Usage        Usage        `json:"usage"`
	ModelAPIName string       `json:"model_api_name"`
	FinishReason FinishReason `json:"finish_reason"`
	Raw          any          `json:"-"`
	Err          *Error       `json:"error,omitempty"`
}

// CostEvent is emitted once per completed orchestration.
type CostEvent struct {
	TraceID          string    `json:"trace_id"`
	Timestamp        time.Time `json:"timestamp"`
	ModelID          string    `json:"model_id"`
	Provider         Provider  `json:"provider"`
	TaskType         TaskType  `json:"task_type"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	CostUSDInput     decimal.Decimal `json:"cost_usd_input"`
	CostUSDOutput    decimal.Decimal `json:"cost_usd_output"`
	CostUSDTotal     decimal.Decimal `json:"cost_usd_total"`
	Status           EventStatus `json:"status"`
	FallbackDepth    int       `json:"fallback_depth"`
}

// EventStatus is the terminal outcome recorded on a CostEvent.
type EventStatus string

const (
	StatusSuccess      EventStatus = "success"
	StatusFailed        EventStatus = "failed"
	StatusFallbackUsed EventStatus = "fallback_used"
)

// RouteRequest is the core's external entry point.
type RouteRequest struct {
	Prompt    string        `json:"prompt"`
	Messages  []Message     `json:"messages,omitempty"`
	ModelHint string        `json:"model_hint,omitempty"`
	TaskHint  TaskType       `json:"task_hint,omitempty"`
	Priority  Priority      `json:"priority,omitempty"`
	Deadline  time.Time     `json:"deadline,omitempty"`
	Tools     []ToolSchema  `json:"tools,omitempty"`
	TraceID   string        `json:"trace_id,omitempty"`
}

// RouteResponse is the result of a RouteRequest: the final provider response
// plus the cost event recorded for it.
type RouteResponse struct {
	Response  *APIResponse `json:"response"`
	CostEvent *CostEvent   `json:"cost_event"`
}
