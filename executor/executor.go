// Package executor implements the Conversation Executor (C8): the
// "LLM -> tool call -> LLM" loop, extended here to enforce the billing
// integrity invariants R1-R4. Grounded directly on the teacher's
// llm/tools/react.go ReActExecutor.Execute — same overall loop shape (up to
// N iterations, append assistant+tool messages, continue until no tool
// calls or the cap is hit) — but the teacher's version neither aggregates
// usage across iterations nor validates it; that aggregation and validation
// is this package's entire reason for existing.
package executor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

// Client is the subset of providers.Client the executor drives.
type Client interface {
	ChatCompletion(ctx context.Context, req types.APIRequest) (types.APIResponse, error)
}

// ToolHandler executes one tool call and returns its result. Implementations
// must honor ctx's deadline; the executor itself also enforces tool_timeout.
type ToolHandler func(ctx context.Context, call types.ToolCall) types.ToolResult

// Config holds the executor's tunables, sourced from runtime config.
type Config struct {
	MaxIterations int           // default 10
	ToolTimeout   time.Duration // default 30s
}

// DefaultConfig matches spec §4.6's defaults.
var DefaultConfig = Config{MaxIterations: 10, ToolTimeout: 30 * time.Second}

// Executor runs one conversation-executor instance. A value is single-owner
// within one RouteRequest; it carries no shared mutable state across calls.
type Executor struct {
	client  Client
	handler ToolHandler
	cfg     Config
	logger  *zap.Logger
}

// New builds an Executor. handler is the caller-supplied tool dispatcher
// (the Orchestrator's registered tools); cfg's zero value is replaced with
// DefaultConfig field-by-field.
func New(client Client, handler ToolHandler, cfg Config, logger *zap.Logger) *Executor {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig.MaxIterations
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = DefaultConfig.ToolTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{client: client, handler: handler, cfg: cfg, logger: logger}
}

// Execute drives the loop described in spec §4.6, returning the final
// APIResponse with Usage replaced by the aggregated running total.
func (e *Executor) Execute(ctx context.Context, modelAPIName string, messages []types.Message, tools []types.ToolSchema, deadline time.Time, traceID string) (types.APIResponse, error) {
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	msgs := append([]types.Message{}, messages...)
	var aggregate types.Usage
	var anyNonZero bool
	var last types.APIResponse

	for i := 0; i < e.cfg.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return types.APIResponse{}, types.NewError(types.ErrCancelled, err.Error()).WithTraceID(traceID)
		}

		req := types.APIRequest{ModelAPIName: modelAPIName, Messages: msgs, Tools: tools, TraceID: traceID}
		resp, err := e.client.ChatCompletion(ctx, req)
		if err != nil {
			return types.APIResponse{}, err
		}
		last = resp

		// R4: a negative delta means the provider (or our parsing) produced
		// an impossible decrease; never accumulate it silently.
		if resp.Usage.PromptTokens < 0 || resp.Usage.CompletionTokens < 0 {
			return types.APIResponse{}, types.NewError(types.ErrBillingIntegrity, "negative token delta").WithTraceID(traceID)
		}
		if resp.Usage.TotalTokens > 0 {
			anyNonZero = true
		}
		aggregate.Add(resp.Usage)

		// R1: recomputed total must equal prompt+completion after every
		// iteration — Usage.Add guarantees this structurally, but we check
		// explicitly here since it is the invariant the spec calls out by
		// number, not just an implementation detail of Add.
		if aggregate.TotalTokens != aggregate.PromptTokens+aggregate.CompletionTokens {
			return types.APIResponse{}, types.NewError(types.ErrBillingIntegrity, "aggregate total does not equal prompt+completion").WithTraceID(traceID)
		}

		if resp.FinishReason != types.FinishToolCall || resp.ToolCall == nil {
			if err := validateFinalUsage(anyNonZero, aggregate); err != nil {
				return types.APIResponse{}, err.WithTraceID(traceID)
			}
			resp.Usage = aggregate
			return resp, nil
		}

		call := *resp.ToolCall
		if call.ID == "" {
			call.ID = synthesizeToolCallID()
		}

		assistantMsg := types.Message{Role: types.RoleAssistant, Content: resp.Content, ToolCalls: []types.ToolCall{call}}
		msgs = append(msgs, assistantMsg)

		toolCtx, cancel := context.WithTimeout(ctx, e.cfg.ToolTimeout)
		result := e.handler(toolCtx, call)
		timedOut := toolCtx.Err() != nil
		cancel()
		if timedOut {
			return types.APIResponse{}, types.NewError(types.ErrToolExecution, "tool "+call.Name+" exceeded its timeout").
				WithTraceID(traceID).WithModel(modelAPIName)
		}
		result.ToolCallID = call.ID
		msgs = append(msgs, result.ToMessage())
	}

	if err := validateFinalUsage(anyNonZero, aggregate); err != nil {
		return types.APIResponse{}, err.WithTraceID(traceID)
	}
	last.Usage = aggregate
	last.FinishReason = types.FinishLength
	return last, nil
}

// validateFinalUsage implements R2: if any iteration carried positive
// tokens, the aggregate must also be positive.
func validateFinalUsage(anyNonZero bool, aggregate types.Usage) *types.Error {
	if anyNonZero && aggregate.TotalTokens <= 0 {
		return types.NewError(types.ErrBillingIntegrity, "final aggregate is non-positive despite a non-zero iteration")
	}
	return nil
}

// synthesizeToolCallID mints a fresh id when the provider doesn't echo one,
// per spec §4.6's "96-bit identifier" requirement. uuid.New() is 128 bits;
// truncating to its first 12 bytes (96 bits) keeps the id short while still
// effectively collision-free within one conversation.
func synthesizeToolCallID() string {
	id := uuid.New()
	return "call_" + uuidHex(id)[:24]
}

func uuidHex(id uuid.UUID) string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, 32)
	for i, b := range id {
		buf[i*2] = hextable[b>>4]
		buf[i*2+1] = hextable[b&0x0f]
	}
	return string(buf)
}
