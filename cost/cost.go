// Package cost implements the Cost Tracker (C10): decimal cost computation
// from the Price Table, a bounded in-memory ring buffer of CostEvent, and
// an optional external sink for forwarding events off-process. Grounded on
// the teacher's llm/resilient_provider.go for the "decorator over the
// conversation result" shape, and on
// internal/mcp/mcphost/metrics.go's rollingWindow for the fixed-capacity
// ring-buffer layout (write-pointer + wraparound count), generalized from
// int64 latency samples to full CostEvent values.
package cost

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/klappe-pm/lattice-orchestrator/pricing"
	"github.com/klappe-pm/lattice-orchestrator/types"
)

// DefaultCapacity is the ring buffer's default size (spec §4.8).
const DefaultCapacity = 10000

// Sink receives every recorded CostEvent, in addition to the ring buffer.
// Implementations must not block the caller for long; Tracker.Record calls
// Sink.Record synchronously.
type Sink interface {
	Record(event types.CostEvent)
}

// Tracker computes and retains CostEvents.
type Tracker struct {
	mu     sync.Mutex
	table  *pricing.Table
	buf    []types.CostEvent
	pos    int
	count  int
	cap    int
	sink   Sink
	logger *zap.Logger
}

// Option configures a Tracker at construction time.
type Option func(*Tracker)

// WithCapacity overrides DefaultCapacity.
func WithCapacity(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.cap = n
		}
	}
}

// WithSink forwards every recorded event to sink as well as the ring buffer.
func WithSink(sink Sink) Option {
	return func(t *Tracker) { t.sink = sink }
}

// WithLogger overrides the default no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// New builds a Tracker backed by table.
func New(table *pricing.Table, opts ...Option) *Tracker {
	t := &Tracker{table: table, cap: DefaultCapacity, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	t.buf = make([]types.CostEvent, t.cap)
	return t
}

// Record computes cost for one completed conversation-executor run and
// appends the resulting CostEvent to the ring buffer (and sink, if
// configured). provider/apiName address the Price Table; modelID is the
// registry id recorded on the event for human-readable reporting.
func (t *Tracker) Record(
	traceID string,
	timestamp time.Time,
	provider types.Provider,
	modelID, apiName string,
	taskType types.TaskType,
	usage types.Usage,
	status types.EventStatus,
	fallbackDepth int,
) (types.CostEvent, error) {
	rate, _ := t.table.Lookup(provider, apiName)

	inputCost := decimal.NewFromInt(int64(usage.PromptTokens)).
		Div(decimal.NewFromInt(1000)).Mul(rate.InputPer1K)
	outputCost := decimal.NewFromInt(int64(usage.CompletionTokens)).
		Div(decimal.NewFromInt(1000)).Mul(rate.OutputPer1K)
	total := inputCost.Add(outputCost)

	// Billing integrity: a response with zero billed tokens can never carry
	// a positive cost. This would mean either the price table or the usage
	// aggregation (R1-R4, enforced upstream by the executor) is wrong.
	if usage.TotalTokens == 0 && total.GreaterThan(decimal.Zero) {
		return types.CostEvent{}, types.NewError(types.ErrBillingIntegrity, "zero tokens produced a non-zero cost").
			WithTraceID(traceID).WithModel(modelID).WithProvider(string(provider))
	}

	event := types.CostEvent{
		TraceID:          traceID,
		Timestamp:        timestamp,
		ModelID:          modelID,
		Provider:         provider,
		TaskType:         taskType,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		CostUSDInput:     inputCost,
		CostUSDOutput:    outputCost,
		CostUSDTotal:     total,
		Status:           status,
		FallbackDepth:    fallbackDepth,
	}

	t.mu.Lock()
	t.buf[t.pos] = event
	t.pos = (t.pos + 1) % t.cap
	t.count++
	t.mu.Unlock()

	t.logger.Debug("cost event recorded",
		zap.String("trace_id", traceID),
		zap.String("model_id", modelID),
		zap.String("cost_total", total.String()),
	)

	if t.sink != nil {
		t.sink.Record(event)
	}
	return event, nil
}

// Events returns a copy of the events currently retained, oldest first.
func (t *Tracker) Events() []types.CostEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.count
	if n > t.cap {
		n = t.cap
	}
	out := make([]types.CostEvent, n)
	if t.count <= t.cap {
		copy(out, t.buf[:n])
		return out
	}
	for i := 0; i < n; i++ {
		out[i] = t.buf[(t.pos+i)%t.cap]
	}
	return out
}

// Len returns the number of events currently retained (<= capacity).
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count > t.cap {
		return t.cap
	}
	return t.count
}
