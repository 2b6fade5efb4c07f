// Package fallback implements the Fallback Manager (C9): traversal of a
// ranked candidate chain, classifying every failure via types.Scope and
// retrying the same candidate with exponential backoff before moving on.
// Grounded on the teacher's llm/retry (backoff.go's exponential-plus-jitter
// delay calculation) and llm/circuitbreaker (breaker.go's success/failure
// state vocabulary) — generalized here from "retry one call" into "traverse
// a chain of candidates, retrying some and skipping others", since neither
// teacher package has a notion of a ranked candidate list.
package fallback

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

// AttemptFunc invokes one candidate. The caller (Orchestrator) closes over
// the Pool.Get + Executor.Execute call for candidateID.
type AttemptFunc func(ctx context.Context, candidateID string) (types.APIResponse, error)

// Config holds the retry tunables for spec §4.7's fallback behavior.
type Config struct {
	SameModelRetries int           // retries of the SAME candidate before moving to the next; default 1
	BackoffBase      time.Duration // default 500ms
	BackoffCap       time.Duration // default 5s
	JitterFraction   float64       // default 0.2 (+-20%)
}

// DefaultConfig matches spec §4.7's defaults.
var DefaultConfig = Config{
	SameModelRetries: 1,
	BackoffBase:      500 * time.Millisecond,
	BackoffCap:       5 * time.Second,
	JitterFraction:   0.2,
}

// Outcome labels one attempt's terminal state for observability.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeRetried  Outcome = "retried"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeTerminal Outcome = "terminal"
)

// Result is what Run returns on success.
type Result struct {
	Response      types.APIResponse
	Candidate     string
	FallbackDepth int // 0 = primary candidate, 1 = first fallback, ...
}

// Manager traverses candidate chains. A value is safe for concurrent use
// across independent RouteRequest calls.
type Manager struct {
	cfg      Config
	logger   *zap.Logger
	attempts *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithLogger overrides the default no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithConfig overrides DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(m *Manager) { m.cfg = cfg }
}

// WithRegisterer registers the Manager's per-attempt counter and latency
// histogram against reg. Pass prometheus.NewRegistry() in tests so repeated
// Manager construction across test cases doesn't collide on the default
// registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(m *Manager) {
		if reg != nil {
			reg.MustRegister(m.attempts, m.latency)
		}
	}
}

// New builds a Manager with DefaultConfig and unregistered metrics unless
// overridden by options.
func New(opts ...Option) *Manager {
	m := &Manager{
		cfg:    DefaultConfig,
		logger: zap.NewNop(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_fallback_attempts_total",
			Help: "Count of fallback attempts by candidate and outcome.",
		}, []string{"candidate", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orchestrator_fallback_attempt_latency_seconds",
			Help:    "Latency of individual fallback attempts.",
			Buckets: prometheus.DefBuckets,
		}, []string{"candidate"}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cfg.SameModelRetries < 0 {
		m.cfg.SameModelRetries = DefaultConfig.SameModelRetries
	}
	if m.cfg.BackoffBase <= 0 {
		m.cfg.BackoffBase = DefaultConfig.BackoffBase
	}
	if m.cfg.BackoffCap <= 0 {
		m.cfg.BackoffCap = DefaultConfig.BackoffCap
	}
	return m
}

// Run traverses candidates in order, returning the first successful
// response. Each candidate gets up to cfg.SameModelRetries+1 attempts
// for ScopeSameModel errors; any ScopeNextModel error moves straight to
// the next candidate; any ScopeTerminal error aborts the whole chain
// immediately, regardless of how many candidates remain.
func (m *Manager) Run(ctx context.Context, candidates []string, attempt AttemptFunc, deadline time.Time, traceID string) (Result, error) {
	if len(candidates) == 0 {
		return Result{}, types.NewError(types.ErrNoCandidate, "no candidate model available").WithTraceID(traceID)
	}

	var lastErr error
	for depth, candidate := range candidates {
		if deadlineExceeded(deadline) {
			return Result{}, types.NewError(types.ErrCancelled, "deadline exceeded before candidate attempt").
				WithTraceID(traceID).WithModel(candidate)
		}

		resp, err := m.attemptWithRetry(ctx, candidate, attempt, deadline, traceID)
		if err == nil {
			return Result{Response: resp, Candidate: candidate, FallbackDepth: depth}, nil
		}
		lastErr = err

		if m.classify(err) == types.ScopeTerminal {
			return Result{}, err
		}
	}
	return Result{}, lastErr
}

// attemptWithRetry drives up to cfg.SameModelRetries+1 calls against a
// single candidate, retrying only on ScopeSameModel outcomes.
func (m *Manager) attemptWithRetry(ctx context.Context, candidate string, attempt AttemptFunc, deadline time.Time, traceID string) (types.APIResponse, error) {
	var lastErr error
	for try := 0; try <= m.cfg.SameModelRetries; try++ {
		if deadlineExceeded(deadline) {
			return types.APIResponse{}, types.NewError(types.ErrCancelled, "deadline exceeded before attempt").
				WithTraceID(traceID).WithModel(candidate)
		}

		start := time.Now()
		resp, err := attempt(ctx, candidate)
		elapsed := time.Since(start)

		if err == nil {
			m.record(traceID, candidate, try, OutcomeSuccess, elapsed)
			return resp, nil
		}

		scope := m.classify(err)
		outcome := OutcomeSkipped
		switch scope {
		case types.ScopeTerminal:
			outcome = OutcomeTerminal
		case types.ScopeSameModel:
			outcome = OutcomeRetried
		}
		m.record(traceID, candidate, try, outcome, elapsed)
		lastErr = err

		if scope != types.ScopeSameModel || try >= m.cfg.SameModelRetries {
			return types.APIResponse{}, err
		}

		delay := m.backoffDelay(try + 1)
		if waitExceedsDeadline(deadline, delay) {
			return types.APIResponse{}, types.NewError(types.ErrCancelled, "deadline exceeded during backoff wait").
				WithTraceID(traceID).WithModel(candidate).WithCause(lastErr)
		}
		select {
		case <-ctx.Done():
			return types.APIResponse{}, types.NewError(types.ErrCancelled, ctx.Err().Error()).WithTraceID(traceID)
		case <-time.After(delay):
		}
	}
	return types.APIResponse{}, lastErr
}

// classify extracts an error's retry scope, treating any non-*types.Error
// (which should not happen past the provider/executor boundary, but is
// handled defensively here) as ScopeNextModel.
func (m *Manager) classify(err error) types.RetryScope {
	oe := types.AsError(err)
	if oe == nil {
		return types.ScopeNextModel
	}
	return types.Scope(oe.Kind)
}

// backoffDelay computes the attempt-th same-model retry delay: exponential
// from BackoffBase, capped at BackoffCap, with +-JitterFraction jitter.
// attempt is 1-indexed (the first retry is attempt=1).
func (m *Manager) backoffDelay(attempt int) time.Duration {
	d := float64(m.cfg.BackoffBase) * math.Pow(2, float64(attempt-1))
	if d > float64(m.cfg.BackoffCap) {
		d = float64(m.cfg.BackoffCap)
	}
	jitter := d * m.cfg.JitterFraction
	d += (rand.Float64()*2 - 1) * jitter
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

func (m *Manager) record(traceID, candidate string, attempt int, outcome Outcome, latency time.Duration) {
	m.attempts.WithLabelValues(candidate, string(outcome)).Inc()
	m.latency.WithLabelValues(candidate).Observe(latency.Seconds())
	m.logger.Debug("fallback attempt",
		zap.String("trace_id", traceID),
		zap.String("candidate", candidate),
		zap.Int("attempt", attempt),
		zap.String("outcome", string(outcome)),
		zap.Duration("latency", latency),
	)
}

func deadlineExceeded(deadline time.Time) bool {
	return !deadline.IsZero() && time.Now().After(deadline)
}

func waitExceedsDeadline(deadline time.Time, delay time.Duration) bool {
	return !deadline.IsZero() && time.Now().Add(delay).After(deadline)
}
