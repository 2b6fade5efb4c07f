package fallback

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

func newTestManager(cfg Config) *Manager {
	return New(WithConfig(cfg), WithRegisterer(prometheus.NewRegistry()))
}

var fastCfg = Config{
	SameModelRetries: 1,
	BackoffBase:      time.Millisecond,
	BackoffCap:       5 * time.Millisecond,
	JitterFraction:   0,
}

func TestRunReturnsFirstSuccessfulCandidate(t *testing.T) {
	m := newTestManager(fastCfg)
	calls := map[string]int{}
	attempt := func(ctx context.Context, candidate string) (types.APIResponse, error) {
		calls[candidate]++
		return types.APIResponse{ModelAPIName: candidate, FinishReason: types.FinishStop}, nil
	}

	result, err := m.Run(context.Background(), []string{"model-a", "model-b"}, attempt, time.Time{}, "trace-1")
	require.NoError(t, err)
	assert.Equal(t, "model-a", result.Candidate)
	assert.Equal(t, 0, result.FallbackDepth)
	assert.Equal(t, 1, calls["model-a"])
	assert.Equal(t, 0, calls["model-b"])
}

func TestRunRetriesSameModelOnTransientThenSucceeds(t *testing.T) {
	m := newTestManager(fastCfg)
	calls := 0
	attempt := func(ctx context.Context, candidate string) (types.APIResponse, error) {
		calls++
		if calls == 1 {
			return types.APIResponse{}, types.NewError(types.ErrTransientProvider, "blip")
		}
		return types.APIResponse{ModelAPIName: candidate}, nil
	}

	result, err := m.Run(context.Background(), []string{"model-a", "model-b"}, attempt, time.Time{}, "trace-2")
	require.NoError(t, err)
	assert.Equal(t, "model-a", result.Candidate)
	assert.Equal(t, 0, result.FallbackDepth)
	assert.Equal(t, 2, calls)
}

func TestRunSkipsToNextModelOnScopeNextModel(t *testing.T) {
	m := newTestManager(fastCfg)
	var seen []string
	attempt := func(ctx context.Context, candidate string) (types.APIResponse, error) {
		seen = append(seen, candidate)
		if candidate == "model-a" {
			return types.APIResponse{}, types.NewError(types.ErrProviderUnavailable, "down")
		}
		return types.APIResponse{ModelAPIName: candidate}, nil
	}

	result, err := m.Run(context.Background(), []string{"model-a", "model-b"}, attempt, time.Time{}, "trace-3")
	require.NoError(t, err)
	assert.Equal(t, "model-b", result.Candidate)
	assert.Equal(t, 1, result.FallbackDepth)
	assert.Equal(t, []string{"model-a", "model-b"}, seen)
}

func TestRunAbortsChainOnTerminalError(t *testing.T) {
	m := newTestManager(fastCfg)
	var seen []string
	attempt := func(ctx context.Context, candidate string) (types.APIResponse, error) {
		seen = append(seen, candidate)
		return types.APIResponse{}, types.NewError(types.ErrBillingIntegrity, "aggregate mismatch")
	}

	_, err := m.Run(context.Background(), []string{"model-a", "model-b"}, attempt, time.Time{}, "trace-4")
	require.Error(t, err)
	orchErr := types.AsError(err)
	require.NotNil(t, orchErr)
	assert.Equal(t, types.ErrBillingIntegrity, orchErr.Kind)
	assert.Equal(t, []string{"model-a"}, seen)
}

func TestRunReturnsNoCandidateWhenChainEmpty(t *testing.T) {
	m := newTestManager(fastCfg)
	_, err := m.Run(context.Background(), nil, func(ctx context.Context, candidate string) (types.APIResponse, error) {
		return types.APIResponse{}, nil
	}, time.Time{}, "trace-5")
	require.Error(t, err)
	orchErr := types.AsError(err)
	require.NotNil(t, orchErr)
	assert.Equal(t, types.ErrNoCandidate, orchErr.Kind)
}

func TestRunRespectsExpiredDeadline(t *testing.T) {
	m := newTestManager(fastCfg)
	called := false
	attempt := func(ctx context.Context, candidate string) (types.APIResponse, error) {
		called = true
		return types.APIResponse{}, nil
	}

	_, err := m.Run(context.Background(), []string{"model-a"}, attempt, time.Now().Add(-time.Second), "trace-6")
	require.Error(t, err)
	assert.False(t, called)
	orchErr := types.AsError(err)
	require.NotNil(t, orchErr)
	assert.Equal(t, types.ErrCancelled, orchErr.Kind)
}

func TestRunExhaustsChainAndReturnsLastError(t *testing.T) {
	m := newTestManager(Config{SameModelRetries: 0, BackoffBase: time.Millisecond, BackoffCap: time.Millisecond})
	attempt := func(ctx context.Context, candidate string) (types.APIResponse, error) {
		return types.APIResponse{}, types.NewError(types.ErrProviderUnavailable, "down: "+candidate).WithModel(candidate)
	}

	_, err := m.Run(context.Background(), []string{"model-a", "model-b"}, attempt, time.Time{}, "trace-7")
	require.Error(t, err)
	orchErr := types.AsError(err)
	require.NotNil(t, orchErr)
	assert.Equal(t, "model-b", orchErr.Model)
}

func TestBackoffDelayStaysWithinJitterBounds(t *testing.T) {
	m := newTestManager(Config{BackoffBase: 100 * time.Millisecond, BackoffCap: time.Second, JitterFraction: 0.2})
	for attempt := 1; attempt <= 5; attempt++ {
		d := m.backoffDelay(attempt)
		assert.True(t, d >= 0)
		assert.True(t, d <= time.Second+time.Second/5)
	}
}
