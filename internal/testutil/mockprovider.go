// Package testutil provides mock provider clients and fixture data for
// tests across the module, analogous to the teacher's
// testutil/mocks/provider.go and testutil/fixtures: a builder-style
// MockProvider supporting canned responses, errors, tool calls, and
// "fail after N calls" flakiness, plus sample YAML fixtures for the
// registry/pricing/analyzer/selector configs.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

// MockProviderCall records one ChatCompletion invocation for assertions.
type MockProviderCall struct {
	Request  types.APIRequest
	Response types.APIResponse
	Error    error
}

// MockProvider is a scriptable providers.Client implementation.
type MockProvider struct {
	mu sync.Mutex

	response         string
	toolCall         *types.ToolCall
	err              error
	healthErr        error
	promptTokens     int
	completionTokens int
	failAfter        int
	completionFunc   func(ctx context.Context, req types.APIRequest) (types.APIResponse, error)

	callCount int
	calls     []MockProviderCall
}

// NewMockProvider returns a MockProvider with a plain "Mock response" and
// 10/20 prompt/completion tokens, matching the teacher's own defaults.
func NewMockProvider() *MockProvider {
	return &MockProvider{response: "Mock response", promptTokens: 10, completionTokens: 20}
}

func (m *MockProvider) WithResponse(response string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

func (m *MockProvider) WithHealthCheckError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthErr = err
	return m
}

func (m *MockProvider) WithToolCall(call types.ToolCall) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCall = &call
	return m
}

func (m *MockProvider) WithTokenUsage(prompt, completion int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promptTokens = prompt
	m.completionTokens = completion
	return m
}

func (m *MockProvider) WithFailAfter(n int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	return m
}

func (m *MockProvider) WithCompletionFunc(fn func(ctx context.Context, req types.APIRequest) (types.APIResponse, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionFunc = fn
	return m
}

func (m *MockProvider) ValidateConfig() error { return nil }

func (m *MockProvider) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthErr
}

func (m *MockProvider) Close() error { return nil }

// ChatCompletion implements providers.Client.
func (m *MockProvider) ChatCompletion(ctx context.Context, req types.APIRequest) (types.APIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++
	if m.failAfter > 0 && m.callCount > m.failAfter {
		err := errors.New("mock provider: configured to fail after N calls")
		m.calls = append(m.calls, MockProviderCall{Request: req, Error: err})
		return types.APIResponse{}, err
	}
	if m.err != nil {
		m.calls = append(m.calls, MockProviderCall{Request: req, Error: m.err})
		return types.APIResponse{}, m.err
	}
	if m.completionFunc != nil {
		resp, err := m.completionFunc(ctx, req)
		m.calls = append(m.calls, MockProviderCall{Request: req, Response: resp, Error: err})
		return resp, err
	}

	resp := types.APIResponse{
		Content:      m.response,
		ModelAPIName: req.ModelAPIName,
		FinishReason: types.FinishStop,
		Usage: types.Usage{
			PromptTokens:     m.promptTokens,
			CompletionTokens: m.completionTokens,
			TotalTokens:      m.promptTokens + m.completionTokens,
		},
	}
	if m.toolCall != nil {
		resp.ToolCall = m.toolCall
		resp.FinishReason = types.FinishToolCall
	}
	m.calls = append(m.calls, MockProviderCall{Request: req, Response: resp})
	return resp, nil
}

func (m *MockProvider) GetCalls() []MockProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockProviderCall{}, m.calls...)
}

func (m *MockProvider) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.callCount = 0
	m.err = nil
}

// NewSuccessProvider returns a MockProvider that always succeeds with response.
func NewSuccessProvider(response string) *MockProvider {
	return NewMockProvider().WithResponse(response)
}

// NewErrorProvider returns a MockProvider that always fails with err.
func NewErrorProvider(err error) *MockProvider {
	return NewMockProvider().WithError(err)
}

// NewToolCallProvider returns a MockProvider whose every response is a tool call.
func NewToolCallProvider(call types.ToolCall) *MockProvider {
	return NewMockProvider().WithToolCall(call)
}

// NewFlakeyProvider returns a MockProvider that fails after the first
// failAfter calls, then keeps failing (matches teacher's NewFlakeyProvider,
// but without the recovery semantics since no caller in this module needs
// "succeeds again later").
func NewFlakeyProvider(failAfter int, response string) *MockProvider {
	return NewMockProvider().WithResponse(response).WithFailAfter(failAfter)
}
