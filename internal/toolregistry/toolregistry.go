// Package toolregistry backs Orchestrator.RegisterTool: a name -> (schema,
// handler) map dispatched by the Conversation Executor on every tool call.
// Grounded on the teacher's llm/tools/executor.go DefaultRegistry
// (Register(name, fn, ToolMetadata) by name, looked up at dispatch time),
// trimmed of its streaming/retry machinery (out of scope — that belongs to
// the Fallback Manager's retry policy, not per-tool retries) down to the
// spec's single requirement: register once, dispatch by ToolCall.Name.
package toolregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

// HandlerFunc executes one tool invocation's arguments and returns its
// JSON-encoded result.
type HandlerFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

type entry struct {
	schema  types.ToolSchema
	handler HandlerFunc
}

// Registry is a thread-safe name -> (schema, handler) map.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{tools: make(map[string]entry)}
}

// Register adds a tool under schema.Name. Re-registering the same name
// replaces the previous entry, matching the teacher's own registry
// semantics (last registration wins, no error on overwrite).
func (r *Registry) Register(schema types.ToolSchema, handler HandlerFunc) error {
	if schema.Name == "" {
		return fmt.Errorf("toolregistry: schema missing name")
	}
	if handler == nil {
		return fmt.Errorf("toolregistry: tool %q missing handler", schema.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[schema.Name] = entry{schema: schema, handler: handler}
	return nil
}

// Schemas returns every registered tool's schema, sorted by name for
// deterministic advertisement to providers.
func (r *Registry) Schemas() []types.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]types.ToolSchema, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name].schema)
	}
	return out
}

// Dispatch looks up call.Name and invokes its handler, converting the
// outcome into a ToolResult. Matches executor.ToolHandler's signature, so a
// *Registry's Dispatch method can be passed directly to executor.New.
func (r *Registry) Dispatch(ctx context.Context, call types.ToolCall) types.ToolResult {
	r.mu.RLock()
	e, ok := r.tools[call.Name]
	r.mu.RUnlock()
	if !ok {
		return types.ToolResult{Name: call.Name, Err: fmt.Sprintf("unknown tool %q", call.Name)}
	}

	result, err := e.handler(ctx, call.Arguments)
	if err != nil {
		return types.ToolResult{Name: call.Name, Err: err.Error()}
	}
	return types.ToolResult{Name: call.Name, Result: result}
}
