package toolregistry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

func TestDispatchInvokesRegisteredHandler(t *testing.T) {
	r := New()
	err := r.Register(types.ToolSchema{Name: "echo"}, func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		return args, nil
	})
	require.NoError(t, err)

	result := r.Dispatch(context.Background(), types.ToolCall{Name: "echo", Arguments: json.RawMessage(`{"x":1}`)})
	assert.False(t, result.IsError())
	assert.JSONEq(t, `{"x":1}`, string(result.Result))
}

func TestDispatchUnknownToolReturnsError(t *testing.T) {
	r := New()
	result := r.Dispatch(context.Background(), types.ToolCall{Name: "missing"})
	assert.True(t, result.IsError())
}

func TestDispatchWrapsHandlerError(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(types.ToolSchema{Name: "boom"}, func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("kaboom")
	}))

	result := r.Dispatch(context.Background(), types.ToolCall{Name: "boom"})
	assert.True(t, result.IsError())
	assert.Contains(t, result.Err, "kaboom")
}

func TestSchemasReturnsSortedNames(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(types.ToolSchema{Name: "zeta"}, func(context.Context, json.RawMessage) (json.RawMessage, error) { return nil, nil }))
	require.NoError(t, r.Register(types.ToolSchema{Name: "alpha"}, func(context.Context, json.RawMessage) (json.RawMessage, error) { return nil, nil }))

	schemas := r.Schemas()
	require.Len(t, schemas, 2)
	assert.Equal(t, "alpha", schemas[0].Name)
	assert.Equal(t, "zeta", schemas[1].Name)
}

func TestRegisterRejectsEmptyName(t *testing.T) {
	r := New()
	err := r.Register(types.ToolSchema{}, func(context.Context, json.RawMessage) (json.RawMessage, error) { return nil, nil })
	assert.Error(t, err)
}
