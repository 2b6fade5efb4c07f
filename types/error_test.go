package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorWrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(ErrTransientProvider, "upstream failed").WithCause(cause).WithProvider("openai")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "TRANSIENT_PROVIDER")
	assert.Contains(t, err.Error(), "boom")
}

func TestAsErrorRecoversDirectError(t *testing.T) {
	err := NewError(ErrRateLimited, "too many requests")
	oe := AsError(err)
	assert.NotNil(t, oe)
	assert.Equal(t, ErrRateLimited, oe.Kind)
}

func TestAsErrorRecoversWrappedError(t *testing.T) {
	inner := NewError(ErrProviderUnavailable, "no route to host")
	wrapped := fmt.Errorf("dial failed: %w", inner)

	oe := AsError(wrapped)
	assert.NotNil(t, oe)
	assert.Equal(t, ErrProviderUnavailable, oe.Kind)
}

func TestAsErrorReturnsNilForPlainError(t *testing.T) {
	assert.Nil(t, AsError(errors.New("plain")))
	assert.Nil(t, AsError(nil))
}

func TestScopeClassifiesTaxonomy(t *testing.T) {
	cases := map[ErrorCode]RetryScope{
		ErrBillingIntegrity:    ScopeTerminal,
		ErrNoCandidate:         ScopeTerminal,
		ErrCancelled:           ScopeTerminal,
		ErrTransientProvider:   ScopeSameModel,
		ErrRateLimited:         ScopeSameModel,
		ErrProviderUnavailable: ScopeNextModel,
		ErrContextTooLong:      ScopeNextModel,
		ErrContentRejected:     ScopeNextModel,
	}
	for kind, want := range cases {
		assert.Equal(t, want, Scope(kind), "kind=%s", kind)
	}
}
