// Package providers implements the Provider Clients (C6): one capability
// adapter per upstream vendor, each backed by raw net/http + encoding/json
// rather than a vendor SDK — grounded directly on the teacher's
// llm/providers/openai and llm/providers/common.go, which hand-roll HTTP
// clients for every provider (OpenAI, Anthropic, etc.) even where official
// Go SDKs exist. That choice is kept here rather than reaching for
// anthropic-sdk-go/openai-go: the teacher's own developers never import
// those SDKs in the concrete provider files, only in now-unused corners of
// go.mod (see DESIGN.md). Bedrock is the one exception: it calls the AWS SDK
// v2 bedrockruntime client (see bedrock.go).
package providers

import (
	"context"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

// Client is the capability set every provider adapter must satisfy. The
// scheduler depends on nothing beyond this set (spec §4.4).
type Client interface {
	// ValidateConfig is called exactly once at construction.
	ValidateConfig() error
	// HealthCheck performs a bounded, quota-cheap probe (e.g. list models).
	HealthCheck(ctx context.Context) error
	// ChatCompletion issues one request/response round-trip.
	ChatCompletion(ctx context.Context, req types.APIRequest) (types.APIResponse, error)
	// Close releases connections. Idempotent.
	Close() error
}

// Credentials is a provider-agnostic key/value credential map. No adapter
// constructor in this package takes it: each adapter reads its credentials
// from environment variables in its constructor.
type Credentials map[string]string
