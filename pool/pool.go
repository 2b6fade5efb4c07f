// Package pool implements the Client Pool (C7): a lazily-populated
// map[Provider]Client with single-flight instantiation and a credential
// availability snapshot the Model Scorer's hard filter queries. Grounded on
// the teacher's llm/registry.go ProviderRegistry for the lazy
// map + mutex-guarded-insert shape, extended with
// golang.org/x/sync/singleflight so concurrent first-callers for the same
// provider share one construction instead of racing (spec I4), which the
// teacher's own registry does not guarantee.
package pool

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/klappe-pm/lattice-orchestrator/providers"
	"github.com/klappe-pm/lattice-orchestrator/types"
)

// Factory constructs a Client for a provider on first use.
type Factory func() (providers.Client, error)

// Pool lazily owns one Client per Provider.
type Pool struct {
	mu          sync.Mutex
	clients     map[types.Provider]providers.Client
	factories   map[types.Provider]Factory
	available   map[types.Provider]bool
	group       singleflight.Group
	shutdown    bool
}

// New builds an empty Pool. Register factories with Register before first
// use; Register also records whether a provider's credentials are present
// (spec §4.5's availability snapshot).
func New() *Pool {
	return &Pool{
		clients:   make(map[types.Provider]providers.Client),
		factories: make(map[types.Provider]Factory),
		available: make(map[types.Provider]bool),
	}
}

// Register associates a provider with its lazy construction factory and
// records whether it is available (credentials present, or no credentials
// required as for "local").
func (p *Pool) Register(provider types.Provider, available bool, factory Factory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.factories[provider] = factory
	p.available[provider] = available
}

// Available reports whether provider's credentials are usable, per the most
// recent Register call. Satisfies scorer.Availability.
func (p *Pool) Available(provider types.Provider) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available[provider]
}

// Get returns provider's client, constructing it on first call. Concurrent
// callers for the same provider share a single construction (spec I4).
func (p *Pool) Get(provider types.Provider) (providers.Client, error) {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return nil, types.NewError(types.ErrProviderUnavailable, "client pool is shut down").WithProvider(string(provider))
	}
	if c, ok := p.clients[provider]; ok {
		p.mu.Unlock()
		return c, nil
	}
	if !p.available[provider] {
		p.mu.Unlock()
		return nil, types.NewError(types.ErrProviderUnavailable, "credentials unavailable").WithProvider(string(provider))
	}
	factory, ok := p.factories[provider]
	p.mu.Unlock()
	if !ok {
		return nil, types.NewError(types.ErrProviderUnavailable, "no factory registered").WithProvider(string(provider))
	}

	result, err, _ := p.group.Do(string(provider), func() (any, error) {
		p.mu.Lock()
		if c, ok := p.clients[provider]; ok {
			p.mu.Unlock()
			return c, nil
		}
		p.mu.Unlock()

		c, err := factory()
		if err != nil {
			return nil, err
		}
		if err := c.ValidateConfig(); err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.clients[provider] = c
		p.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(providers.Client), nil
}

// Shutdown closes every constructed client and refuses further Get calls.
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shutdown = true
	var errs []error
	for provider, c := range p.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", provider, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("pool shutdown: %v", errs)
	}
	return nil
}
