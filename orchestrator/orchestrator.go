// Package orchestrator implements the Orchestrator (C11): the single
// external entry point composing the Task Analyzer, Model Scorer, Model
// Selector, Client Pool, Conversation Executor, Fallback Manager, and Cost
// Tracker into one RouteRequest -> RouteResponse call. Grounded on the
// teacher's llm/resilient_provider.go as the composition-root pattern (wrap
// the lower layers, expose one clean call), generalized from "wrap one
// Provider" to "wrap the whole routing pipeline".
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	tiktoken "github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/klappe-pm/lattice-orchestrator/analyzer"
	"github.com/klappe-pm/lattice-orchestrator/config"
	"github.com/klappe-pm/lattice-orchestrator/cost"
	"github.com/klappe-pm/lattice-orchestrator/executor"
	"github.com/klappe-pm/lattice-orchestrator/fallback"
	"github.com/klappe-pm/lattice-orchestrator/internal/toolregistry"
	"github.com/klappe-pm/lattice-orchestrator/pool"
	"github.com/klappe-pm/lattice-orchestrator/pricing"
	"github.com/klappe-pm/lattice-orchestrator/providers"
	"github.com/klappe-pm/lattice-orchestrator/registry"
	"github.com/klappe-pm/lattice-orchestrator/scorer"
	"github.com/klappe-pm/lattice-orchestrator/selector"
	"github.com/klappe-pm/lattice-orchestrator/types"
)

// Catalog is the subset of *registry.Registry the Orchestrator depends on.
type Catalog interface {
	Get(idOrAlias string) (types.ModelDescriptor, bool)
	List() []types.ModelDescriptor
}

// Deps are an Orchestrator's fully-constructed components. Tests build this
// directly with fakes/mocks; NewFromConfig builds it from YAML + env vars
// for real use.
type Deps struct {
	Registry Catalog
	Pricing  *pricing.Table
	Analyzer *analyzer.Analyzer
	Selector *selector.Selector
	Pool     *pool.Pool
	Fallback *fallback.Manager
	Cost     *cost.Tracker
	Tools    *toolregistry.Registry
	Logger   *zap.Logger

	MaxFunctionCalls     int
	ToolTimeout          time.Duration
	HealthCacheTTL       time.Duration
	EmitFailedCostEvents bool
}

// Orchestrator is the top-level composition root (C11).
type Orchestrator struct {
	registry Catalog
	analyzer *analyzer.Analyzer
	selector *selector.Selector
	pool     *pool.Pool
	fallback *fallback.Manager
	cost     *cost.Tracker
	tools    *toolregistry.Registry
	logger   *zap.Logger

	maxFunctionCalls     int
	toolTimeout          time.Duration
	healthCacheTTL       time.Duration
	emitFailedCostEvents bool

	encoder *tiktoken.Tiktoken

	healthMu    sync.RWMutex
	healthCache map[types.Provider]healthEntry
	healthGroup singleflight.Group
}

type healthEntry struct {
	healthy   bool
	checkedAt time.Time
}

// New builds an Orchestrator from already-constructed components.
func New(deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.MaxFunctionCalls <= 0 {
		deps.MaxFunctionCalls = executor.DefaultConfig.MaxIterations
	}
	if deps.ToolTimeout <= 0 {
		deps.ToolTimeout = executor.DefaultConfig.ToolTimeout
	}
	if deps.HealthCacheTTL <= 0 {
		deps.HealthCacheTTL = 60 * time.Second
	}
	if deps.Tools == nil {
		deps.Tools = toolregistry.New()
	}

	// tiktoken is a best-effort pre-flight optimization (spec §4.9's
	// context-window fit check), not a correctness requirement: if the
	// encoding table can't be loaded, estimateTokens degrades to "unknown"
	// and candidates are never pre-filtered on size, relying on the
	// provider's own CONTEXT_TOO_LONG error instead.
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		deps.Logger.Warn("tiktoken encoding unavailable, skipping context pre-flight filter", zap.Error(err))
		encoder = nil
	}

	return &Orchestrator{
		registry:             deps.Registry,
		analyzer:             deps.Analyzer,
		selector:             deps.Selector,
		pool:                 deps.Pool,
		fallback:             deps.Fallback,
		cost:                 deps.Cost,
		tools:                deps.Tools,
		logger:               deps.Logger,
		maxFunctionCalls:     deps.MaxFunctionCalls,
		toolTimeout:          deps.ToolTimeout,
		healthCacheTTL:       deps.HealthCacheTTL,
		emitFailedCostEvents: deps.EmitFailedCostEvents,
		encoder:              encoder,
		healthCache:          make(map[types.Provider]healthEntry),
	}
}

// NewFromConfig builds a production Orchestrator: loads the registry, price
// table, analyzer patterns, and (optional) selector guide from cfg's paths,
// and registers all eight provider adapters against the Client Pool with
// their availability gated by config.CredentialAvailable.
func NewFromConfig(cfg *config.Config, logger *zap.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	reg, err := registry.LoadFile(cfg.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load registry: %w", err)
	}
	priceTable, err := pricing.LoadFile(cfg.PricingPath)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load pricing: %w", err)
	}
	if err := priceTable.Validate(reg.List()); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	an, err := analyzer.LoadFile(cfg.AnalyzerPatterns, analyzer.WithLogger(logger), analyzer.WithCacheSize(cfg.AnalyzerCacheSize))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load analyzer patterns: %w", err)
	}

	clientPool := pool.New()
	registerProviders(clientPool, logger)

	sc := scorer.NewDefault(clientPool)

	selOpts := []selector.Option{selector.WithMaxFallbacks(cfg.MaxFallbacks)}
	if cfg.SelectorGuidePath != "" {
		if data, err := os.ReadFile(cfg.SelectorGuidePath); err == nil {
			guide, err := selector.LoadGuide(data)
			if err != nil {
				return nil, fmt.Errorf("orchestrator: parse selector guide: %w", err)
			}
			selOpts = append(selOpts, selector.WithGuide(guide))
		}
	}
	sel := selector.New(reg, sc, selOpts...)

	fb := fallback.New(fallback.WithLogger(logger))
	ct := cost.New(priceTable, cost.WithCapacity(cfg.CostBufferCapacity), cost.WithLogger(logger))

	return New(Deps{
		Registry:             reg,
		Pricing:              priceTable,
		Analyzer:             an,
		Selector:             sel,
		Pool:                 clientPool,
		Fallback:             fb,
		Cost:                 ct,
		Logger:               logger,
		MaxFunctionCalls:     cfg.MaxFunctionCalls,
		ToolTimeout:          cfg.ToolTimeout,
		HealthCacheTTL:       cfg.HealthCacheTTL,
		EmitFailedCostEvents: cfg.EmitFailedCostEvents,
	}), nil
}

func registerProviders(p *pool.Pool, logger *zap.Logger) {
	p.Register(types.ProviderOpenAI, config.CredentialAvailable(types.ProviderOpenAI), func() (providers.Client, error) {
		return providers.NewOpenAI(logger), nil
	})
	p.Register(types.ProviderAnthropic, config.CredentialAvailable(types.ProviderAnthropic), func() (providers.Client, error) {
		return providers.NewAnthropic(logger), nil
	})
	p.Register(types.ProviderGoogle, config.CredentialAvailable(types.ProviderGoogle), func() (providers.Client, error) {
		return providers.NewGoogle(logger), nil
	})
	p.Register(types.ProviderXAI, config.CredentialAvailable(types.ProviderXAI), func() (providers.Client, error) {
		return providers.NewXAI(logger), nil
	})
	p.Register(types.ProviderAzure, config.CredentialAvailable(types.ProviderAzure), func() (providers.Client, error) {
		deployment := os.Getenv("AZURE_OPENAI_DEPLOYMENT")
		apiVersion := os.Getenv("AZURE_OPENAI_API_VERSION")
		if apiVersion == "" {
			apiVersion = "2024-02-15-preview"
		}
		return providers.NewAzure(deployment, apiVersion, logger), nil
	})
	p.Register(types.ProviderDial, config.CredentialAvailable(types.ProviderDial), func() (providers.Client, error) {
		return providers.NewDial(logger), nil
	})
	p.Register(types.ProviderLocal, config.CredentialAvailable(types.ProviderLocal), func() (providers.Client, error) {
		return providers.NewLocal(logger), nil
	})
	p.Register(types.ProviderBedrock, config.CredentialAvailable(types.ProviderBedrock), func() (providers.Client, error) {
		return providers.NewBedrock(logger)
	})
}

// RegisterTool adds a tool the Conversation Executor can dispatch during
// any future Route call.
func (o *Orchestrator) RegisterTool(schema types.ToolSchema, handler toolregistry.HandlerFunc) error {
	return o.tools.Register(schema, handler)
}

// ListModels returns every registered model descriptor.
func (o *Orchestrator) ListModels() []types.ModelDescriptor {
	return o.registry.List()
}

// Health reports the current health of every provider backing a registered
// model, refreshed at most once per HealthCacheTTL.
func (o *Orchestrator) Health(ctx context.Context) map[types.Provider]bool {
	out := make(map[types.Provider]bool)
	for _, provider := range o.distinctProviders() {
		out[provider] = o.providerHealthy(ctx, provider)
	}
	return out
}

func (o *Orchestrator) distinctProviders() []types.Provider {
	seen := make(map[types.Provider]bool)
	var out []types.Provider
	for _, d := range o.registry.List() {
		if !seen[d.Provider] {
			seen[d.Provider] = true
			out = append(out, d.Provider)
		}
	}
	return out
}

func (o *Orchestrator) providerHealthy(ctx context.Context, provider types.Provider) bool {
	o.healthMu.RLock()
	entry, ok := o.healthCache[provider]
	o.healthMu.RUnlock()
	if ok && time.Since(entry.checkedAt) < o.healthCacheTTL {
		return entry.healthy
	}

	result, _, _ := o.healthGroup.Do(string(provider), func() (any, error) {
		healthy := o.pool.Available(provider)
		if healthy {
			client, err := o.pool.Get(provider)
			if err != nil {
				healthy = false
			} else if err := client.HealthCheck(ctx); err != nil {
				healthy = false
			}
		}
		o.healthMu.Lock()
		o.healthCache[provider] = healthEntry{healthy: healthy, checkedAt: time.Now()}
		o.healthMu.Unlock()
		return healthy, nil
	})
	return result.(bool)
}

// Shutdown closes the Client Pool, aborting if grace elapses first.
func (o *Orchestrator) Shutdown(grace time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- o.pool.Shutdown() }()
	select {
	case err := <-done:
		return err
	case <-time.After(grace):
		return types.NewError(types.ErrInternal, "shutdown exceeded grace period")
	}
}

// Route is the orchestrator's single external entry point, implementing the
// RouteRequest pseudocode of spec §4.9.
func (o *Orchestrator) Route(ctx context.Context, req types.RouteRequest) (types.RouteResponse, error) {
	traceID := req.TraceID
	if traceID == "" {
		traceID = uuid.New().String()
	}

	reqs := o.analyzer.Analyze(req.Prompt)
	if req.TaskHint != "" {
		reqs.TaskType = req.TaskHint
	}
	if req.Priority != "" {
		reqs.Priority = req.Priority
	}

	primary, chain, err := o.selector.Select(reqs, nil)
	if err != nil {
		return types.RouteResponse{}, err
	}
	candidates := append([]string{primary}, chain...)
	if req.ModelHint != "" {
		candidates = prependUnique(req.ModelHint, candidates)
	}

	messages := req.Messages
	if len(messages) == 0 {
		messages = []types.Message{{Role: types.RoleUser, Content: req.Prompt}}
	}

	candidates = o.filterByContextWindow(candidates, o.estimateTokens(messages))
	candidates = o.filterAvailable(candidates)
	if len(candidates) == 0 {
		return types.RouteResponse{}, types.NewError(types.ErrNoCandidate, "no provider available for any candidate").WithTraceID(traceID)
	}

	attempt := func(ctx context.Context, candidateID string) (types.APIResponse, error) {
		descriptor, ok := o.registry.Get(candidateID)
		if !ok {
			return types.APIResponse{}, types.NewError(types.ErrNoCandidate, "unknown candidate "+candidateID).WithTraceID(traceID)
		}
		client, err := o.pool.Get(descriptor.Provider)
		if err != nil {
			return types.APIResponse{}, err
		}
		exec := executor.New(client, o.tools.Dispatch, executor.Config{
			MaxIterations: o.maxFunctionCalls,
			ToolTimeout:   o.toolTimeout,
		}, o.logger)
		return exec.Execute(ctx, descriptor.APIName, messages, req.Tools, req.Deadline, traceID)
	}

	result, err := o.fallback.Run(ctx, candidates, attempt, req.Deadline, traceID)
	if err != nil {
		if o.emitFailedCostEvents {
			o.recordFailedEvent(traceID, candidates[0], reqs.TaskType)
		}
		return types.RouteResponse{}, err
	}

	descriptor, _ := o.registry.Get(result.Candidate)
	status := types.StatusSuccess
	if result.FallbackDepth > 0 {
		status = types.StatusFallbackUsed
	}

	event, err := o.cost.Record(traceID, time.Now(), descriptor.Provider, descriptor.ID, descriptor.APIName,
		reqs.TaskType, result.Response.Usage, status, result.FallbackDepth)
	if err != nil {
		return types.RouteResponse{}, err
	}

	resp := result.Response
	return types.RouteResponse{Response: &resp, CostEvent: &event}, nil
}

// recordFailedEvent records a zero-usage, zero-cost status=failed CostEvent
// attributed to the first candidate in the chain, when EmitFailedCostEvents
// is on (spec S6's "test both modes" for failed-run billing). Best-effort:
// a recording error here must not mask the original route failure, so it is
// only logged.
func (o *Orchestrator) recordFailedEvent(traceID, candidateID string, taskType types.TaskType) {
	descriptor, ok := o.registry.Get(candidateID)
	if !ok {
		return
	}
	if _, err := o.cost.Record(traceID, time.Now(), descriptor.Provider, descriptor.ID, descriptor.APIName,
		taskType, types.Usage{}, types.StatusFailed, 0); err != nil {
		o.logger.Warn("failed to record failed-status cost event", zap.String("trace_id", traceID), zap.Error(err))
	}
}

// estimateTokens returns a pre-flight token estimate for the conversation so
// far, or 0 if no encoder is available (disabling the context pre-filter).
func (o *Orchestrator) estimateTokens(messages []types.Message) int {
	if o.encoder == nil {
		return 0
	}
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(m.Content)
		sb.WriteByte('\n')
	}
	return len(o.encoder.Encode(sb.String(), nil, nil))
}

// filterByContextWindow drops candidates whose registry-declared context
// window can't fit estimatedTokens. If every candidate would be dropped,
// the original list is returned unfiltered instead — a provider's own
// CONTEXT_TOO_LONG error is a more informative failure than a bare
// NoCandidate when the estimate is merely conservative.
func (o *Orchestrator) filterByContextWindow(candidates []string, estimatedTokens int) []string {
	if estimatedTokens <= 0 {
		return candidates
	}
	kept := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if d, ok := o.registry.Get(id); ok && d.ContextWindow < estimatedTokens {
			continue
		}
		kept = append(kept, id)
	}
	if len(kept) == 0 {
		return candidates
	}
	return kept
}

// filterAvailable drops candidates whose provider has no usable
// credentials, per the Client Pool's availability snapshot.
func (o *Orchestrator) filterAvailable(candidates []string) []string {
	kept := make([]string, 0, len(candidates))
	for _, id := range candidates {
		d, ok := o.registry.Get(id)
		if !ok {
			continue
		}
		if o.pool.Available(d.Provider) {
			kept = append(kept, id)
		}
	}
	return kept
}

// prependUnique puts hint first, removing any later duplicate occurrence.
func prependUnique(hint string, candidates []string) []string {
	out := make([]string, 0, len(candidates)+1)
	out = append(out, hint)
	for _, c := range candidates {
		if c != hint {
			out = append(out, c)
		}
	}
	return out
}
