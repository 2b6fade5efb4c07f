// Package selector implements the Model Selector (C5): turning scored
// descriptors into an ordered (primary, fallback_ids) candidate chain,
// honoring an optional guide's recommendations/blocks, with lexicographic
// tie-breaking for determinism. Grounded on the teacher's
// llm/router/router.go RouteResult/Select contract and its
// weights map[string][]config.RoutingWeight keyed by task type, which plays
// the same "per task type guidance" role as the spec's guide file.
package selector

import (
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

// ErrNoCandidate is the spec's NoCandidate error: the selector has nothing
// left to offer after hard filters, exclusions, and guide blocks.
var ErrNoCandidate = types.NewError(types.ErrNoCandidate, "no candidate model available")

// guideEntry is one task type's recommendation/block/fallback rules.
type guideEntry struct {
	Recommended   []string `yaml:"recommended"`
	Blocked       []string `yaml:"blocked"`
	FallbackChain []string `yaml:"fallback_chain"`
}

// Guide is optional per-task-type routing guidance.
type Guide struct {
	entries map[types.TaskType]guideEntry
}

type guideFile struct {
	Guide map[string]guideEntry `yaml:"guide"`
}

// LoadGuide parses an optional YAML guide. A nil Guide is valid and means
// "no guidance" — the selector falls through to pure scoring.
func LoadGuide(data []byte) (*Guide, error) {
	var gf guideFile
	if err := yaml.Unmarshal(data, &gf); err != nil {
		return nil, err
	}
	g := &Guide{entries: make(map[types.TaskType]guideEntry, len(gf.Guide))}
	for taskType, entry := range gf.Guide {
		g.entries[types.TaskType(taskType)] = entry
	}
	return g, nil
}

// Catalog is the read-only model source the selector scores against.
type Catalog interface {
	List() []types.ModelDescriptor
	Get(idOrAlias string) (types.ModelDescriptor, bool)
}

// Scorer computes a descriptor's fitness for a set of requirements.
type Scorer interface {
	Score(d types.ModelDescriptor, req types.TaskRequirements) float64
}

// Selector chooses a primary model and an ordered fallback chain.
type Selector struct {
	catalog      Catalog
	scorer       Scorer
	guide        *Guide
	maxFallbacks int
}

// Option configures a Selector.
type Option func(*Selector)

// WithGuide attaches optional routing guidance.
func WithGuide(g *Guide) Option {
	return func(s *Selector) { s.guide = g }
}

// WithMaxFallbacks overrides the default fallback-chain length (5).
func WithMaxFallbacks(n int) Option {
	return func(s *Selector) { s.maxFallbacks = n }
}

// New builds a Selector over catalog, scoring with scorer.
func New(catalog Catalog, scorer Scorer, opts ...Option) *Selector {
	s := &Selector{catalog: catalog, scorer: scorer, maxFallbacks: 5}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns (primary, fallback_ids) for req, excluding any id in
// exclusions. Returns ErrNoCandidate if nothing survives.
func (s *Selector) Select(req types.TaskRequirements, exclusions []string) (string, []string, error) {
	var blocked []string
	var guideRecommended []string
	var guideFallbackChain []string
	if s.guide != nil {
		if entry, ok := s.guide.entries[req.TaskType]; ok {
			blocked = entry.Blocked
			guideRecommended = entry.Recommended
			guideFallbackChain = entry.FallbackChain
		}
	}

	excluded := make(map[string]bool, len(exclusions)+len(blocked))
	for _, id := range exclusions {
		excluded[id] = true
	}
	for _, id := range blocked {
		excluded[id] = true
	}

	// Step 1: guide's explicit recommendation, if it passes hard filters.
	for _, id := range guideRecommended {
		if excluded[id] {
			continue
		}
		d, ok := s.catalog.Get(id)
		if !ok {
			continue
		}
		if s.scorer.Score(d, req) <= 0 {
			continue
		}
		chain := s.buildChain(id, guideFallbackChain, req, excluded)
		return id, chain, nil
	}

	// Step 2: score every descriptor, drop <= 0 or excluded, rank.
	ranked := s.rank(req, excluded)
	if len(ranked) == 0 {
		return "", nil, ErrNoCandidate
	}
	primary := ranked[0]
	fallbacks := ranked[1:]
	if len(fallbacks) > s.maxFallbacks {
		fallbacks = fallbacks[:s.maxFallbacks]
	}
	return primary, fallbacks, nil
}

// buildChain assembles a fallback chain from guide hints, falling back to
// scored ranking to fill out remaining slots, still respecting exclusions
// and the max-fallbacks cap.
func (s *Selector) buildChain(primary string, guideChain []string, req types.TaskRequirements, excluded map[string]bool) []string {
	var chain []string
	seen := map[string]bool{primary: true}
	for _, id := range guideChain {
		if excluded[id] || seen[id] {
			continue
		}
		if d, ok := s.catalog.Get(id); ok && s.scorer.Score(d, req) > 0 {
			chain = append(chain, id)
			seen[id] = true
		}
	}
	if len(chain) < s.maxFallbacks {
		for _, id := range s.rank(req, excluded) {
			if seen[id] {
				continue
			}
			chain = append(chain, id)
			seen[id] = true
			if len(chain) >= s.maxFallbacks {
				break
			}
		}
	}
	if len(chain) > s.maxFallbacks {
		chain = chain[:s.maxFallbacks]
	}
	return chain
}

type scored struct {
	id    string
	score float64
}

// rank returns all non-excluded, positively-scored model ids sorted
// descending by score, with lexicographic tie-break on id (spec I2).
func (s *Selector) rank(req types.TaskRequirements, excluded map[string]bool) []string {
	descriptors := s.catalog.List()
	var candidates []scored
	for _, d := range descriptors {
		if excluded[d.ID] {
			continue
		}
		sc := s.scorer.Score(d, req)
		if sc <= 0 {
			continue
		}
		candidates = append(candidates, scored{id: d.ID, score: sc})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	return ids
}
