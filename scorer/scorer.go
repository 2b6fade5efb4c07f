// Package scorer implements the Model Scorer (C4): scoring a model
// descriptor against task requirements as a weighted sum of context, speed,
// cost, and capability sub-scores. Grounded on the teacher's
// llm/router/router.go, whose ModelCandidate carries the same shape of
// weighted sub-scores (CostWeight, LatencyWeight, QualityWeight) combined in
// WeightedRouter.Select — generalized here to the spec's fixed four-term
// formula with priority-based reweighting.
package scorer

import (
	"github.com/klappe-pm/lattice-orchestrator/types"
)

// Weights are the four sub-score coefficients, renormalized to sum to 1.
type Weights struct {
	Context    float64
	Speed      float64
	Cost       float64
	Capability float64
}

// DefaultWeights matches spec §4.2's baseline: context=0.20, speed=0.15,
// cost=0.15, capability=0.50.
var DefaultWeights = Weights{Context: 0.20, Speed: 0.15, Cost: 0.15, Capability: 0.50}

// Availability reports whether a provider's credentials are usable, queried
// against the Client Pool's availability snapshot (C7).
type Availability interface {
	Available(p types.Provider) bool
}

// Scorer scores descriptors against requirements.
type Scorer struct {
	weights Weights
	pool    Availability
}

// New builds a Scorer. pool may be nil, in which case every provider is
// treated as available — useful for tests that don't exercise credential
// gating.
func New(pool Availability, weights Weights) *Scorer {
	return &Scorer{weights: normalize(weights), pool: pool}
}

// NewDefault builds a Scorer with spec's default weights.
func NewDefault(pool Availability) *Scorer {
	return New(pool, DefaultWeights)
}

func normalize(w Weights) Weights {
	sum := w.Context + w.Speed + w.Cost + w.Capability
	if sum <= 0 {
		return DefaultWeights
	}
	return Weights{
		Context:    w.Context / sum,
		Speed:      w.Speed / sum,
		Cost:       w.Cost / sum,
		Capability: w.Capability / sum,
	}
}

// reweight applies spec §4.2's priority doubling: the named sub-score's
// weight doubles, then the whole set is renormalized.
func reweight(w Weights, priority types.Priority) Weights {
	switch priority {
	case types.PriorityQuality:
		w.Capability *= 2
	case types.PrioritySpeed:
		w.Speed *= 2
	case types.PriorityCost:
		w.Cost *= 2
	}
	return normalize(w)
}

// costSubScore maps a cost tier to the cost sub-score (1 - normalized price
// rank): free and budget score highest, premium lowest.
func costSubScore(tier types.CostTier) float64 {
	switch tier {
	case types.CostFree, types.CostBudget:
		return 1.0
	case types.CostStandard:
		return 0.6
	case types.CostPremium:
		return 0.2
	default:
		return 0.5
	}
}

func capabilitySubScore(required []types.Capability, have []types.Capability) float64 {
	if len(required) == 0 {
		return 0.5
	}
	haveSet := make(map[types.Capability]bool, len(have))
	for _, c := range have {
		haveSet[c] = true
	}
	matched := 0
	for _, c := range required {
		if haveSet[c] {
			matched++
		}
	}
	return float64(matched) / float64(len(required))
}

func contextSubScore(window int, min int) float64 {
	if min <= 0 || window >= min {
		return 1.0
	}
	return float64(window) / float64(min)
}

// Score computes a descriptor's fitness for the given requirements, in
// [0,1]. Returns 0 (a hard filter, not an error) when the descriptor lacks a
// capability required by req, or when its provider's credentials are
// unavailable in the Client Pool.
func (s *Scorer) Score(d types.ModelDescriptor, req types.TaskRequirements) float64 {
	required := req.RequiredCapabilities()
	for _, cap := range required {
		if !d.HasCapability(cap) {
			return 0
		}
	}
	if s.pool != nil && !s.pool.Available(d.Provider) {
		return 0
	}

	w := s.weights
	if req.Priority != "" {
		w = reweight(w, req.Priority)
	}

	context := contextSubScore(d.ContextWindow, req.MinContextWindow)
	speed := float64(d.Scores.Speed) / 100.0
	cost := costSubScore(d.CostTier)
	capability := capabilitySubScore(required, d.Capabilities)

	return w.Context*context + w.Speed*speed + w.Cost*cost + w.Capability*capability
}
