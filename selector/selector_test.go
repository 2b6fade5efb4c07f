package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

type fakeCatalog struct {
	byID map[string]types.ModelDescriptor
	ids  []string
}

func newFakeCatalog(descs ...types.ModelDescriptor) *fakeCatalog {
	c := &fakeCatalog{byID: make(map[string]types.ModelDescriptor)}
	for _, d := range descs {
		c.byID[d.ID] = d
		c.ids = append(c.ids, d.ID)
	}
	return c
}

func (c *fakeCatalog) List() []types.ModelDescriptor {
	out := make([]types.ModelDescriptor, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *fakeCatalog) Get(idOrAlias string) (types.ModelDescriptor, bool) {
	d, ok := c.byID[idOrAlias]
	return d, ok
}

// fixedScorer scores by a fixed map, defaulting to 0.5.
type fixedScorer map[string]float64

func (f fixedScorer) Score(d types.ModelDescriptor, _ types.TaskRequirements) float64 {
	if s, ok := f[d.ID]; ok {
		return s
	}
	return 0.5
}

func TestSelectRanksByScoreDescending(t *testing.T) {
	catalog := newFakeCatalog(
		types.ModelDescriptor{ID: "a"},
		types.ModelDescriptor{ID: "b"},
		types.ModelDescriptor{ID: "c"},
	)
	scores := fixedScorer{"a": 0.9, "b": 0.95, "c": 0.1}
	sel := New(catalog, scores)

	primary, fallbacks, err := sel.Select(types.TaskRequirements{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "b", primary)
	assert.Equal(t, []string{"a", "c"}, fallbacks)
}

func TestSelectTieBreaksLexicographically(t *testing.T) {
	catalog := newFakeCatalog(
		types.ModelDescriptor{ID: "zeta"},
		types.ModelDescriptor{ID: "alpha"},
	)
	scores := fixedScorer{"zeta": 0.5, "alpha": 0.5}
	sel := New(catalog, scores)

	primary, _, err := sel.Select(types.TaskRequirements{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "alpha", primary)
}

func TestSelectExcludesExclusionSet(t *testing.T) {
	catalog := newFakeCatalog(
		types.ModelDescriptor{ID: "a"},
		types.ModelDescriptor{ID: "b"},
	)
	sel := New(catalog, fixedScorer{})

	primary, _, err := sel.Select(types.TaskRequirements{}, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, "b", primary)
}

func TestSelectReturnsNoCandidateWhenAllExcluded(t *testing.T) {
	catalog := newFakeCatalog(types.ModelDescriptor{ID: "a"}, types.ModelDescriptor{ID: "b"})
	sel := New(catalog, fixedScorer{})

	_, _, err := sel.Select(types.TaskRequirements{}, []string{"a", "b"})
	assert.ErrorIs(t, err, ErrNoCandidate)
}

func TestSelectHonorsGuideRecommendation(t *testing.T) {
	catalog := newFakeCatalog(
		types.ModelDescriptor{ID: "a"},
		types.ModelDescriptor{ID: "b"},
	)
	scores := fixedScorer{"a": 0.1, "b": 0.99}
	guide, err := LoadGuide([]byte(`
guide:
  general:
    recommended: [a]
`))
	require.NoError(t, err)
	sel := New(catalog, scores, WithGuide(guide))

	primary, _, err := sel.Select(types.TaskRequirements{TaskType: types.TaskGeneral}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a", primary)
}

func TestSelectHonorsGuideBlockList(t *testing.T) {
	catalog := newFakeCatalog(
		types.ModelDescriptor{ID: "a"},
		types.ModelDescriptor{ID: "b"},
	)
	scores := fixedScorer{"a": 0.99, "b": 0.5}
	guide, err := LoadGuide([]byte(`
guide:
  general:
    blocked: [a]
`))
	require.NoError(t, err)
	sel := New(catalog, scores, WithGuide(guide))

	primary, _, err := sel.Select(types.TaskRequirements{TaskType: types.TaskGeneral}, nil)
	require.NoError(t, err)
	assert.Equal(t, "b", primary)
}

func TestSelectCapsFallbackChainLength(t *testing.T) {
	catalog := newFakeCatalog(
		types.ModelDescriptor{ID: "a"},
		types.ModelDescriptor{ID: "b"},
		types.ModelDescriptor{ID: "c"},
		types.ModelDescriptor{ID: "d"},
	)
	sel := New(catalog, fixedScorer{}, WithMaxFallbacks(1))

	_, fallbacks, err := sel.Select(types.TaskRequirements{}, nil)
	require.NoError(t, err)
	assert.Len(t, fallbacks, 1)
}
