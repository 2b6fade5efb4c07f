// Package analyzer implements the Task Analyzer (C3): classifying a prompt
// into a TaskType with a confidence score, plus deriving capability and
// context-window requirements. Grounded on the teacher's llm/router package
// for the overall "load rules from config, compile once, score
// deterministically" shape (llm/router/router.go's WeightedRouter,
// llm/router/prefix_router.go's PrefixRouter) — generalized here from prefix
// string matching to the spec's weighted regex patterns, and extended with an
// LRU result cache via github.com/hashicorp/golang-lru/v2 (promoted from
// simple-container-com-api's indirect dependency, since the teacher has no
// caching layer of its own to imitate for this concern).
package analyzer

import (
	"crypto/md5"
	"os"
	"regexp"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

// patternYAML is one (regex, weight) rule for a task type, in declaration
// order within its type's list.
type patternYAML struct {
	Pattern string  `yaml:"pattern"`
	Weight  float64 `yaml:"weight"`
}

type fileFormat struct {
	// Patterns maps task_type -> ordered list of (pattern, weight) rules.
	Patterns map[string][]patternYAML `yaml:"patterns"`
	// Order preserves declaration order across task types for tie-breaking,
	// since Go map iteration is not deterministic.
	Order []string `yaml:"order"`
}

type rule struct {
	taskType types.TaskType
	re       *regexp.Regexp
	weight   float64
}

var toolEnumerationRe = regexp.MustCompile(`(?i)\b(call|invoke|use)\s+(the\s+)?\w+\s+(tool|api|function)\b|\bfunction[_ ]call(ing)?\b`)
var visionRe = regexp.MustCompile(`(?i)\b(image|photo|picture|screenshot|diagram|visual)\b`)
var wordRe = regexp.MustCompile(`\S+`)

// identityRule is the fallback used when no pattern file is loaded — the
// analyzer must never fail outright (spec §4.1).
var identityRule = rule{taskType: types.TaskGeneral, re: regexp.MustCompile(`.*`), weight: 0.1}

// Analyzer classifies prompts into TaskRequirements. Safe for concurrent use.
// rules is an atomic pointer swapped wholesale on Reload (spec §5's
// "availability snapshot: atomic pointer swap on reload"), so Analyze never
// takes a lock to read the pattern set a Reload might be replacing.
type Analyzer struct {
	rules     atomic.Pointer[[]rule]
	cache     *lru.Cache[[16]byte, types.TaskRequirements]
	logger    *zap.Logger
	cacheSize int
}

func (a *Analyzer) storeRules(rules []rule) {
	a.rules.Store(&rules)
}

func (a *Analyzer) loadRules() []rule {
	return *a.rules.Load()
}

// Option configures an Analyzer at construction time.
type Option func(*Analyzer)

// WithLogger attaches a zap logger; defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithCacheSize overrides the default LRU cache capacity (1024).
func WithCacheSize(n int) Option {
	return func(a *Analyzer) { a.cacheSize = n }
}

// New builds an Analyzer with the identity fallback pattern only — used when
// no pattern file is configured.
func New(opts ...Option) (*Analyzer, error) {
	a := &Analyzer{logger: zap.NewNop(), cacheSize: 1024}
	a.storeRules([]rule{identityRule})
	for _, opt := range opts {
		opt(a)
	}
	return a.initCache()
}

// LoadFile builds an Analyzer from a YAML pattern file. If path does not
// exist, it falls back to the single identity pattern per spec §4.1 rather
// than returning an error.
func LoadFile(path string, opts ...Option) (*Analyzer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(opts...)
		}
		return nil, err
	}
	return Load(data, opts...)
}

// Load parses YAML pattern bytes into an Analyzer.
func Load(data []byte, opts ...Option) (*Analyzer, error) {
	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, err
	}

	a := &Analyzer{logger: zap.NewNop(), cacheSize: 1024}
	for _, opt := range opts {
		opt(a)
	}

	order := ff.Order
	if len(order) == 0 {
		// Preserve map's natural key order isn't guaranteed; callers who
		// care about declaration-order tie-breaking should set Order
		// explicitly. We still accept unordered maps for convenience.
		for taskType := range ff.Patterns {
			order = append(order, taskType)
		}
	}

	var rules []rule
	for _, taskType := range order {
		for _, p := range ff.Patterns[taskType] {
			re, err := regexp.Compile("(?i)" + p.Pattern)
			if err != nil {
				return nil, err
			}
			rules = append(rules, rule{taskType: types.TaskType(taskType), re: re, weight: p.Weight})
		}
	}
	if len(rules) == 0 {
		rules = []rule{identityRule}
	}
	a.storeRules(rules)
	return a.initCache()
}

func (a *Analyzer) initCache() (*Analyzer, error) {
	size := a.cacheSize
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[[16]byte, types.TaskRequirements](size)
	if err != nil {
		return nil, err
	}
	a.cache = c
	return a, nil
}

// Analyze classifies prompt into TaskRequirements. Pure, idempotent, and safe
// for concurrent calls.
func (a *Analyzer) Analyze(prompt string) types.TaskRequirements {
	key := md5.Sum([]byte(prompt))
	if cached, ok := a.cache.Get(key); ok {
		return cached
	}

	best := rule{taskType: types.TaskGeneral, weight: 0.1}
	found := false
	for _, r := range a.loadRules() {
		if !r.re.MatchString(prompt) {
			continue
		}
		if !found || r.weight > best.weight {
			best = r
			found = true
		}
	}

	req := types.TaskRequirements{
		TaskType:             best.taskType,
		Confidence:           best.weight,
		NeedsFunctionCalling: toolEnumerationRe.MatchString(prompt),
		NeedsVision:          visionRe.MatchString(prompt),
		MinContextWindow:     estimateContextWindow(prompt),
	}
	a.cache.Add(key, req)
	return req
}

// estimateContextWindow applies the spec's word-count heuristic: words * 4
// bytes / 3 ≈ tokens, rounded up to the nearest 8k.
func estimateContextWindow(prompt string) int {
	words := len(wordRe.FindAllString(prompt, -1))
	if words == 0 {
		return 0
	}
	approxTokens := words * 4 / 3
	const bucket = 8192
	rounded := ((approxTokens + bucket - 1) / bucket) * bucket
	if rounded == 0 {
		rounded = bucket
	}
	return rounded
}

// Reload atomically rebuilds the pattern set from path and clears the cache,
// per spec §4.1's "invalidation only on reload". The rules swap is a single
// atomic pointer store, so a concurrent Analyze either sees the old rule set
// in full or the new one, never a partial slice.
func (a *Analyzer) Reload(path string) error {
	next, err := LoadFile(path, WithLogger(a.logger), WithCacheSize(a.cacheSize))
	if err != nil {
		return err
	}
	a.storeRules(next.loadRules())
	a.cache.Purge()
	return nil
}
