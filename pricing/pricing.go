// Package pricing implements the Price Table (C2): provider/model ->
// (input $/1K tokens, output $/1K tokens), loaded from YAML. Grounded on the
// teacher's LLMProviderModel.PriceInput/PriceCompletion fields (llm/types.go),
// upgraded from float64 to github.com/shopspring/decimal since spec §4.8
// mandates fixed-point arithmetic with at least 8 fractional digits — a
// float64 cents-per-token rate compounded over millions of requests is
// exactly the kind of billing drift decimal.Decimal exists to avoid.
package pricing

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

// Rate is one model's per-1K-token input/output price.
type Rate struct {
	InputPer1K  decimal.Decimal
	OutputPer1K decimal.Decimal
}

type rateYAML struct {
	InputPer1K  string `yaml:"input_per_1k"`
	OutputPer1K string `yaml:"output_per_1k"`
}

type fileFormat struct {
	// Providers maps provider -> model_api_name -> rate.
	Providers map[string]map[string]rateYAML `yaml:"providers"`
}

// Table is an immutable provider/model -> Rate lookup.
type Table struct {
	rates map[types.Provider]map[string]Rate
}

// zeroRate is returned for the "free" cost tier, which has no price-table
// entry by design (spec §3 invariant).
var zeroRate = Rate{InputPer1K: decimal.Zero, OutputPer1K: decimal.Zero}

// LoadFile parses a YAML price table from disk.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pricing: read %s: %w", path, err)
	}
	return Load(data)
}

// Load parses YAML price-table bytes.
func Load(data []byte) (*Table, error) {
	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("pricing: parse yaml: %w", err)
	}
	t := &Table{rates: make(map[types.Provider]map[string]Rate)}
	for providerName, models := range ff.Providers {
		provider := types.Provider(providerName)
		byModel := make(map[string]Rate, len(models))
		for apiName, ry := range models {
			in, err := decimal.NewFromString(ry.InputPer1K)
			if err != nil {
				return nil, fmt.Errorf("pricing: %s/%s input_per_1k: %w", providerName, apiName, err)
			}
			out, err := decimal.NewFromString(ry.OutputPer1K)
			if err != nil {
				return nil, fmt.Errorf("pricing: %s/%s output_per_1k: %w", providerName, apiName, err)
			}
			byModel[apiName] = Rate{InputPer1K: in, OutputPer1K: out}
		}
		t.rates[provider] = byModel
	}
	return t, nil
}

// Lookup returns the rate for a given provider/model_api_name, or the zero
// rate (with ok=false) when free-tier descriptors have no entry — callers
// must check the descriptor's CostTier before treating a miss as an error.
func (t *Table) Lookup(provider types.Provider, apiName string) (Rate, bool) {
	byModel, ok := t.rates[provider]
	if !ok {
		return zeroRate, false
	}
	rate, ok := byModel[apiName]
	if !ok {
		return zeroRate, false
	}
	return rate, true
}

// Validate checks that every non-free descriptor in the registry has a
// price-table entry, per the invariant in spec §3.
func (t *Table) Validate(descriptors []types.ModelDescriptor) error {
	for _, d := range descriptors {
		if d.CostTier == types.CostFree {
			continue
		}
		if _, ok := t.Lookup(d.Provider, d.APIName); !ok {
			return fmt.Errorf("pricing: model %q (%s/%s) has no price-table entry and is not free-tier", d.ID, d.Provider, d.APIName)
		}
	}
	return nil
}
