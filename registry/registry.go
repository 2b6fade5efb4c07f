// Package registry implements the Model Registry (C1): an in-memory,
// immutable-after-load catalog of ModelDescriptor entries, reloaded only on
// explicit request. Grounded on the teacher's llm/registry.go
// ProviderRegistry (same register/get/list-by-name shape, promoted here to
// hold descriptors loaded from YAML instead of live Provider instances).
package registry

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

// fileFormat mirrors the YAML shape documented in spec §6: a top-level
// "models" list of descriptors.
type fileFormat struct {
	Models []types.ModelDescriptor `yaml:"models"`
}

// Registry is a thread-safe, read-mostly catalog of model descriptors.
type Registry struct {
	mu       sync.RWMutex
	byID     map[string]types.ModelDescriptor
	byAlias  map[string]string // alias -> id
	order    []string          // insertion order, for deterministic List()
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		byID:    make(map[string]types.ModelDescriptor),
		byAlias: make(map[string]string),
	}
}

// LoadFile parses a YAML model table and returns a populated Registry.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	return Load(data)
}

// Load parses YAML model-table bytes into a Registry.
func Load(data []byte) (*Registry, error) {
	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("registry: parse yaml: %w", err)
	}
	r := New()
	for _, d := range ff.Models {
		if err := r.add(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(d types.ModelDescriptor) error {
	if d.ID == "" {
		return fmt.Errorf("registry: descriptor missing id")
	}
	if _, exists := r.byID[d.ID]; exists {
		return fmt.Errorf("registry: duplicate model id %q", d.ID)
	}
	if !d.Provider.Valid() {
		return fmt.Errorf("registry: model %q has invalid provider %q", d.ID, d.Provider)
	}
	if d.ContextWindow <= 0 {
		return fmt.Errorf("registry: model %q has non-positive context_window", d.ID)
	}
	r.byID[d.ID] = d
	r.order = append(r.order, d.ID)
	for _, alias := range d.Aliases {
		r.byAlias[alias] = d.ID
	}
	return nil
}

// Get resolves an id or alias to its descriptor.
func (r *Registry) Get(idOrAlias string) (types.ModelDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.byID[idOrAlias]; ok {
		return d, true
	}
	if id, ok := r.byAlias[idOrAlias]; ok {
		d := r.byID[id]
		return d, true
	}
	return types.ModelDescriptor{}, false
}

// List returns all descriptors in declaration order.
func (r *Registry) List() []types.ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ModelDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// IDs returns all registered model ids, sorted lexicographically.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reload atomically replaces this Registry's contents with those loaded
// from path. On parse failure the existing catalog is left untouched.
func (r *Registry) Reload(path string) error {
	next, err := LoadFile(path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = next.byID
	r.byAlias = next.byAlias
	r.order = next.order
	return nil
}

// Len returns the number of registered descriptors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
