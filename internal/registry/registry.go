package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/modelgate/modelgate/internal/errs"
)

// Registry resolves model ids to descriptors and tracks which providers
// are configured. It is built once at startup and never mutated
// (spec.md §4.1).
type Registry struct {
	descriptors map[string]Descriptor // keyed by ID.String()
	bindings    map[Provider]Binding
	order       []string // descriptor keys in table declaration order
}

// New builds a Registry from the compile-time model table and a set of
// provider bindings (normally registry.LoadBindingsFromEnv()).
func New(bindings map[Provider]Binding) *Registry {
	r := &Registry{
		descriptors: make(map[string]Descriptor, len(table)),
		bindings:    bindings,
	}
	for _, d := range table {
		key := d.ID.String()
		r.descriptors[key] = d
		r.order = append(r.order, key)
	}
	return r
}

// Configured reports whether a provider has a non-empty api key bound.
func (r *Registry) Configured(p Provider) bool {
	_, ok := r.bindings[p]
	return ok
}

// Binding returns the provider's binding, if configured.
func (r *Registry) Binding(p Provider) (Binding, bool) {
	b, ok := r.bindings[p]
	return b, ok
}

// Resolve looks up a live model id. A model is "live" iff its provider has
// a configured binding (spec.md §4.1, "Live model" in the glossary).
func (r *Registry) Resolve(rawID string) (Descriptor, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return Descriptor{}, err
	}

	d, ok := r.descriptors[id.String()]
	if !ok || !r.Configured(id.Provider) {
		return Descriptor{}, r.notFoundError(rawID, id)
	}
	return d, nil
}

func (r *Registry) notFoundError(rawID string, id ID) *errs.Error {
	available := r.List()
	data := map[string]any{"availableModels": available}

	prefix := string(id.Provider) + ":"
	var suggested []string
	if prefix != ":" {
		for _, name := range available {
			if strings.HasPrefix(name, prefix) {
				suggested = append(suggested, name)
			}
		}
	}
	if len(suggested) > 0 {
		data["suggestedModels"] = suggested
	}
	return errs.New(errs.KindModelNotFound, fmt.Sprintf("model not found: %s", rawID)).WithData(data)
}

// List returns every live model id, sorted.
func (r *Registry) List() []string {
	var ids []string
	for _, key := range r.order {
		d := r.descriptors[key]
		if r.Configured(d.ID.Provider) {
			ids = append(ids, key)
		}
	}
	sort.Strings(ids)
	return ids
}

// DetailedEntry is one row of Registry.ListDetailed.
type DetailedEntry struct {
	ID            string
	Provider      Provider
	Configured    bool
	Capabilities  Capabilities
	SupportsAsync bool
}

// ListDetailed returns every declared model (configured or not), so the
// `models` tool can report on providers the caller has not yet set up.
func (r *Registry) ListDetailed() []DetailedEntry {
	out := make([]DetailedEntry, 0, len(r.order))
	for _, key := range r.order {
		d := r.descriptors[key]
		out = append(out, DetailedEntry{
			ID:            key,
			Provider:      d.ID.Provider,
			Configured:    r.Configured(d.ID.Provider),
			Capabilities:  d.Capabilities,
			SupportsAsync: d.SupportsAsync,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllProviders lists the four known provider tags, in a stable order.
func AllProviders() []Provider {
	return []Provider{OpenAI, Google, Anthropic, XAI}
}
