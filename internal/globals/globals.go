// Package globals implements the Collect Globals phase: a registry of
// named collector functions, each a deterministic function of the full
// discovered item set, whose outputs populate the run-scoped globals
// table consumed by the Change Detector and Template-page Expander. A
// collector has no state or lifecycle of its own, only a name and a
// function of the item set.
package globals

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/kilnbuild/kiln/internal/item"
)

// Collector computes one named global's value from the full discovered
// item set. It must be a pure, deterministic function of items: the
// same item set always yields the same value.
type Collector func(items []*item.Item) (any, error)

// Registry holds the named collectors to run during the Collect Globals
// phase.
type Registry struct {
	mu         sync.RWMutex
	collectors map[string]Collector
}

// NewRegistry returns a Registry seeded with the built-in collectors
// (currently: tags).
func NewRegistry() *Registry {
	r := &Registry{collectors: make(map[string]Collector)}
	r.Register("tags", CollectTags)
	return r
}

// Register adds a named collector. Registering an existing name
// replaces it (used by tests to stub out a collector).
func (r *Registry) Register(name string, c Collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collectors[name] = c
	log.Debug().Str("global", name).Msg("globals: collector registered")
}

// Unregister removes a named collector, if present.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.collectors, name)
}

// Names returns the registered collector names, for diagnostics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.collectors))
	for n := range r.collectors {
		names = append(names, n)
	}
	return names
}

// Collect runs every registered collector against items and returns the
// populated globals table. Collectors run regardless of any item's
// dirtiness — globals must be computed fresh every run since they are a
// function of the whole item set, not of what changed.
func (r *Registry) Collect(items []*item.Item) (item.Globals, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(item.Globals, len(r.collectors))
	for name, c := range r.collectors {
		val, err := c(items)
		if err != nil {
			return nil, fmt.Errorf("globals: collector %q: %w", name, err)
		}
		out[name] = val
		log.Debug().Str("global", name).Msg("globals: collected")
	}
	return out, nil
}

// CollectTags is the built-in "tags" collector: it aggregates the
// sorted, de-duplicated union of every content-page's front-matter
// `tags` field.
func CollectTags(items []*item.Item) (any, error) {
	seen := make(map[string]bool)
	var ordered []string
	for _, it := range items {
		if it.Kind != item.KindContentPage || it.Metadata == nil {
			continue
		}
		raw, ok := it.Metadata["tags"]
		if !ok {
			continue
		}
		for _, tag := range toStringSlice(raw) {
			if !seen[tag] {
				seen[tag] = true
				ordered = append(ordered, tag)
			}
		}
	}
	sort.Strings(ordered)
	out := make([]any, len(ordered))
	for i, s := range ordered {
		out[i] = s
	}
	return out, nil
}

func toStringSlice(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, e := range val {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
