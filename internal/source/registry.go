package source

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/marksearch/internal/browser"
	"github.com/sells-group/marksearch/internal/resilience"
)

// ErrUnknownSource is returned for ids that are not registered.
var ErrUnknownSource = eris.New("unknown source")

// Registry maps source ids to their searchers.
type Registry struct {
	sources map[string]Searcher
	order   []string // insertion order for deterministic iteration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Searcher)}
}

// Register adds s. Registering an id twice is an error.
func (r *Registry) Register(s Searcher) error {
	id := s.ID()
	if _, ok := r.sources[id]; ok {
		return eris.Errorf("source: %q already registered", id)
	}
	r.sources[id] = s
	r.order = append(r.order, id)
	return nil
}

// Get returns the searcher for id.
func (r *Registry) Get(id string) (Searcher, error) {
	s, ok := r.sources[id]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownSource, "source: %q", id)
	}
	return s, nil
}

// All returns every searcher in registration order.
func (r *Registry) All() []Searcher {
	out := make([]Searcher, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sources[id])
	}
	return out
}

// IDs returns the registered ids in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Labels returns the display labels in registration order.
func (r *Registry) Labels() []string {
	out := make([]string, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sources[id].Label())
	}
	return out
}

// Len returns the number of registered sources.
func (r *Registry) Len() int { return len(r.order) }

// Build creates an Adapter per profile. When enabled is non-empty only those
// ids are registered, in profile order; naming an unknown id is an error.
func Build(profiles []Profile, enabled []string, sessions browser.SessionFactory, retry resilience.RetryConfig) (*Registry, error) {
	known := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		known[p.ID] = true
	}
	filter := make(map[string]bool, len(enabled))
	for _, id := range enabled {
		if !known[id] {
			return nil, eris.Wrapf(ErrUnknownSource, "source: enabled id %q has no profile", id)
		}
		filter[id] = true
	}

	r := NewRegistry()
	for _, p := range profiles {
		if len(filter) > 0 && !filter[p.ID] {
			continue
		}
		a, err := NewAdapter(p, sessions, WithRetry(retry))
		if err != nil {
			return nil, err
		}
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}
