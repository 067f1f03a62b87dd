package providers

// Registry holds the configured adapters in a stable order. Built once at
// startup from config; only providers with credentials get registered.
type Registry struct {
	order    []string
	byName   map[string]Provider
	fallback string
}

func NewRegistry(provs ...Provider) *Registry {
	r := &Registry{byName: make(map[string]Provider)}
	for _, p := range provs {
		if p == nil {
			continue
		}
		if _, dup := r.byName[p.Name()]; dup {
			continue
		}
		r.order = append(r.order, p.Name())
		r.byName[p.Name()] = p
	}
	if len(r.order) > 0 {
		r.fallback = r.order[0]
	}
	return r
}

// Get returns the adapter for name, or the first registered adapter when
// name is empty (clients that don't pick a processor get the default one).
func (r *Registry) Get(name string) (Provider, error) {
	if name == "" {
		name = r.fallback
	}
	p, ok := r.byName[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// All returns the adapters in registration order.
func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}
