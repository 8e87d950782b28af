package npm

import "strings"

// Registry holds the packages known to one build session, keyed by name in
// insertion order. Packages are never removed.
type Registry struct {
	byName map[string]*Package
	order  []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Package)}
}

// Get returns the package registered under name.
func (r *Registry) Get(name string) (*Package, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Add registers p unless a package with the same name exists. It returns
// the registered package and whether p was added.
func (r *Registry) Add(p *Package) (*Package, bool) {
	if existing, ok := r.byName[p.Name()]; ok {
		return existing, false
	}
	r.byName[p.Name()] = p
	r.order = append(r.order, p.Name())
	return p, true
}

// Names returns the registered names in insertion order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Packages returns the registered packages in insertion order.
func (r *Registry) Packages() []*Package {
	out := make([]*Package, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Len returns the number of registered packages.
func (r *Registry) Len() int {
	return len(r.order)
}

// Owner returns the registered package whose source root most closely
// contains path.
func (r *Registry) Owner(path string) (*Package, bool) {
	var best *Package
	for _, name := range r.order {
		p := r.byName[name]
		if !p.Contains(path) {
			continue
		}
		if best == nil || len(p.SrcRoot) > len(best.SrcRoot) {
			best = p
		}
	}
	return best, best != nil
}

// PackageName returns the package part of a bare specifier: the first
// segment, or the first two for scoped names.
func PackageName(specifier string) string {
	parts := strings.SplitN(specifier, "/", 3)
	if strings.HasPrefix(specifier, "@") && len(parts) >= 2 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}
