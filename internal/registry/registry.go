package registry

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Class partitions sources by how their content reaches the merged document.
type Class string

const (
	// ClassCacheable sources are cached locally and reused when a fetch fails.
	ClassCacheable Class = "cacheable"

	// ClassDirect sources are fetched fresh on every run and never cached.
	ClassDirect Class = "direct"
)

// ErrSourceNotFound is returned by Lookup for names that are not registered.
var ErrSourceNotFound = errors.New("source not found")

// Valid reports whether c is one of the known classes.
func (c Class) Valid() bool {
	return c == ClassCacheable || c == ClassDirect
}

// SourceDescriptor identifies one remote rule document.
type SourceDescriptor struct {
	// Name is the unique key of the source. It is also the cache file stem.
	Name string

	// URL is the origin of the rule document.
	URL string

	// Class decides whether the source is cached.
	Class Class
}

// Cacheable reports whether the source is persisted to the local cache.
func (d SourceDescriptor) Cacheable() bool {
	return d.Class == ClassCacheable
}

// Registry is an ordered, immutable collection of sources.
type Registry struct {
	sources []SourceDescriptor
	index   map[string]int
}

// New validates the descriptors and builds a Registry that preserves their order.
func New(sources ...SourceDescriptor) (*Registry, error) {
	r := &Registry{
		sources: make([]SourceDescriptor, 0, len(sources)),
		index:   make(map[string]int, len(sources)),
	}

	for i, src := range sources {
		if err := validateDescriptor(src); err != nil {
			return nil, fmt.Errorf("source[%d] (%s): %w", i, src.Name, err)
		}
		if _, dup := r.index[src.Name]; dup {
			return nil, fmt.Errorf("source[%d]: duplicate source name '%s'", i, src.Name)
		}
		r.index[src.Name] = len(r.sources)
		r.sources = append(r.sources, src)
	}

	return r, nil
}

// MustNew is like New but panics on invalid input. Intended for static tables.
func MustNew(sources ...SourceDescriptor) *Registry {
	r, err := New(sources...)
	if err != nil {
		panic(err)
	}
	return r
}

func validateDescriptor(src SourceDescriptor) error {
	if src.Name == "" {
		return fmt.Errorf("name is required")
	}
	if src.Name == "." || src.Name == ".." || strings.ContainsAny(src.Name, `/\`) ||
		strings.ContainsRune(src.Name, 0) {
		return fmt.Errorf("name must be usable as a file name")
	}
	if !src.Class.Valid() {
		return fmt.Errorf("class must be %q or %q, got %q", ClassCacheable, ClassDirect, src.Class)
	}
	if src.URL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(src.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url must include a host")
	}
	return nil
}

// All returns every source in declaration order.
func (r *Registry) All() []SourceDescriptor {
	return append([]SourceDescriptor(nil), r.sources...)
}

// Cacheable returns the cacheable sources in declaration order.
func (r *Registry) Cacheable() []SourceDescriptor {
	return r.byClass(ClassCacheable)
}

// Direct returns the direct sources in declaration order.
func (r *Registry) Direct() []SourceDescriptor {
	return r.byClass(ClassDirect)
}

// Ordered returns cacheable sources followed by direct sources, each group in
// declaration order. This is the order of the provenance header and of the
// merged sections.
func (r *Registry) Ordered() []SourceDescriptor {
	return append(r.Cacheable(), r.Direct()...)
}

func (r *Registry) byClass(class Class) []SourceDescriptor {
	var out []SourceDescriptor
	for _, src := range r.sources {
		if src.Class == class {
			out = append(out, src)
		}
	}
	return out
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (SourceDescriptor, error) {
	i, ok := r.index[name]
	if !ok {
		return SourceDescriptor{}, fmt.Errorf("%w: %s", ErrSourceNotFound, name)
	}
	return r.sources[i], nil
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	return len(r.sources)
}
