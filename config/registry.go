package config

import (
	"sort"
	"strings"
)

// Pair is one configuration name and its value
type Pair struct {
	Name  string
	Value string
}

// Registry is an immutable name to value map. It is built once before the
// server accepts connections and needs no locking afterwards.
type Registry struct {
	values map[string]string
}

// NewRegistry builds a registry from pairs. Names are case-insensitive; a
// later pair replaces an earlier one with the same name.
func NewRegistry(pairs ...Pair) *Registry {
	values := make(map[string]string, len(pairs))
	for _, p := range pairs {
		values[strings.ToLower(p.Name)] = p.Value
	}
	return &Registry{values: values}
}

// Get returns the value configured for name
func (r *Registry) Get(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	v, ok := r.values[strings.ToLower(name)]
	return v, ok
}

// Names returns the configured names in sorted order
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.values))
	for name := range r.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of configured names
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.values)
}
