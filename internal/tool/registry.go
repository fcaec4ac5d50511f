package tool

import (
	"fmt"
	"sort"
	"strings"
)

// Registry maps canonical tool names to tools, per category. It is built
// once and never mutated, so lookups need no locking.
type Registry struct {
	byCategory map[Category]map[string]Tool
}

// NewRegistry validates and indexes the supplied tools. Two tools sharing a
// category and name produce a DuplicateToolError.
func NewRegistry(tools ...Tool) (*Registry, error) {
	reg := &Registry{byCategory: make(map[Category]map[string]Tool, len(Categories))}
	for _, c := range Categories {
		reg.byCategory[c] = map[string]Tool{}
	}
	for _, t := range tools {
		if t == nil {
			continue
		}
		desc := t.Descriptor()
		if err := desc.Validate(); err != nil {
			return nil, fmt.Errorf("tool: register %s: %w", desc.Source, err)
		}
		entries := reg.byCategory[desc.Category]
		if existing, ok := entries[desc.Name]; ok {
			return nil, &DuplicateToolError{
				Category: desc.Category,
				Name:     desc.Name,
				First:    existing.Descriptor().Source,
				Second:   desc.Source,
			}
		}
		entries[desc.Name] = t
	}
	return reg, nil
}

// MustRegistry panics if the registry cannot be built.
func MustRegistry(tools ...Tool) *Registry {
	reg, err := NewRegistry(tools...)
	if err != nil {
		panic(err)
	}
	return reg
}

// Lookup resolves "name" or "category/name". Bare names are searched in
// Categories order.
func (r *Registry) Lookup(ref string) (Tool, error) {
	ref = strings.TrimSpace(ref)
	if r == nil || ref == "" {
		return nil, &UnknownToolError{Name: ref}
	}
	if prefix, name, ok := strings.Cut(ref, "/"); ok {
		c, err := ParseCategory(prefix)
		if err != nil {
			return nil, &UnknownToolError{Name: ref}
		}
		if t, ok := r.byCategory[c][name]; ok {
			return t, nil
		}
		return nil, &UnknownToolError{Name: ref}
	}
	for _, c := range Categories {
		if t, ok := r.byCategory[c][ref]; ok {
			return t, nil
		}
	}
	return nil, &UnknownToolError{Name: ref}
}

// Schema returns the parameter schema of a tool reference.
func (r *Registry) Schema(ref string) (Schema, bool) {
	t, err := r.Lookup(ref)
	if err != nil {
		return nil, false
	}
	return t.Descriptor().Params, true
}

// Category returns the tools of one category sorted by name.
func (r *Registry) Category(c Category) []Tool {
	if r == nil {
		return nil
	}
	entries := r.byCategory[c]
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		out = append(out, entries[name])
	}
	return out
}

// Require returns an EmptyRegistryError for the first listed category that
// has no tools.
func (r *Registry) Require(categories ...Category) error {
	for _, c := range categories {
		if len(r.Category(c)) == 0 {
			return &EmptyRegistryError{Category: c}
		}
	}
	return nil
}

// Descriptors lists every tool, ordered by category precedence then name.
func (r *Registry) Descriptors() []Descriptor {
	var out []Descriptor
	for _, c := range Categories {
		for _, t := range r.Category(c) {
			out = append(out, t.Descriptor())
		}
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, entries := range r.byCategory {
		n += len(entries)
	}
	return n
}
