// Package alias builds per-node lookup tables from field declarations:
// the external keys each field accepts, its path aliases and, for nested
// fields, the key chains used to rebuild nested values from flat data.
package alias

import (
	"strings"

	"github.com/ajitpratap0/layerconf/pkg/schema"
)

// Entry is the alias table of one field.
type Entry struct {
	Field *schema.Field
	// Aliases lists the external keys in declaration order
	Aliases []string
	// Folded lists Aliases, each followed by its lowercase form
	Folded []string
	// Paths maps a path alias's first key, and its lowercase form, to the path
	Paths map[string]schema.Path
	// Nested is set for settings and record fields
	Nested *Nested
	// Variants holds one table per candidate of a discriminated field
	Variants []*Nested
}

// Name returns the field name
func (e *Entry) Name() string { return e.Field.Name }

// Keys returns the aliases to try for the given case mode
func (e *Entry) Keys(caseSensitive bool) []string {
	if caseSensitive {
		return e.Aliases
	}
	return e.Folded
}

// Path returns the path alias registered under key, if any.
func (e *Entry) Path(key string) (schema.Path, bool) {
	p, ok := e.Paths[key]
	return p, ok
}

// IsPathHead reports whether key is the first segment of a path alias
func (e *Entry) IsPathHead(key string) bool {
	_, ok := e.Paths[key]
	return ok
}

// Tables returns the nested tables of the field: one for settings and record
// fields, one per variant for discriminated fields.
func (e *Entry) Tables() []*Nested {
	if e.Nested != nil {
		return []*Nested{e.Nested}
	}
	return e.Variants
}

// Index is the alias table of a node type, in field declaration order.
type Index struct {
	Type    *schema.NodeType
	Entries []*Entry
	byName  map[string]*Entry
}

// Build computes the Index of nt. It is a pure function of the declarations.
func Build(nt *schema.NodeType) *Index {
	return build(nt, map[*schema.NodeType]*Nested{})
}

func build(nt *schema.NodeType, seen map[*schema.NodeType]*Nested) *Index {
	ix := &Index{Type: nt, byName: make(map[string]*Entry, len(nt.Fields))}
	for i := range nt.Fields {
		e := newEntry(&nt.Fields[i], seen)
		ix.Entries = append(ix.Entries, e)
		ix.byName[e.Name()] = e
	}
	return ix
}

// Entry returns the table of the named field or nil
func (ix *Index) Entry(field string) *Entry {
	return ix.byName[field]
}

// Lookup finds the entry accepting key, checking entries in declaration order.
func (ix *Index) Lookup(key string, caseSensitive bool) *Entry {
	for _, e := range ix.Entries {
		for _, a := range e.Keys(caseSensitive) {
			if a == key || (!caseSensitive && strings.EqualFold(a, key)) {
				return e
			}
		}
	}
	return nil
}

func newEntry(f *schema.Field, seen map[*schema.NodeType]*Nested) *Entry {
	e := &Entry{Field: f, Paths: map[string]schema.Path{}}

	choices := f.Alias
	if len(choices) == 0 {
		choices = schema.Names(f.Name)
	}
	for _, c := range choices {
		key := c.Key()
		if key == "" {
			continue
		}
		e.Aliases = appendUnique(e.Aliases, key)
		if c.IsPath() {
			e.Paths[key] = c.Path
			if lower := strings.ToLower(key); lower != key {
				if _, taken := e.Paths[lower]; !taken {
					e.Paths[lower] = c.Path
				}
			}
		}
	}
	e.Folded = fold(e.Aliases)

	switch f.Kind {
	case schema.KindSettings, schema.KindRecord:
		e.Nested = nestedFor(f.Node, seen)
	case schema.KindVariants:
		for _, v := range f.Variants {
			e.Variants = append(e.Variants, nestedFor(v, seen))
		}
	}
	return e
}

// fold returns aliases with each one followed by its lowercase form.
func fold(aliases []string) []string {
	out := make([]string, 0, len(aliases)*2)
	for _, a := range aliases {
		out = appendUnique(out, a)
		out = appendUnique(out, strings.ToLower(a))
	}
	return out
}

func appendUnique(list []string, s string) []string {
	for _, e := range list {
		if e == s {
			return list
		}
	}
	return append(list, s)
}
