// Package modepath composes a node's mode sub-path from its own segment,
// its lexical base type's segment and its runtime parent's composed path.
package modepath

import (
	"path"
	"path/filepath"
	"strings"
)

// Context is the mode state of one node. It is computed once and never mutated.
type Context struct {
	// Own is the node's declared segment, or the field name it was nested under
	Own string
	// Nested is the lexical base type's declared segment
	Nested string
	// Parent is the runtime containing node's composed path
	Parent string

	InheritNested bool
	InheritParent bool
}

// Path returns the composed path: parent/nested/own, each part subject to its switch.
func (c Context) Path() string {
	var parts []string
	if c.InheritParent {
		parts = append(parts, c.Parent)
	}
	if c.InheritNested {
		parts = append(parts, c.Nested)
	}
	parts = append(parts, c.Own)
	return Join(parts...)
}

// NestedPath returns nested/own without the parent fragment.
func (c Context) NestedPath() string {
	if c.InheritNested {
		return Join(c.Nested, c.Own)
	}
	return Join(c.Own)
}

// SourcePath returns the node's own segment only.
func (c Context) SourcePath() string {
	return Join(c.Own)
}

// Child returns the context a nested node starts from: this node's composed path as parent.
func (c Context) Child(own, nested string, inheritNested, inheritParent bool) Context {
	return Context{
		Own:           own,
		Nested:        nested,
		Parent:        c.Path(),
		InheritNested: inheritNested,
		InheritParent: inheritParent,
	}
}

// Join joins fragments with "/", dropping empty and "." parts and any trailing separator.
func Join(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(filepath.ToSlash(p), "/")
		if p == "" {
			continue
		}
		p = path.Clean(p)
		if p == "." {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "/")
}

// EnvPrefix turns a mode path into an environment variable prefix: "dev/app" becomes "dev_app_".
func EnvPrefix(modePath string) string {
	if modePath == "" {
		return ""
	}
	return strings.ReplaceAll(modePath, "/", "_") + "_"
}
