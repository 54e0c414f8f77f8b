// Package schema declares settings node types: named records of typed fields,
// some of which nest further settings nodes.
package schema

import (
	"strings"

	"github.com/ajitpratap0/layerconf/pkg/errors"
	"github.com/ajitpratap0/layerconf/pkg/inherit"
)

// ModeField is the field whose resolved value selects a mode-specific config file.
const ModeField = "MODE"

// Kind classifies how a field participates in resolution.
type Kind int

const (
	// KindValue is a scalar or collection field
	KindValue Kind = iota
	// KindSettings is a nested settings node resolved by its own pipeline
	KindSettings
	// KindVariants is a discriminated union of settings nodes
	KindVariants
	// KindRecord is a plain nested record without settings semantics
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindSettings:
		return "settings"
	case KindVariants:
		return "variants"
	case KindRecord:
		return "record"
	default:
		return "value"
	}
}

// ValueType is the declared type of a KindValue field.
type ValueType int

const (
	TypeAny ValueType = iota
	TypeString
	TypeBool
	TypeInt
	TypeFloat
	TypeDuration
	TypeList
	TypeMap
)

var valueTypeNames = map[ValueType]string{
	TypeAny:      "any",
	TypeString:   "string",
	TypeBool:     "bool",
	TypeInt:      "int",
	TypeFloat:    "float",
	TypeDuration: "duration",
	TypeList:     "list",
	TypeMap:      "map",
}

func (t ValueType) String() string { return valueTypeNames[t] }

// ParseValueType maps a type name to a ValueType
func ParseValueType(name string) (ValueType, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "", "any":
		return TypeAny, true
	case "str":
		return TypeString, true
	case "integer":
		return TypeInt, true
	case "number":
		return TypeFloat, true
	case "array":
		return TypeList, true
	case "object", "dict":
		return TypeMap, true
	}
	for t, n := range valueTypeNames {
		if n == name {
			return t, true
		}
	}
	return TypeAny, false
}

// Field is one declared field of a NodeType.
type Field struct {
	Name string
	Kind Kind
	Type ValueType
	// Nullable marks a field whose type is a union with null
	Nullable bool
	// Literals restricts the field to a fixed set of values
	Literals []string
	Alias    Alias
	Default  interface{}
	Required bool

	// Node is the nested type for KindSettings and KindRecord
	Node *NodeType
	// Variants lists the candidates for KindVariants, in priority order
	Variants []*NodeType
	// Discriminator is the field of each variant whose value selects it
	Discriminator string
	// DefaultVariant is the discriminator value used when none is found
	DefaultVariant string
}

// IsNested reports whether the field holds a nested record of any kind.
func (f *Field) IsNested() bool {
	return f.Kind != KindValue
}

// IsSettings reports whether the field is resolved by a child pipeline.
func (f *Field) IsSettings() bool {
	return f.Kind == KindSettings || f.Kind == KindVariants
}

// StringLike reports whether raw strings are a valid value for the field as is.
func (f *Field) StringLike() bool {
	return f.Kind == KindValue && f.Type == TypeString && !f.Nullable && len(f.Literals) == 0
}

// TolerantParse reports whether a failed structured parse may fall back to the raw string.
func (f *Field) TolerantParse() bool {
	if f.Kind != KindValue {
		return false
	}
	if f.Nullable || len(f.Literals) > 0 {
		return true
	}
	return f.Type != TypeList && f.Type != TypeMap
}

// Variant returns the variant whose discriminator default equals value.
func (f *Field) Variant(value string) *NodeType {
	for _, v := range f.Variants {
		if d := v.Field(f.Discriminator); d != nil {
			if s, ok := d.Default.(string); ok && strings.EqualFold(s, value) {
				return v
			}
		}
	}
	return nil
}

// NodeType is a declared settings node or plain record.
type NodeType struct {
	Name string
	// Base is the lexical base type; its mode segment is the nested fragment
	Base *NodeType
	// Config is the class-level declaration, overlaid on Base's
	Config inherit.Declaration
	Fields []Field
	// New returns a fresh value the validator decodes into. Nil yields a map.
	New func() interface{}

	abstract bool
}

// Root is the abstract root settings type. Fields may never be typed as Root.
var Root = &NodeType{Name: "Settings", abstract: true}

// Field returns the named field or nil
func (n *NodeType) Field(name string) *Field {
	for i := range n.Fields {
		if n.Fields[i].Name == name {
			return &n.Fields[i]
		}
	}
	return nil
}

// Declaration returns the class-level declaration including the lexical bases.
func (n *NodeType) Declaration() inherit.Declaration {
	if n.Base == nil {
		return n.Config.Clone()
	}
	return n.Base.Declaration().Overlay(n.Config)
}

// ModeSegment returns the node's own declared mode segment.
// ok is false when the type does not declare one.
func (n *NodeType) ModeSegment() (string, bool) {
	return n.Config.String(inherit.KeyModeDir)
}

// Check validates the declaration: nested fields must reference concrete
// types, never Root, and discriminated fields need a discriminator.
func (n *NodeType) Check() error {
	return n.check(map[*NodeType]bool{})
}

func (n *NodeType) check(seen map[*NodeType]bool) error {
	if seen[n] {
		return nil
	}
	seen[n] = true

	for i := range n.Fields {
		f := &n.Fields[i]
		switch f.Kind {
		case KindSettings, KindRecord:
			if f.Node == nil {
				return errors.Newf(errors.ErrorTypeConfig, "field %s.%s has no nested type", n.Name, f.Name)
			}
			if f.Node.abstract {
				return errors.Newf(errors.ErrorTypeConfig, "field %s.%s cannot use the abstract root settings type", n.Name, f.Name)
			}
			if err := f.Node.check(seen); err != nil {
				return err
			}
		case KindVariants:
			if len(f.Variants) == 0 {
				return errors.Newf(errors.ErrorTypeConfig, "field %s.%s declares no variants", n.Name, f.Name)
			}
			if f.Discriminator == "" {
				return errors.Newf(errors.ErrorTypeConfig, "field %s.%s declares no discriminator", n.Name, f.Name)
			}
			for _, v := range f.Variants {
				if v == nil || v.abstract {
					return errors.Newf(errors.ErrorTypeConfig, "field %s.%s cannot use the abstract root settings type", n.Name, f.Name)
				}
				if v.Field(f.Discriminator) == nil {
					return errors.Newf(errors.ErrorTypeConfig, "variant %s lacks discriminator %s", v.Name, f.Discriminator)
				}
				if err := v.check(seen); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Define checks n and returns it, for use in package-level declarations.
func Define(n *NodeType) (*NodeType, error) {
	if err := n.Check(); err != nil {
		return nil, err
	}
	return n, nil
}

// MustDefine is like Define but panics on error.
func MustDefine(n *NodeType) *NodeType {
	if _, err := Define(n); err != nil {
		panic(err)
	}
	return n
}
