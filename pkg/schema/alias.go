package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a Path: either a map key or a list index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// KeySeg returns a map-key segment
func KeySeg(k string) Segment { return Segment{Key: k} }

// IndexSeg returns a list-index segment
func IndexSeg(i int) Segment { return Segment{Index: i, IsIndex: true} }

func (s Segment) String() string {
	if s.IsIndex {
		return strconv.Itoa(s.Index)
	}
	return s.Key
}

// Path describes how to reach a value inside a larger nested structure.
// The first segment is always a key.
type Path []Segment

// PathOf builds a Path from strings and ints.
func PathOf(segs ...interface{}) Path {
	p := make(Path, 0, len(segs))
	for _, s := range segs {
		switch v := s.(type) {
		case int:
			p = append(p, IndexSeg(v))
		case string:
			p = append(p, KeySeg(v))
		case Segment:
			p = append(p, v)
		default:
			panic(fmt.Sprintf("schema: unsupported path segment %T", s))
		}
	}
	return p
}

// Head returns the first key of the path
func (p Path) Head() string {
	if len(p) == 0 || p[0].IsIndex {
		return ""
	}
	return p[0].Key
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Choice is one acceptable external key for a field: a plain key or a path.
type Choice struct {
	Name string
	Path Path
}

// IsPath reports whether the choice is a path alias
func (c Choice) IsPath() bool { return len(c.Path) > 0 }

// Key returns the external key the choice is looked up under.
func (c Choice) Key() string {
	if c.IsPath() {
		return c.Path.Head()
	}
	return c.Name
}

// Alias is an ordered list of choices; the first one that matches wins.
// A nil Alias means the field name is the only key.
type Alias []Choice

// Names builds an Alias of plain keys
func Names(names ...string) Alias {
	a := make(Alias, len(names))
	for i, n := range names {
		a[i] = Choice{Name: n}
	}
	return a
}

// PathAlias builds a single-choice Alias from a path
func PathAlias(segs ...interface{}) Alias {
	return Alias{{Path: PathOf(segs...)}}
}

// Or appends the choices of other after those of a
func (a Alias) Or(other Alias) Alias {
	out := make(Alias, 0, len(a)+len(other))
	out = append(out, a...)
	return append(out, other...)
}
