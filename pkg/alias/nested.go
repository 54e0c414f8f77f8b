package alias

import (
	"github.com/ajitpratap0/layerconf/pkg/schema"
)

// Nested is the nested-key table of a record or settings type.
type Nested struct {
	*Index
}

// nestedFor builds the table of nt once per Build, so recursive types terminate.
func nestedFor(nt *schema.NodeType, seen map[*schema.NodeType]*Nested) *Nested {
	if nt == nil {
		return &Nested{Index: &Index{byName: map[string]*Entry{}}}
	}
	if n, ok := seen[nt]; ok {
		return n
	}
	n := &Nested{}
	seen[nt] = n
	n.Index = build(nt, seen)
	return n
}

// Chains returns every alias chain that addresses a field of the table: each
// field's aliases on their own, plus the product of each alias with the
// chains of the field's own nested table. Path aliases are never expanded.
func (n *Nested) Chains(caseSensitive bool) [][]string {
	return n.chains(caseSensitive, map[*Nested]bool{})
}

func (n *Nested) chains(caseSensitive bool, visiting map[*Nested]bool) [][]string {
	if visiting[n] {
		return nil
	}
	visiting[n] = true
	defer delete(visiting, n)

	var out [][]string
	for _, e := range n.Entries {
		keys := e.Keys(caseSensitive)
		for _, k := range keys {
			out = append(out, []string{k})
		}
		for _, sub := range e.Tables() {
			subChains := sub.chains(caseSensitive, visiting)
			for _, k := range keys {
				if e.IsPathHead(k) {
					continue
				}
				for _, c := range subChains {
					chain := make([]string, 0, len(c)+1)
					chain = append(chain, k)
					out = append(out, append(chain, c...))
				}
			}
		}
	}
	return out
}

// Resolve walks chain through the table and returns the field names it
// addresses, the entry of the last segment and the key used for it.
func (n *Nested) Resolve(chain []string, caseSensitive bool) ([]string, *Entry, bool) {
	cur := n
	names := make([]string, 0, len(chain))
	var last *Entry
	for i, seg := range chain {
		if cur == nil {
			return nil, nil, false
		}
		e := cur.Lookup(seg, caseSensitive)
		if e == nil {
			return nil, nil, false
		}
		names = append(names, e.Name())
		last = e
		if i < len(chain)-1 {
			tables := e.Tables()
			if len(tables) == 0 {
				return nil, nil, false
			}
			cur = tables[0]
			if len(tables) > 1 {
				cur = firstAccepting(tables, chain[i+1], caseSensitive)
			}
		}
	}
	return names, last, last != nil
}

func firstAccepting(tables []*Nested, key string, caseSensitive bool) *Nested {
	for _, t := range tables {
		if t.Lookup(key, caseSensitive) != nil {
			return t
		}
	}
	return nil
}
