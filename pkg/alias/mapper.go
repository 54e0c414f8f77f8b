package alias

import (
	"strings"

	"github.com/ajitpratap0/layerconf/pkg/schema"
)

// ParseFunc converts a raw value found for field f.
type ParseFunc func(f *schema.Field, v interface{}) (interface{}, error)

// Mapper turns a source's key/value data into field-name-keyed data by
// plain key matching. It serves file, secret, CLI and explicit-value sources.
type Mapper struct {
	CaseSensitive bool
	// ByName also accepts field names, after every alias
	ByName bool
	// Parse, when set, converts each value before it is stored
	Parse ParseFunc
}

// Map returns the field-name-keyed view of data. Keys no field accepts are dropped.
func (m Mapper) Map(ix *Index, data map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	if len(data) == 0 {
		return out, nil
	}
	var lower map[string]interface{}
	if !m.CaseSensitive {
		lower = LowerKeys(data)
	}

	for _, e := range ix.Entries {
		v, key, ok := m.find(e, data, lower)
		if !ok {
			continue
		}
		if p, isPath := e.Path(key); isPath {
			if v, ok = Search(p[1:], v, m.CaseSensitive); !ok {
				continue
			}
		}
		v, err := m.convert(e, v)
		if err != nil {
			return nil, err
		}
		out[e.Name()] = v
	}
	return out, nil
}

// find returns the value under the first matching key. All aliases are tried
// exactly before any case-insensitive comparison.
func (m Mapper) find(e *Entry, data, lower map[string]interface{}) (interface{}, string, bool) {
	keys := e.Keys(m.CaseSensitive)
	if m.ByName {
		keys = appendUnique(append([]string(nil), keys...), e.Name())
	}
	for _, k := range keys {
		if v, ok := data[k]; ok {
			return v, k, true
		}
	}
	if lower == nil {
		return nil, "", false
	}
	for _, k := range keys {
		if v, ok := lower[strings.ToLower(k)]; ok {
			return v, k, true
		}
	}
	return nil, "", false
}

func (m Mapper) convert(e *Entry, v interface{}) (interface{}, error) {
	if m.Parse != nil {
		parsed, err := m.Parse(e.Field, v)
		if err != nil {
			return nil, err
		}
		v = parsed
	}
	data, ok := asMap(v)
	if !ok {
		return v, nil
	}
	var table *Nested
	switch {
	case e.Nested != nil:
		table = e.Nested
	case len(e.Variants) > 0:
		table, _ = e.Select(data, m.CaseSensitive)
	}
	if table == nil {
		return v, nil
	}
	sub := m
	sub.ByName = true
	return sub.Map(table.Index, data)
}

// Select picks the variant table for data of a discriminated field: the
// variant whose discriminator default equals the value found in data, else
// the field's default variant. The second result is the variant's position.
func (e *Entry) Select(data map[string]interface{}, caseSensitive bool) (*Nested, int) {
	disc := e.Field.Discriminator
	if value, ok := e.Discriminator(data, caseSensitive); ok {
		for i, t := range e.Variants {
			if variantValue(t, disc) != "" && sameValue(variantValue(t, disc), value, caseSensitive) {
				return t, i
			}
		}
		return nil, -1
	}
	if e.Field.DefaultVariant == "" {
		return nil, -1
	}
	for i, t := range e.Variants {
		if sameValue(variantValue(t, disc), e.Field.DefaultVariant, caseSensitive) {
			return t, i
		}
	}
	return nil, -1
}

// Discriminator returns the discriminator value carried by data, if any.
func (e *Entry) Discriminator(data map[string]interface{}, caseSensitive bool) (string, bool) {
	disc := e.Field.Discriminator
	if disc == "" {
		return "", false
	}
	for _, t := range e.Variants {
		de := t.Entry(disc)
		if de == nil {
			continue
		}
		keys := appendUnique(append([]string(nil), de.Keys(caseSensitive)...), disc)
		for _, k := range keys {
			v, ok := data[k]
			if !ok && !caseSensitive {
				v, ok = foldLookup(data, k)
			}
			if ok && v != nil {
				if s, isStr := v.(string); isStr {
					return s, true
				}
			}
		}
	}
	return "", false
}

func sameValue(a, b string, caseSensitive bool) bool {
	if caseSensitive {
		return a == b
	}
	return strings.EqualFold(a, b)
}

func variantValue(t *Nested, disc string) string {
	if t == nil || t.Type == nil {
		return ""
	}
	f := t.Type.Field(disc)
	if f == nil {
		return ""
	}
	s, _ := f.Default.(string)
	return s
}
