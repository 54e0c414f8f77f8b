package envmatch

import (
	"sort"
	"strings"

	"github.com/ajitpratap0/layerconf/internal/merge"
	"github.com/ajitpratap0/layerconf/pkg/alias"
)

// Match ranks for flattened nested keys. Both the prefix part and the nested
// chain part of a key are compared; each part that matches exactly raises the rank.
const (
	rankLower = iota + 1
	rankMixed
	rankExact
)

// Matcher finds the values of an index's fields in flat data.
type Matcher struct {
	// Prefixes is the node's prefix set, tried in order
	Prefixes []string
	// Delimiter enables nested-key flattening when not empty
	Delimiter     string
	CaseSensitive bool
}

type hit struct {
	rank  int
	depth int
	order int
	names []string
	value interface{}
}

// Match returns the field-name-keyed values found in data. Fields with no
// match are absent from the result.
func (m Matcher) Match(ix *alias.Index, data map[string]interface{}) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if len(data) == 0 {
		return out, nil
	}
	var lower map[string]interface{}
	if !m.CaseSensitive {
		lower = alias.LowerKeys(data)
	}
	for _, e := range ix.Entries {
		v, ok, err := m.field(e, data, lower)
		if err != nil {
			return nil, err
		}
		if ok {
			out[e.Name()] = v
		}
	}
	return out, nil
}

func (m Matcher) prefixes() []string {
	if len(m.Prefixes) == 0 {
		return []string{""}
	}
	return m.Prefixes
}

// lookup returns the value under prefix+alias, trying every prefix and alias
// exactly before any lowercase comparison. The alias that matched is returned.
func (m Matcher) lookup(e *alias.Entry, data, lower map[string]interface{}) (interface{}, string, bool) {
	for _, p := range m.prefixes() {
		for _, a := range e.Aliases {
			if v, ok := data[p+a]; ok {
				return v, a, true
			}
		}
	}
	if lower == nil {
		return nil, "", false
	}
	for _, p := range m.prefixes() {
		for _, a := range e.Aliases {
			if v, ok := lower[strings.ToLower(p+a)]; ok {
				return v, a, true
			}
		}
	}
	return nil, "", false
}

func (m Matcher) field(e *alias.Entry, data, lower map[string]interface{}) (interface{}, bool, error) {
	raw, key, found := m.lookup(e, data, lower)
	if found {
		if p, isPath := e.Path(key); isPath {
			raw, found = alias.Search(p[1:], raw, m.CaseSensitive)
		}
	}
	if len(e.Tables()) == 0 {
		if !found {
			return nil, false, nil
		}
		v, err := ParseLeaf(e.Field, raw)
		return v, err == nil, err
	}

	result := map[string]interface{}{}
	if found {
		obj, err := m.object(e, raw)
		if err != nil {
			return nil, false, err
		}
		result = obj
	}
	if m.Delimiter != "" {
		flat, err := m.flattened(e, data)
		if err != nil {
			return nil, false, err
		}
		result = merge.Deep(result, flat)
	}
	m.probeDiscriminator(e, result, data, lower)

	if !found && len(result) == 0 {
		return nil, false, nil
	}
	return result, true, nil
}

// object decodes a whole-object value and converts its keys to field names.
func (m Matcher) object(e *alias.Entry, raw interface{}) (map[string]interface{}, error) {
	obj, err := parseObject(e.Field, raw)
	if err != nil {
		return nil, err
	}
	table := e.Nested
	if table == nil {
		table, _ = e.Select(obj, m.CaseSensitive)
	}
	if table == nil {
		return obj, nil
	}
	return alias.Mapper{CaseSensitive: m.CaseSensitive, ByName: true, Parse: ParseLeaf}.Map(table.Index, obj)
}

// flattened collects prefix+alias+delimiter+chain keys for every nested chain
// of the field and rebuilds the nested value from them. Higher ranks win over
// lower ones, deeper keys over shallower ones, and earlier prefixes and
// aliases over later ones.
func (m Matcher) flattened(e *alias.Entry, data map[string]interface{}) (map[string]interface{}, error) {
	var hits []hit
	order := 0
	for _, p := range m.prefixes() {
		for _, a := range e.Aliases {
			order++
			if e.IsPathHead(a) {
				continue
			}
			start := p + a + m.Delimiter
			for _, t := range e.Tables() {
				found, err := m.chainHits(t, start, data)
				if err != nil {
					return nil, err
				}
				for i := range found {
					found[i].order = order
				}
				hits = append(hits, found...)
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].rank != hits[j].rank {
			return hits[i].rank < hits[j].rank
		}
		if hits[i].depth != hits[j].depth {
			return hits[i].depth < hits[j].depth
		}
		return hits[i].order > hits[j].order
	})

	out := map[string]interface{}{}
	for _, h := range hits {
		nested := map[string]interface{}{}
		merge.Set(nested, h.names, h.value)
		out = merge.Deep(out, nested)
	}
	return out, nil
}

func (m Matcher) chainHits(t *alias.Nested, start string, data map[string]interface{}) ([]hit, error) {
	chains := t.Chains(true)
	if len(chains) == 0 {
		return nil, nil
	}
	joined := make(map[string][]string, len(chains))
	folded := make(map[string][]string, len(chains))
	for _, c := range chains {
		rest := strings.Join(c, m.Delimiter)
		if _, ok := joined[rest]; !ok {
			joined[rest] = c
		}
		if _, ok := folded[strings.ToLower(rest)]; !ok {
			folded[strings.ToLower(rest)] = c
		}
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var hits []hit
	for _, k := range keys {
		if len(k) <= len(start) {
			continue
		}
		head, rest := k[:len(start)], k[len(start):]
		prefixExact := head == start
		if !prefixExact && (m.CaseSensitive || !strings.EqualFold(head, start)) {
			continue
		}
		rank := rankLower
		chain, restExact := joined[rest]
		switch {
		case restExact && prefixExact:
			rank = rankExact
		case restExact || prefixExact:
			rank = rankMixed
		}
		if !restExact {
			if m.CaseSensitive {
				continue
			}
			var ok bool
			if chain, ok = folded[strings.ToLower(rest)]; !ok {
				continue
			}
		}

		names, leaf, ok := t.Resolve(chain, true)
		if !ok {
			continue
		}
		v, found, err := m.leafValue(leaf, chain[len(chain)-1], data[k])
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		hits = append(hits, hit{rank: rank, depth: len(chain), names: names, value: v})
	}
	return hits, nil
}

func (m Matcher) leafValue(leaf *alias.Entry, key string, raw interface{}) (interface{}, bool, error) {
	if p, isPath := leaf.Path(key); isPath {
		v, ok := alias.Search(p[1:], raw, m.CaseSensitive)
		if !ok {
			return nil, false, nil
		}
		raw = v
	}
	var (
		v   interface{}
		err error
	)
	if len(leaf.Tables()) > 0 {
		v, err = m.object(leaf, raw)
	} else {
		v, err = ParseLeaf(leaf.Field, raw)
	}
	return v, err == nil, err
}

// probeDiscriminator recovers the discriminator of a variant field from
// prefix+alias+delimiter+discriminator, or with "_" when no delimiter is set.
func (m Matcher) probeDiscriminator(e *alias.Entry, result, data, lower map[string]interface{}) {
	disc := e.Field.Discriminator
	if disc == "" || len(e.Variants) == 0 || len(e.Aliases) == 0 {
		return
	}
	if _, ok := result[disc]; ok {
		return
	}
	sep := m.Delimiter
	if sep == "" {
		sep = "_"
	}
	for _, p := range m.prefixes() {
		for _, a := range e.Aliases {
			if v, ok := data[p+a+sep+disc]; ok {
				result[disc] = v
				return
			}
		}
	}
	if lower == nil {
		return
	}
	for _, p := range m.prefixes() {
		for _, a := range e.Aliases {
			if v, ok := lower[strings.ToLower(p+a+sep+disc)]; ok {
				result[disc] = v
				return
			}
		}
	}
}
