// Package merge deep-merges the string-keyed maps produced by sources.
package merge

import (
	"github.com/mitchellh/copystructure"
)

// Copy returns a deep copy of m. A nil map yields an empty one.
func Copy(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	c, err := copystructure.Copy(m)
	if err != nil {
		// copystructure only fails on unsupported kinds such as channels,
		// which decoded config data never holds.
		panic(err)
	}
	return c.(map[string]interface{})
}

// Deep returns a copy of dst with src merged on top. Maps present on both
// sides merge key by key; any other src value replaces the dst value.
func Deep(dst, src map[string]interface{}) map[string]interface{} {
	out := Copy(dst)
	into(out, Copy(src))
	return out
}

func into(dst, src map[string]interface{}) {
	for k, sv := range src {
		sm, srcIsMap := sv.(map[string]interface{})
		dm, dstIsMap := dst[k].(map[string]interface{})
		if srcIsMap && dstIsMap {
			into(dm, sm)
			continue
		}
		dst[k] = sv
	}
}

// Set stores v under the nested keys of path in m, creating or replacing
// intermediate maps as needed.
func Set(m map[string]interface{}, path []string, v interface{}) {
	cur := m
	for i, k := range path {
		if i == len(path)-1 {
			cur[k] = v
			return
		}
		next, ok := cur[k].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			cur[k] = next
		}
		cur = next
	}
}
