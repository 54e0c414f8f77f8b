package alias

import (
	"sort"
	"strings"

	"github.com/ajitpratap0/layerconf/pkg/json"
	"github.com/ajitpratap0/layerconf/pkg/schema"
)

// Search follows p into data. String values met on the way that hold a JSON
// object or array are decoded first.
func Search(p schema.Path, data interface{}, caseSensitive bool) (interface{}, bool) {
	cur := data
	for _, seg := range p {
		cur = decodeContainer(cur)
		if seg.IsIndex {
			list, ok := asList(cur)
			if !ok {
				return nil, false
			}
			i := seg.Index
			if i < 0 {
				i += len(list)
			}
			if i < 0 || i >= len(list) {
				return nil, false
			}
			cur = list[i]
			continue
		}
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		v, ok := m[seg.Key]
		if !ok && !caseSensitive {
			v, ok = foldLookup(m, seg.Key)
		}
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// BuildPath nests value under the keys of p, the inverse of Search for key-only paths.
func BuildPath(p schema.Path, value interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	cur := out
	for i, seg := range p {
		key := seg.String()
		if i == len(p)-1 {
			cur[key] = value
			break
		}
		next := map[string]interface{}{}
		cur[key] = next
		cur = next
	}
	return out
}

func decodeContainer(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	t := strings.TrimSpace(s)
	if t == "" || (t[0] != '{' && t[0] != '[') {
		return v
	}
	parsed, err := json.ParseValue(t)
	if err != nil {
		return v
	}
	return parsed
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if ks, ok := k.(string); ok {
				out[ks] = val
			}
		}
		return out, true
	}
	return nil, false
}

func asList(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case []interface{}:
		return t, true
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// foldLookup finds key case-insensitively; among several candidates the
// lexically smallest original key wins.
func foldLookup(m map[string]interface{}, key string) (interface{}, bool) {
	var keys []string
	for k := range m {
		if strings.EqualFold(k, key) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, false
	}
	sort.Strings(keys)
	return m[keys[0]], true
}

// LowerKeys maps each lowercased key of data to its value. Among keys that
// collide once lowercased the lexically smallest original key wins.
func LowerKeys(data map[string]interface{}) map[string]interface{} {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]interface{}, len(data))
	for _, k := range keys {
		lk := strings.ToLower(k)
		if _, ok := out[lk]; !ok {
			out[lk] = data[k]
		}
	}
	return out
}
