package inherit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ajitpratap0/layerconf/pkg/errors"
)

// Declaration is one tier of declared configuration keyed by configuration key.
// A key that is absent is unset; a key mapped to nil is explicitly disabled.
type Declaration map[string]interface{}

// Has reports whether key is explicitly present
func (d Declaration) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Clone returns a deep copy
func (d Declaration) Clone() Declaration {
	if d == nil {
		return Declaration{}
	}
	out := make(Declaration, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

// Overlay returns a copy of d with every key of top applied over it.
func (d Declaration) Overlay(top Declaration) Declaration {
	out := d.Clone()
	for k, v := range top {
		out[k] = cloneValue(v)
	}
	return out
}

// Check fails with a config error on keys that are not part of the catalogue.
func (d Declaration) Check() error {
	var unknown []string
	for k := range d {
		if !Known(k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return errors.New(errors.ErrorTypeConfig, "unknown configuration key").
		WithDetail("keys", strings.Join(unknown, ","))
}

// String returns a string value. ok is false when the key is unset.
// An explicit nil yields "" with ok true.
func (d Declaration) String(key string) (string, bool) {
	v, ok := d[key]
	if !ok {
		return "", false
	}
	if v == nil {
		return "", true
	}
	return fmt.Sprint(v), true
}

// Strings returns a list value, accepting a single string or any list.
func (d Declaration) Strings(key string) ([]string, bool) {
	v, ok := d[key]
	if !ok {
		return nil, false
	}
	return toStrings(v), true
}

func toStrings(v interface{}) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []string:
		return append([]string(nil), t...)
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if e == nil {
				continue
			}
			out = append(out, fmt.Sprint(e))
		}
		return out
	default:
		return []string{fmt.Sprint(t)}
	}
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []interface{}:
		return append([]interface{}(nil), t...)
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, val := range t {
			out[k] = val
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}
